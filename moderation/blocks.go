package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ihub-edu/hallpass/moderation/actionlog"
	"github.com/ihub-edu/hallpass/moderation/sessionstore"
)

// Actor values for ledger entries not attributable to a named admin.
const (
	ActorSystem     = "system"
	ActorAutoExpire = "auto_expire"
)

// BlockLedger owns block state transitions: it mutates the session row and
// appends the matching audit action, in that order. Expiry is lazy; nothing
// sweeps blocks in the background, they fall away on the next read.
type BlockLedger struct {
	Logger   *slog.Logger
	Sessions sessionstore.SessionStore
	Actions  actionlog.ActionLog
	Notifier Notifier

	now func() time.Time
}

// IsBlocked reports whether the identity is currently blocked and the stored
// reason. A block past its expiry gets cleared on the spot; the caller that
// wins the store's conditional update appends the single auto_expire audit
// action, so concurrent readers of the same expired block produce one ledger
// entry, not many.
func (l *BlockLedger) IsBlocked(ctx context.Context, identity string) (bool, string, error) {
	sess, err := l.Sessions.Get(ctx, identity)
	if err == sessionstore.ErrNotFound {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	if !sess.IsBlocked {
		return false, "", nil
	}
	if sess.BlockExpires != nil && l.now().After(*sess.BlockExpires) {
		cleared, err := l.Sessions.ClearExpiredBlock(ctx, identity, l.now())
		if err != nil {
			return false, "", err
		}
		if cleared {
			act := actionlog.Action{
				Identity:  identity,
				Kind:      actionlog.KindUnblock,
				Reason:    "Block expired",
				Actor:     ActorAutoExpire,
				CreatedAt: l.now(),
			}
			if err := l.Actions.Append(ctx, &act); err != nil {
				return false, "", err
			}
			blockExpireCount.Inc()
			l.notify(ctx, &act)
			l.Logger.Info("block expired", "identity", identity)
		}
		return false, "", nil
	}
	return true, sess.BlockReason, nil
}

// Block marks the identity blocked, appends a block action, and notifies.
// Re-blocking overwrites the previous reason and expiry. durationHours at or
// below zero means indefinite.
func (l *BlockLedger) Block(ctx context.Context, identity string, reason string, durationHours int, actor string) error {
	if identity == "" {
		return ErrEmptyIdentity
	}
	if reason == "" {
		reason = "Manual block by admin"
	}
	now := l.now()
	var expires *time.Time
	if durationHours > 0 {
		t := now.Add(time.Duration(durationHours) * time.Hour)
		expires = &t
	}
	if err := l.Sessions.SetBlock(ctx, identity, reason, expires); err != nil {
		return fmt.Errorf("setting block state: %w", err)
	}
	act := actionlog.Action{
		Identity:  identity,
		Kind:      actionlog.KindBlock,
		Reason:    reason,
		Actor:     actor,
		ExpiresAt: expires,
		CreatedAt: now,
	}
	if err := l.Actions.Append(ctx, &act); err != nil {
		return fmt.Errorf("appending block action: %w", err)
	}
	l.notify(ctx, &act)
	l.Logger.Info("identity blocked", "identity", identity, "actor", actor, "reason", reason, "expires", expires)
	return nil
}

// Unblock clears the block state and appends an unblock action. The action is
// appended even when the identity was not blocked, so redundant admin
// unblocks still leave an audit trace.
func (l *BlockLedger) Unblock(ctx context.Context, identity string, actor string) error {
	if identity == "" {
		return ErrEmptyIdentity
	}
	if err := l.Sessions.ClearBlock(ctx, identity); err != nil {
		return fmt.Errorf("clearing block state: %w", err)
	}
	act := actionlog.Action{
		Identity:  identity,
		Kind:      actionlog.KindUnblock,
		Reason:    "Manual unblock",
		Actor:     actor,
		CreatedAt: l.now(),
	}
	if err := l.Actions.Append(ctx, &act); err != nil {
		return fmt.Errorf("appending unblock action: %w", err)
	}
	l.notify(ctx, &act)
	l.Logger.Info("identity unblocked", "identity", identity, "actor", actor)
	return nil
}

func (l *BlockLedger) notify(ctx context.Context, act *actionlog.Action) {
	if l.Notifier == nil {
		return
	}
	if err := l.Notifier.SendAction(ctx, act); err != nil {
		l.Logger.Warn("failed to send moderation notification", "identity", act.Identity, "kind", act.Kind, "err", err)
	}
}
