// Package sessionstore tracks one moderation session row per identity:
// message and flag counters plus the current block state. Implementations
// must keep per-identity mutations linearizable so concurrent gate decisions
// never lose an increment or double-fire a block transition.
package sessionstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Session is the per-identity moderation record. Identities are whatever the
// request layer extracted, usually a client IP.
type Session struct {
	Identity        string    `gorm:"primaryKey" json:"identity"`
	SessionStart    time.Time `json:"session_start"`
	MessagesSent    int64     `gorm:"not null;default:0" json:"messages_sent"`
	FlaggedMessages int64     `gorm:"not null;default:0" json:"flagged_messages"`
	// reserved counter, never incremented yet
	WarningsIssued int64      `gorm:"not null;default:0" json:"warnings_issued"`
	LastActivity   time.Time  `json:"last_activity"`
	LastUserAgent  string     `json:"last_user_agent,omitempty"`
	IsBlocked      bool       `gorm:"not null;default:false;index" json:"is_blocked"`
	BlockReason    string     `json:"block_reason,omitempty"`
	BlockExpires   *time.Time `json:"block_expires,omitempty"`
}

func (Session) TableName() string {
	return "moderation_sessions"
}

type SessionStore interface {
	// GetOrCreate fetches the session for the identity, creating a fresh one
	// with zeroed counters when none exists.
	GetOrCreate(ctx context.Context, identity string) (*Session, error)

	// Get fetches the session, or ErrNotFound.
	Get(ctx context.Context, identity string) (*Session, error)

	// RecordMessage bumps messages_sent by one and refreshes last_activity and
	// last_user_agent, creating the session when absent (first message counts).
	// Returns the updated session.
	RecordMessage(ctx context.Context, identity string, userAgent string) (*Session, error)

	// RecordFlag bumps flagged_messages by one and returns the exact
	// post-increment total. ErrNotFound when the session does not exist.
	RecordFlag(ctx context.Context, identity string) (int64, error)

	// SetBlock marks the identity blocked, overwriting any previous block.
	// Nil expires means indefinite. Creates the session when absent.
	SetBlock(ctx context.Context, identity string, reason string, expires *time.Time) error

	// ClearBlock resets all block fields. No-op when the session is absent or
	// not blocked.
	ClearBlock(ctx context.Context, identity string) error

	// ClearExpiredBlock resets the block fields only if the row is still
	// blocked with an expiry at or before now. Reports whether this call
	// performed the transition, so exactly one concurrent caller observes
	// true and owns the follow-up audit write.
	ClearExpiredBlock(ctx context.Context, identity string, now time.Time) (bool, error)

	// TotalCount returns the number of sessions ever seen.
	TotalCount(ctx context.Context) (int64, error)

	// BlockedCount returns the number of sessions currently marked blocked,
	// including any whose expiry has passed but has not been observed yet.
	BlockedCount(ctx context.Context) (int64, error)
}
