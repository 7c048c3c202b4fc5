package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ihub-edu/hallpass/moderation/actionlog"
	"github.com/ihub-edu/hallpass/moderation/cachestore"
	"github.com/ihub-edu/hallpass/moderation/countstore"
	"github.com/ihub-edu/hallpass/moderation/flagstore"
	"github.com/ihub-edu/hallpass/moderation/msglog"
	"github.com/ihub-edu/hallpass/moderation/sessionstore"
	"github.com/ihub-edu/hallpass/moderation/wordsets"
)

// Engine is the moderation gate. It decides the fate of every inbound chat
// message (block check, rate limit, content rules, bookkeeping) and exposes
// the admin operations over the same state. One engine instance is
// constructed at startup and shared across requests; all collaborators are
// injected and all methods are safe for concurrent use.
type Engine struct {
	Logger   *slog.Logger
	Sessions sessionstore.SessionStore
	Messages msglog.MessageLog
	Actions  actionlog.ActionLog
	Rules    RuleSet
	Words    *wordsets.Provider
	Config   *ConfigStore
	Counters countstore.CountStore
	Flags    flagstore.FlagStore
	Cache    cachestore.CacheStore
	Blocks   *BlockLedger
	Limiter  *RateLimiter
	Notifier Notifier

	now func() time.Time
}

// EngineConfig wires up an Engine. Sessions, Messages, Actions, Words, and
// Config are required; Counters, Flags, Cache, and Notifier are optional and
// their features degrade quietly when absent. Now overrides the clock, for
// tests.
type EngineConfig struct {
	Logger   *slog.Logger
	Sessions sessionstore.SessionStore
	Messages msglog.MessageLog
	Actions  actionlog.ActionLog
	Rules    RuleSet
	Words    *wordsets.Provider
	Config   *ConfigStore
	Counters countstore.CountStore
	Flags    flagstore.FlagStore
	Cache    cachestore.CacheStore
	Notifier Notifier
	Now      func() time.Time
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Sessions == nil || cfg.Messages == nil || cfg.Actions == nil {
		return nil, fmt.Errorf("moderation engine requires session, message, and action stores")
	}
	if cfg.Words == nil {
		return nil, fmt.Errorf("moderation engine requires a wordset provider")
	}
	if cfg.Config == nil {
		return nil, fmt.Errorf("moderation engine requires a config store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("subsystem", "moderation")
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	eng := &Engine{
		Logger:   logger,
		Sessions: cfg.Sessions,
		Messages: cfg.Messages,
		Actions:  cfg.Actions,
		Rules:    cfg.Rules,
		Words:    cfg.Words,
		Config:   cfg.Config,
		Counters: cfg.Counters,
		Flags:    cfg.Flags,
		Cache:    cfg.Cache,
		Notifier: cfg.Notifier,
		now:      now,
	}
	eng.Blocks = &BlockLedger{
		Logger:   logger,
		Sessions: cfg.Sessions,
		Actions:  cfg.Actions,
		Notifier: cfg.Notifier,
		now:      now,
	}
	eng.Limiter = &RateLimiter{
		Messages: cfg.Messages,
		Config:   cfg.Config,
		now:      now,
	}
	return eng, nil
}

// ProcessMessage runs the full gate pipeline for one message and returns the
// decision. Stages run in a fixed order and short-circuit on the first
// denial: block check, rate limit, content rules, then bookkeeping. A
// storage error at any hard stage fails the whole request; the gate never
// falls open because a check could not run.
func (e *Engine) ProcessMessage(ctx context.Context, ident IdentityContext, text string) (*Decision, error) {
	if strings.TrimSpace(ident.Identity) == "" {
		return nil, ErrEmptyIdentity
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	return e.processMessage(ctx, ident, text)
}

func (e *Engine) processMessage(ctx context.Context, ident IdentityContext, text string) (decision *Decision, err error) {
	start := e.now()
	defer func() {
		messageProcessDuration.Observe(e.now().Sub(start).Seconds())
	}()
	defer func() {
		if err != nil {
			messageErrorCount.Inc()
		} else if decision != nil {
			messageProcessCount.WithLabelValues(string(decision.Reason)).Inc()
		}
	}()
	// similar to an HTTP server, we want to recover any panics from rule
	// execution; a panicking rule fails closed
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("message processing panic", "identity", ident.Identity, "panic", r)
			decision = nil
			err = fmt.Errorf("message processing panic: %v", r)
		}
	}()

	logger := e.Logger.With("identity", ident.Identity)

	blocked, blockReason, err := e.Blocks.IsBlocked(ctx, ident.Identity)
	if err != nil {
		return nil, fmt.Errorf("checking block state: %w", err)
	}
	if blocked {
		logger.Info("message denied", "reason", ReasonUserBlocked)
		return &Decision{
			Allowed: false,
			Reason:  ReasonUserBlocked,
			Message: fmt.Sprintf("Your access has been temporarily restricted: %s", blockReason),
		}, nil
	}

	limited, detail, err := e.Limiter.Check(ctx, ident.Identity)
	if err != nil {
		return nil, err
	}
	if limited {
		retry := retryAfterSeconds
		logger.Info("message denied", "reason", ReasonRateLimited)
		return &Decision{
			Allowed:    false,
			Reason:     ReasonRateLimited,
			Message:    detail,
			RetryAfter: &retry,
		}, nil
	}

	mc := NewMessageContext(text, e.Words.Current())
	if err := e.Rules.CallMessageRules(&mc); err != nil {
		return nil, fmt.Errorf("running classification rules: %w", err)
	}
	tags := mc.Flags()
	flagged := mc.Flagged()

	userAgent := truncateRunes(ident.UserAgent, maxUserAgentLen)
	sess, err := e.Sessions.RecordMessage(ctx, ident.Identity, userAgent)
	if err != nil {
		return nil, fmt.Errorf("recording message: %w", err)
	}

	entry := msglog.Entry{
		Identity:    ident.Identity,
		CreatedAt:   e.now(),
		Content:     truncateRunes(text, maxContentLen),
		Flagged:     flagged,
		FlagReasons: tags,
		UserAgent:   userAgent,
		LatencyMs:   e.now().Sub(start).Milliseconds(),
	}
	if err := e.Messages.Append(ctx, &entry); err != nil {
		return nil, fmt.Errorf("appending message log: %w", err)
	}

	e.incrementCounters(ctx, logger, ident.Identity, flagged)

	if flagged {
		for _, cat := range PublicFlagCategories(tags) {
			flaggedTagCount.WithLabelValues(cat).Inc()
		}
		if e.Flags != nil {
			if err := e.Flags.Add(ctx, ident.Identity, tags); err != nil {
				logger.Warn("failed to accumulate flags", "err", err)
			}
		}
		total, err := e.Sessions.RecordFlag(ctx, ident.Identity)
		if err != nil {
			return nil, fmt.Errorf("recording flag: %w", err)
		}
		cfg := e.Config.Current()
		if total >= int64(cfg.AutoBlockThreshold) {
			reason := fmt.Sprintf("Auto-blocked after %d flagged messages", total)
			if err := e.Blocks.Block(ctx, ident.Identity, reason, cfg.BlockDurationHours, ActorSystem); err != nil {
				return nil, fmt.Errorf("auto-blocking: %w", err)
			}
			autoBlockCount.Inc()
			e.purgeStatsCache(ctx)
		}
		logger.Info("message denied", "reason", ReasonContentFlagged, "tags", tags, "flaggedTotal", total)
		return &Decision{
			Allowed: false,
			Reason:  ReasonContentFlagged,
			Message: "Your message contains inappropriate content. Please keep conversations respectful and on-topic.",
			Flags:   PublicFlagCategories(tags),
		}, nil
	}

	return &Decision{
		Allowed: true,
		Reason:  ReasonApproved,
		Session: sess,
	}, nil
}

// counter updates are advisory; failures log and move on
func (e *Engine) incrementCounters(ctx context.Context, logger *slog.Logger, identity string, flagged bool) {
	if e.Counters == nil {
		return
	}
	if err := e.Counters.Increment(ctx, "msg", identity); err != nil {
		logger.Warn("failed to increment message counter", "err", err)
	}
	if flagged {
		if err := e.Counters.Increment(ctx, "flagged", identity); err != nil {
			logger.Warn("failed to increment flagged counter", "err", err)
		}
	}
	if err := e.Counters.IncrementDistinct(ctx, "active", "identities", identity); err != nil {
		logger.Warn("failed to increment active identity counter", "err", err)
	}
}

// AdminBlock blocks an identity on an admin's behalf.
func (e *Engine) AdminBlock(ctx context.Context, identity string, reason string, durationHours int, actor string) error {
	if err := e.Blocks.Block(ctx, identity, reason, durationHours, actor); err != nil {
		return err
	}
	e.purgeStatsCache(ctx)
	return nil
}

// AdminUnblock clears an identity's block on an admin's behalf.
func (e *Engine) AdminUnblock(ctx context.Context, identity string, actor string) error {
	if err := e.Blocks.Unblock(ctx, identity, actor); err != nil {
		return err
	}
	e.purgeStatsCache(ctx)
	return nil
}

// CurrentConfig returns the live gate config.
func (e *Engine) CurrentConfig() Config {
	return e.Config.Current()
}

// UpdateConfig applies a partial config patch.
func (e *Engine) UpdateConfig(p ConfigPatch) (Config, error) {
	cfg, err := e.Config.Update(p)
	if err != nil {
		return cfg, err
	}
	e.Logger.Info("moderation config updated", "config", cfg)
	return cfg, nil
}

// Wordlists returns the live denylist words and raw pattern strings.
func (e *Engine) Wordlists() ([]string, []string) {
	sets := e.Words.Current()
	return sets.Words, sets.PatternStrings()
}

// UpdateWordlists swaps in a new denylist. A nil slice keeps the current
// value for that list.
func (e *Engine) UpdateWordlists(words []string, patterns []string) error {
	cur := e.Words.Current()
	if words == nil {
		words = cur.Words
	}
	if patterns == nil {
		patterns = cur.PatternStrings()
	}
	if err := e.Words.Replace(words, patterns); err != nil {
		return err
	}
	e.Logger.Info("denylist updated", "words", len(words), "patterns", len(patterns))
	return nil
}
