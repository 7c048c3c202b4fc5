package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/ihub-edu/hallpass/moderation/msglog"
)

// Fixed retry hint returned on every rate-limit denial, independent of the
// configured window length.
const retryAfterSeconds = 3600

// RateLimiter enforces the per-identity message budget by counting message
// log rows inside a sliding window, recomputed on every check. It runs before
// the current message is logged, so a message never counts against itself.
type RateLimiter struct {
	Messages msglog.MessageLog
	Config   *ConfigStore

	now func() time.Time
}

// Check reports whether the identity has exhausted its window, with a
// human-readable detail string when it has.
func (r *RateLimiter) Check(ctx context.Context, identity string) (bool, string, error) {
	cfg := r.Config.Current()
	since := r.now().Add(-cfg.Window())
	count, err := r.Messages.CountSince(ctx, identity, since)
	if err != nil {
		return false, "", fmt.Errorf("counting messages in window: %w", err)
	}
	if count >= int64(cfg.MaxMessagesPerWindow) {
		detail := fmt.Sprintf("Rate limit exceeded: %d messages in the last %d minutes", count, cfg.WindowMinutes)
		return true, detail, nil
	}
	return false, "", nil
}
