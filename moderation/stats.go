package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/ihub-edu/hallpass/moderation/actionlog"
	"github.com/ihub-edu/hallpass/moderation/cachestore"
	"github.com/ihub-edu/hallpass/moderation/countstore"
)

const (
	statsCacheName = "stats"
	statsCacheKey  = "aggregate"

	activityPreviewRunes = 100
	identityActionLimit  = 20
)

// AggregateStats is the whole-service view served on the admin dashboard.
type AggregateStats struct {
	TotalUsers        int64   `json:"total_users"`
	TotalMessages     int64   `json:"total_messages"`
	FlaggedMessages   int64   `json:"flagged_messages"`
	BlockedUsers      int64   `json:"blocked_users"`
	FlaggedPercentage float64 `json:"flagged_percentage"`
	ActiveToday       int     `json:"active_identities_today"`
}

// IdentityStats is the per-identity admin view: the session row, message log
// counts, the accumulated flag set, and the identity's recent ledger actions.
type IdentityStats struct {
	Identity        string             `json:"identity"`
	SessionStart    time.Time          `json:"session_start"`
	TotalMessages   int64              `json:"total_messages"`
	FlaggedMessages int64              `json:"flagged_messages"`
	WarningsIssued  int64              `json:"warnings_issued"`
	LastActivity    time.Time          `json:"last_activity"`
	LastUserAgent   string             `json:"last_user_agent,omitempty"`
	IsBlocked       bool               `json:"is_blocked"`
	BlockReason     string             `json:"block_reason,omitempty"`
	BlockExpires    *time.Time         `json:"block_expires,omitempty"`
	Flags           []string           `json:"flags,omitempty"`
	RecentActions   []actionlog.Action `json:"recent_actions,omitempty"`
}

// ActivityEntry is one processed message as shown in the recent-activity
// feed. Message is a short preview, not the full stored content.
type ActivityEntry struct {
	Identity    string    `json:"identity"`
	Timestamp   time.Time `json:"timestamp"`
	Message     string    `json:"message"`
	Flagged     bool      `json:"is_flagged"`
	FlagReasons []string  `json:"flag_reasons,omitempty"`
}

// Stats returns the aggregate counters, served from the cache store when one
// is configured. Several admin dashboards polling at once hit the cache, not
// four table scans each.
func (e *Engine) Stats(ctx context.Context) (*AggregateStats, error) {
	if e.Cache != nil {
		var cached AggregateStats
		hit, err := cachestore.GetJSON(ctx, e.Cache, statsCacheName, statsCacheKey, &cached)
		if err != nil {
			e.Logger.Warn("failed to read stats cache", "err", err)
		} else if hit {
			return &cached, nil
		}
	}

	stats, err := e.computeStats(ctx)
	if err != nil {
		return nil, err
	}

	if e.Cache != nil {
		if err := cachestore.SetJSON(ctx, e.Cache, statsCacheName, statsCacheKey, stats); err != nil {
			e.Logger.Warn("failed to write stats cache", "err", err)
		}
	}
	return stats, nil
}

func (e *Engine) computeStats(ctx context.Context) (*AggregateStats, error) {
	totalUsers, err := e.Sessions.TotalCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}
	blockedUsers, err := e.Sessions.BlockedCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting blocked sessions: %w", err)
	}
	totalMessages, flaggedMessages, err := e.Messages.TotalCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting messages: %w", err)
	}

	stats := AggregateStats{
		TotalUsers:      totalUsers,
		TotalMessages:   totalMessages,
		FlaggedMessages: flaggedMessages,
		BlockedUsers:    blockedUsers,
	}
	if totalMessages > 0 {
		stats.FlaggedPercentage = float64(flaggedMessages) / float64(totalMessages) * 100
	}
	if e.Counters != nil {
		active, err := e.Counters.GetCountDistinct(ctx, "active", "identities", countstore.PeriodDay)
		if err != nil {
			e.Logger.Warn("failed to read active identity counter", "err", err)
		} else {
			stats.ActiveToday = active
		}
	}
	return &stats, nil
}

// IdentityStats returns the detailed admin view for one identity, or
// sessionstore.ErrNotFound when the gate has never seen it.
func (e *Engine) IdentityStats(ctx context.Context, identity string) (*IdentityStats, error) {
	sess, err := e.Sessions.Get(ctx, identity)
	if err != nil {
		return nil, err
	}
	total, flagged, err := e.Messages.IdentityCounts(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("counting identity messages: %w", err)
	}
	stats := IdentityStats{
		Identity:        sess.Identity,
		SessionStart:    sess.SessionStart,
		TotalMessages:   total,
		FlaggedMessages: flagged,
		WarningsIssued:  sess.WarningsIssued,
		LastActivity:    sess.LastActivity,
		LastUserAgent:   sess.LastUserAgent,
		IsBlocked:       sess.IsBlocked,
		BlockReason:     sess.BlockReason,
		BlockExpires:    sess.BlockExpires,
	}
	if e.Flags != nil {
		flags, err := e.Flags.Get(ctx, identity)
		if err != nil {
			e.Logger.Warn("failed to read accumulated flags", "identity", identity, "err", err)
		} else {
			stats.Flags = flags
		}
	}
	actions, err := e.Actions.ListForIdentity(ctx, identity, identityActionLimit)
	if err != nil {
		return nil, fmt.Errorf("listing identity actions: %w", err)
	}
	stats.RecentActions = actions
	return &stats, nil
}

// RecentActivity lists messages processed in the last hours, newest first,
// at most limit entries, with content reduced to a preview.
func (e *Engine) RecentActivity(ctx context.Context, hours int, limit int) ([]ActivityEntry, error) {
	if hours <= 0 {
		hours = 24
	}
	if limit <= 0 {
		limit = 100
	}
	since := e.now().Add(-time.Duration(hours) * time.Hour)
	entries, err := e.Messages.ListSince(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent activity: %w", err)
	}
	out := make([]ActivityEntry, len(entries))
	for i, entry := range entries {
		out[i] = ActivityEntry{
			Identity:    entry.Identity,
			Timestamp:   entry.CreatedAt,
			Message:     previewContent(entry.Content),
			Flagged:     entry.Flagged,
			FlagReasons: entry.FlagReasons,
		}
	}
	return out, nil
}

func previewContent(content string) string {
	r := []rune(content)
	if len(r) <= activityPreviewRunes {
		return content
	}
	return string(r[:activityPreviewRunes]) + "..."
}

// Block/unblock shift the blocked-user count, so the cached aggregate gets
// dropped rather than staying stale for a full TTL.
func (e *Engine) purgeStatsCache(ctx context.Context) {
	if e.Cache == nil {
		return
	}
	if err := e.Cache.Purge(ctx, statsCacheName, statsCacheKey); err != nil {
		e.Logger.Warn("failed to purge stats cache", "err", err)
	}
}
