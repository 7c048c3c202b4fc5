// Package msglog is the append-only record of every message the gate fully
// processed, including the verdict. Rate limiting counts rows here rather
// than a separate counter, so the limit window and the audit trail can never
// disagree.
package msglog

import (
	"context"
	"time"
)

// Entry is one processed message. Content is truncated by the caller before
// it gets here; FlagReasons carries the complete (un-sanitized) rule tags.
type Entry struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	Identity    string    `gorm:"index:idx_message_log_identity_created" json:"identity"`
	CreatedAt   time.Time `gorm:"index:idx_message_log_identity_created;index" json:"timestamp"`
	Content     string    `json:"message"`
	Flagged     bool      `gorm:"not null;default:false" json:"is_flagged"`
	FlagReasons []string  `gorm:"serializer:json" json:"flag_reasons,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	LatencyMs   int64     `json:"latency_ms,omitempty"`
}

func (Entry) TableName() string {
	return "message_log"
}

type MessageLog interface {
	// Append stores one entry. Entries with a zero CreatedAt get stamped
	// with the current time.
	Append(ctx context.Context, entry *Entry) error

	// CountSince returns how many entries exist for the identity with
	// CreatedAt strictly after since.
	CountSince(ctx context.Context, identity string, since time.Time) (int64, error)

	// ListSince returns entries with CreatedAt strictly after since, newest
	// first, at most limit.
	ListSince(ctx context.Context, since time.Time, limit int) ([]Entry, error)

	// IdentityCounts returns total and flagged entry counts for one identity.
	IdentityCounts(ctx context.Context, identity string) (total int64, flagged int64, err error)

	// TotalCounts returns total and flagged entry counts across all
	// identities.
	TotalCounts(ctx context.Context) (total int64, flagged int64, err error)

	// TrimBefore deletes entries with CreatedAt before the cutoff and
	// reports how many went away. Retention sweeps use this.
	TrimBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
