// Package actionlog is the append-only audit ledger of block and unblock
// actions, whoever took them: an admin, the auto-block path, or lazy expiry.
package actionlog

import (
	"context"
	"time"
)

const (
	KindBlock   = "block"
	KindUnblock = "unblock"
)

type Action struct {
	ID        uint       `gorm:"primaryKey" json:"-"`
	Identity  string     `gorm:"index" json:"identity"`
	Kind      string     `gorm:"index" json:"action_type"`
	Reason    string     `json:"reason"`
	Actor     string     `json:"actor"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"timestamp"`
}

func (Action) TableName() string {
	return "moderation_actions"
}

type ActionLog interface {
	// Append stores one action. Zero CreatedAt gets stamped with the current
	// time.
	Append(ctx context.Context, act *Action) error

	// ListForIdentity returns the identity's actions, newest first, at most
	// limit.
	ListForIdentity(ctx context.Context, identity string, limit int) ([]Action, error)

	// ListRecent returns the latest actions across all identities, newest
	// first, at most limit.
	ListRecent(ctx context.Context, limit int) ([]Action, error)
}
