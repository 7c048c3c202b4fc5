// Package flagstore accumulates the distinct rule tags ever raised against an
// identity, for the admin view. Distinct from the message log: this is the
// running "what has this identity tripped" set, not a per-message record.
package flagstore

import (
	"context"
)

type FlagStore interface {
	// Get returns the identity's accumulated flags. Order is not guaranteed.
	Get(ctx context.Context, key string) ([]string, error)
	Add(ctx context.Context, key string, flags []string) error
	// Remove drops flags from the set; flags not present are ignored.
	Remove(ctx context.Context, key string, flags []string) error
}

func dedupeStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range in {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}
