package msglog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemMessageLog keeps the log in process memory. Same ordering and windowing
// behavior as the database implementation, for single-node runs and tests.
type MemMessageLog struct {
	lk      sync.Mutex
	nextID  uint
	entries []Entry
}

var _ MessageLog = (*MemMessageLog)(nil)

func NewMemMessageLog() *MemMessageLog {
	return &MemMessageLog{nextID: 1}
}

func (l *MemMessageLog) Append(ctx context.Context, entry *Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	l.lk.Lock()
	defer l.lk.Unlock()
	entry.ID = l.nextID
	l.nextID++
	l.entries = append(l.entries, *entry)
	return nil
}

func (l *MemMessageLog) CountSince(ctx context.Context, identity string, since time.Time) (int64, error) {
	l.lk.Lock()
	defer l.lk.Unlock()
	var count int64
	for _, e := range l.entries {
		if e.Identity == identity && e.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (l *MemMessageLog) ListSince(ctx context.Context, since time.Time, limit int) ([]Entry, error) {
	l.lk.Lock()
	var matched []Entry
	for _, e := range l.entries {
		if e.CreatedAt.After(since) {
			matched = append(matched, e)
		}
	}
	l.lk.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (l *MemMessageLog) IdentityCounts(ctx context.Context, identity string) (int64, int64, error) {
	l.lk.Lock()
	defer l.lk.Unlock()
	var total, flagged int64
	for _, e := range l.entries {
		if e.Identity != identity {
			continue
		}
		total++
		if e.Flagged {
			flagged++
		}
	}
	return total, flagged, nil
}

func (l *MemMessageLog) TotalCounts(ctx context.Context) (int64, int64, error) {
	l.lk.Lock()
	defer l.lk.Unlock()
	var total, flagged int64
	for _, e := range l.entries {
		total++
		if e.Flagged {
			flagged++
		}
	}
	return total, flagged, nil
}

func (l *MemMessageLog) TrimBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	l.lk.Lock()
	defer l.lk.Unlock()
	kept := l.entries[:0]
	var removed int64
	for _, e := range l.entries {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	return removed, nil
}
