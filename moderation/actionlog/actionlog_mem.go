package actionlog

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemActionLog struct {
	lk      sync.Mutex
	nextID  uint
	actions []Action
}

var _ ActionLog = (*MemActionLog)(nil)

func NewMemActionLog() *MemActionLog {
	return &MemActionLog{nextID: 1}
}

func (l *MemActionLog) Append(ctx context.Context, act *Action) error {
	if act.CreatedAt.IsZero() {
		act.CreatedAt = time.Now().UTC()
	}
	l.lk.Lock()
	defer l.lk.Unlock()
	act.ID = l.nextID
	l.nextID++
	l.actions = append(l.actions, *act)
	return nil
}

func (l *MemActionLog) ListForIdentity(ctx context.Context, identity string, limit int) ([]Action, error) {
	l.lk.Lock()
	var matched []Action
	for _, a := range l.actions {
		if a.Identity == identity {
			matched = append(matched, a)
		}
	}
	l.lk.Unlock()
	return newestFirst(matched, limit), nil
}

func (l *MemActionLog) ListRecent(ctx context.Context, limit int) ([]Action, error) {
	l.lk.Lock()
	matched := make([]Action, len(l.actions))
	copy(matched, l.actions)
	l.lk.Unlock()
	return newestFirst(matched, limit), nil
}

func newestFirst(actions []Action, limit int) []Action {
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].CreatedAt.Equal(actions[j].CreatedAt) {
			return actions[i].ID > actions[j].ID
		}
		return actions[i].CreatedAt.After(actions[j].CreatedAt)
	})
	if limit > 0 && len(actions) > limit {
		actions = actions[:limit]
	}
	return actions
}
