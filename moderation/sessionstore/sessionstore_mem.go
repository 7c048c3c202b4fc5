package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemSessionStore is a process-local SessionStore for single-node deployments
// and tests. Sessions live in a lock-striped concurrent map and each entry
// carries its own mutex, so callers only contend when hitting the same
// identity.
type MemSessionStore struct {
	// Now is the clock used for session timestamps. Defaults to UTC wall time.
	Now func() time.Time

	sessions *xsync.MapOf[string, *memSession]
}

type memSession struct {
	lk sync.Mutex
	s  Session
}

var _ SessionStore = (*MemSessionStore)(nil)

func NewMemSessionStore() *MemSessionStore {
	return &MemSessionStore{
		sessions: xsync.NewMapOf[string, *memSession](),
	}
}

func (s *MemSessionStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *MemSessionStore) loadOrCreate(identity string) *memSession {
	ms, _ := s.sessions.LoadOrCompute(identity, func() *memSession {
		now := s.now()
		return &memSession{s: Session{
			Identity:     identity,
			SessionStart: now,
			LastActivity: now,
		}}
	})
	return ms
}

func (s *MemSessionStore) GetOrCreate(ctx context.Context, identity string) (*Session, error) {
	ms := s.loadOrCreate(identity)
	ms.lk.Lock()
	defer ms.lk.Unlock()
	cp := ms.s
	return &cp, nil
}

func (s *MemSessionStore) Get(ctx context.Context, identity string) (*Session, error) {
	ms, ok := s.sessions.Load(identity)
	if !ok {
		return nil, ErrNotFound
	}
	ms.lk.Lock()
	defer ms.lk.Unlock()
	cp := ms.s
	return &cp, nil
}

func (s *MemSessionStore) RecordMessage(ctx context.Context, identity string, userAgent string) (*Session, error) {
	ms := s.loadOrCreate(identity)
	ms.lk.Lock()
	defer ms.lk.Unlock()
	ms.s.MessagesSent++
	ms.s.LastActivity = s.now()
	ms.s.LastUserAgent = userAgent
	cp := ms.s
	return &cp, nil
}

func (s *MemSessionStore) RecordFlag(ctx context.Context, identity string) (int64, error) {
	ms, ok := s.sessions.Load(identity)
	if !ok {
		return 0, ErrNotFound
	}
	ms.lk.Lock()
	defer ms.lk.Unlock()
	ms.s.FlaggedMessages++
	return ms.s.FlaggedMessages, nil
}

func (s *MemSessionStore) SetBlock(ctx context.Context, identity string, reason string, expires *time.Time) error {
	ms := s.loadOrCreate(identity)
	ms.lk.Lock()
	defer ms.lk.Unlock()
	ms.s.IsBlocked = true
	ms.s.BlockReason = reason
	if expires != nil {
		t := *expires
		ms.s.BlockExpires = &t
	} else {
		ms.s.BlockExpires = nil
	}
	return nil
}

func (s *MemSessionStore) ClearBlock(ctx context.Context, identity string) error {
	ms, ok := s.sessions.Load(identity)
	if !ok {
		return nil
	}
	ms.lk.Lock()
	defer ms.lk.Unlock()
	ms.s.IsBlocked = false
	ms.s.BlockReason = ""
	ms.s.BlockExpires = nil
	return nil
}

func (s *MemSessionStore) ClearExpiredBlock(ctx context.Context, identity string, now time.Time) (bool, error) {
	ms, ok := s.sessions.Load(identity)
	if !ok {
		return false, nil
	}
	ms.lk.Lock()
	defer ms.lk.Unlock()
	if !ms.s.IsBlocked || ms.s.BlockExpires == nil || ms.s.BlockExpires.After(now) {
		return false, nil
	}
	ms.s.IsBlocked = false
	ms.s.BlockReason = ""
	ms.s.BlockExpires = nil
	return true, nil
}

func (s *MemSessionStore) TotalCount(ctx context.Context) (int64, error) {
	return int64(s.sessions.Size()), nil
}

func (s *MemSessionStore) BlockedCount(ctx context.Context) (int64, error) {
	var count int64
	s.sessions.Range(func(_ string, ms *memSession) bool {
		ms.lk.Lock()
		if ms.s.IsBlocked {
			count++
		}
		ms.lk.Unlock()
		return true
	})
	return count, nil
}
