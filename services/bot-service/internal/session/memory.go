package session

import (
	"context"
	"sync"
	"time"

	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

type memoryEntry struct {
	sess      types.Session
	expiresAt time.Time
}

// MemoryStore is an in-process Store for tests and single-instance dev
// mode. Expired entries are dropped by Reap.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	locks    map[string]*memoryLock
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		locks:    make(map[string]*memoryLock),
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, phone string) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[phone]
	if !ok {
		return nil, nil
	}
	sess := entry.sess
	return &sess, nil
}

func (s *MemoryStore) Put(_ context.Context, sess types.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.Phone] = memoryEntry{sess: sess, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, phone)
	return nil
}

type memoryLock struct {
	ch    chan struct{}
	users int
}

// Lock blocks until the phone's slot is free or ctx is done. ttl is not
// needed in-process: the holder always releases. A slot is dropped once no
// caller holds or waits on it.
func (s *MemoryStore) Lock(ctx context.Context, phone string, _ time.Duration) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[phone]
	if !ok {
		l = &memoryLock{ch: make(chan struct{}, 1)}
		s.locks[phone] = l
	}
	l.users++
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				s.release(phone, l)
			})
		}, nil
	case <-ctx.Done():
		s.release(phone, l)
		return nil, ctx.Err()
	}
}

func (s *MemoryStore) release(phone string, l *memoryLock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.users--
	if l.users == 0 {
		delete(s.locks, phone)
	}
}

// Reap removes expired sessions and returns how many were dropped.
func (s *MemoryStore) Reap() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for phone, entry := range s.sessions {
		if !now.Before(entry.expiresAt) {
			delete(s.sessions, phone)
			n++
		}
	}
	return n
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
