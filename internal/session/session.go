// Package session stores each user's staged uploads between upload and
// submission. Sessions expire after a TTL so abandoned uploads do not linger.
package session

import (
	"context"
	"sync"
	"time"

	"salesportal/internal/domain"
)

type Store interface {
	Get(ctx context.Context, username string) (*domain.UploadSession, bool, error)
	Put(ctx context.Context, username string, s *domain.UploadSession) error
	Delete(ctx context.Context, username string) error
}

type memoryEntry struct {
	session   domain.UploadSession
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. It is the fallback when no
// Redis instance is configured, and the store the tests run against.
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, username string) (*domain.UploadSession, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[username]
	s.mu.RUnlock()
	if !ok || s.now().After(e.expiresAt) {
		return nil, false, nil
	}
	clone := e.session
	return &clone, true, nil
}

func (s *MemoryStore) Put(_ context.Context, username string, sess *domain.UploadSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[username] = memoryEntry{session: *sess, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, username)
	return nil
}
