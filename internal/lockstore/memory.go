package lockstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type memoryLock struct {
	holder    string
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded in-process Store. It backs tests and
// serves as the degraded fallback when Redis is unreachable at startup;
// locks then only protect against collisions on this one instance.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory lock store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks: make(map[string]memoryLock),
		now:   time.Now,
	}
}

// Acquire takes or refreshes the seat lock for holderID.
func (s *MemoryStore) Acquire(_ context.Context, tripID int64, seat, holderID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := lockKey(tripID, seat)
	if lock, ok := s.locks[key]; ok && s.now().Before(lock.expiresAt) && lock.holder != holderID {
		return false, nil
	}
	s.locks[key] = memoryLock{holder: holderID, expiresAt: s.now().Add(ttl)}
	return true, nil
}

// Release removes the lock when holderID still owns it.
func (s *MemoryStore) Release(_ context.Context, tripID int64, seat, holderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := lockKey(tripID, seat)
	lock, ok := s.locks[key]
	if !ok || s.now().After(lock.expiresAt) || lock.holder != holderID {
		return false, nil
	}
	delete(s.locks, key)
	return true, nil
}

// Owner returns the current holder of the seat lock.
func (s *MemoryStore) Owner(_ context.Context, tripID int64, seat string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[lockKey(tripID, seat)]
	if !ok || s.now().After(lock.expiresAt) {
		return "", nil
	}
	return lock.holder, nil
}

// ActiveLocks returns the unexpired locked seats for the trip.
func (s *MemoryStore) ActiveLocks(_ context.Context, tripID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := fmt.Sprintf("%s:%d:", keyPrefix, tripID)
	seats := []string{}
	now := s.now()
	for key, lock := range s.locks {
		if now.After(lock.expiresAt) {
			delete(s.locks, key)
			continue
		}
		if strings.HasPrefix(key, prefix) {
			seats = append(seats, strings.TrimPrefix(key, prefix))
		}
	}
	return seats, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
