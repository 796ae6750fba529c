package throttle

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps counters in process memory. It is only correct for a
// single instance; run RedisStore behind a load balancer.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]Counter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]Counter)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Counter, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[key]
	return c, ok, nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, threshold int, lockout time.Duration, now time.Time) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counters[key]
	if c.Expired(now) {
		c = Counter{}
	}
	c.Attempts++
	c.LastFailure = now
	if c.Attempts == threshold {
		c.LockedUntil = now.Add(lockout)
	}
	s.counters[key] = c
	return c, nil
}

func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, c := range s.counters {
		if c.Expired(now) {
			delete(s.counters, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked identifiers.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
