package hipaa

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps audit entries in memory for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Insert(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	s.entries = append(s.entries, *e)
	return nil
}

// matchEntry returns true if the entry matches all non-zero filter criteria.
func matchEntry(e Entry, f Filter) bool {
	if e.TenantID != f.TenantID {
		return false
	}
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if f.UserID != "" && deref(e.UserID) != f.UserID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.From != nil && e.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

func (s *MemoryStore) Find(_ context.Context, f Filter) ([]Entry, int, error) {
	s.mu.RLock()
	var matched []Entry
	// Walk backwards so that entries sharing a timestamp keep newest-first
	// order through the stable sort.
	for i := len(s.entries) - 1; i >= 0; i-- {
		if matchEntry(s.entries[i], f) {
			matched = append(matched, s.entries[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if f.Limit <= 0 {
		return matched, total, nil
	}
	start := f.Offset
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Len returns the number of stored entries across all tenants.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// All returns a copy of every stored entry in insertion order.
func (s *MemoryStore) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
