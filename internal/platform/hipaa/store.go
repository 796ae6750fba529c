package hipaa

import (
	"context"
	"time"
)

// Filter selects audit entries. TenantID is mandatory; every other
// non-zero field is AND-combined.
type Filter struct {
	TenantID   string
	EntityType string
	EntityID   string
	UserID     string
	Action     Action
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// Store persists audit entries. There is deliberately no update or delete.
type Store interface {
	Insert(ctx context.Context, e *Entry) error
	// Find returns one page of matches, newest first, and the total match
	// count. A Limit of zero returns every match.
	Find(ctx context.Context, f Filter) ([]Entry, int, error)
}
