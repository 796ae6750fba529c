// Package throttle counts failed logins per identifier and locks an
// identifier out once it crosses a threshold.
package throttle

import (
	"context"
	"strings"
	"time"
)

// Counter is the failure state of one identifier.
type Counter struct {
	Attempts    int
	LockedUntil time.Time
	LastFailure time.Time
}

// Locked reports whether the lockout is still in force at now.
func (c Counter) Locked(now time.Time) bool {
	return !c.LockedUntil.IsZero() && now.Before(c.LockedUntil)
}

// Expired reports whether the counter's lockout has passed. A counter that
// never locked does not expire; only a successful login clears it.
func (c Counter) Expired(now time.Time) bool {
	return !c.LockedUntil.IsZero() && !now.Before(c.LockedUntil)
}

// Store holds counters. Implementations must make Increment atomic per key.
type Store interface {
	Get(ctx context.Context, key string) (Counter, bool, error)
	// Increment adds one failure. A counter whose lockout has passed starts
	// over first. When the count reaches threshold the counter is locked
	// until now+lockout.
	Increment(ctx context.Context, key string, threshold int, lockout time.Duration, now time.Time) (Counter, error)
	Clear(ctx context.Context, key string) error
	// Sweep drops counters whose lockout has passed and returns how many it
	// removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// NormalizeIdentifier trims and lowercases a login identifier.
func NormalizeIdentifier(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
