package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var lockoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "clinic_login_lockouts_total",
	Help: "Identifiers locked out after repeated failed logins.",
})

// Collectors returns the package metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{lockoutsTotal}
}

type Config struct {
	MaxAttempts     int
	LockoutDuration time.Duration
	SweepInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:     5,
		LockoutDuration: 15 * time.Minute,
		SweepInterval:   60 * time.Second,
	}
}

// Throttle applies the lockout policy on top of a Store. All identifiers
// are normalized before they reach the store.
type Throttle struct {
	store  Store
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

func New(store Store, cfg Config, logger zerolog.Logger) *Throttle {
	return &Throttle{
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "login_throttle").Logger(),
		now:    time.Now,
		done:   make(chan struct{}),
	}
}

// SetClock replaces the time source. Tests only.
func (t *Throttle) SetClock(now func() time.Time) {
	t.now = now
}

// IsLocked reports whether identifier is locked out. A counter whose
// lockout has passed is deleted on the way.
func (t *Throttle) IsLocked(ctx context.Context, identifier string) (bool, error) {
	key := NormalizeIdentifier(identifier)
	c, ok, err := t.store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	now := t.now()
	if c.Locked(now) {
		return true, nil
	}
	if !c.LockedUntil.IsZero() {
		if err := t.store.Clear(ctx, key); err != nil {
			return false, err
		}
	}
	return false, nil
}

// RecordFailure counts one failed attempt. The returned counter shows
// whether this attempt triggered the lockout.
func (t *Throttle) RecordFailure(ctx context.Context, identifier string) (Counter, error) {
	key := NormalizeIdentifier(identifier)
	c, err := t.store.Increment(ctx, key, t.cfg.MaxAttempts, t.cfg.LockoutDuration, t.now())
	if err != nil {
		return Counter{}, err
	}
	if c.Attempts == t.cfg.MaxAttempts {
		lockoutsTotal.Inc()
		t.logger.Warn().
			Int("attempts", c.Attempts).
			Time("locked_until", c.LockedUntil).
			Msg("login identifier locked out")
	}
	return c, nil
}

// Clear forgets all failures for identifier.
func (t *Throttle) Clear(ctx context.Context, identifier string) error {
	return t.store.Clear(ctx, NormalizeIdentifier(identifier))
}

// Sweep removes counters whose lockout has passed. Counters that never
// locked are kept until a successful login clears them.
func (t *Throttle) Sweep(ctx context.Context) (int, error) {
	return t.store.Sweep(ctx, t.now())
}

// Start runs Sweep every SweepInterval until Close is called or ctx ends.
func (t *Throttle) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		t.wg.Add(1)
		go t.sweepLoop(ctx)
	})
}

func (t *Throttle) sweepLoop(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := t.Sweep(ctx)
			if err != nil {
				t.logger.Error().Err(err).Msg("login throttle sweep failed")
				continue
			}
			if removed > 0 {
				t.logger.Debug().Int("removed", removed).Msg("login throttle sweep")
			}
		}
	}
}

// Close stops the sweeper and waits for it to exit.
func (t *Throttle) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
	})
	t.wg.Wait()
}
