package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStore_IncrementAndLock(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	var c Counter
	var err error
	for i := 0; i < 5; i++ {
		c, err = store.Increment(ctx, "x@example.com", 5, 15*time.Minute, now)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if i == 3 {
			if ttl := mr.TTL(defaultRedisPrefix + "x@example.com"); ttl != 0 {
				t.Errorf("unlocked counter must not expire, got ttl %s", ttl)
			}
		}
	}
	if c.Attempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", c.Attempts)
	}
	if !c.LockedUntil.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected lockout %s", c.LockedUntil)
	}
	if ttl := mr.TTL(defaultRedisPrefix + "x@example.com"); ttl != 15*time.Minute {
		t.Errorf("expected key ttl of 15m, got %s", ttl)
	}

	got, ok, err := store.Get(ctx, "x@example.com")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Attempts != 5 || !got.LockedUntil.Equal(c.LockedUntil) {
		t.Errorf("unexpected stored counter %+v", got)
	}
}

func TestRedisStore_LockStampNotMovedByLaterFailures(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		store.Increment(ctx, "x@example.com", 5, 15*time.Minute, now)
	}
	c, err := store.Increment(ctx, "x@example.com", 5, 15*time.Minute, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if c.Attempts != 6 {
		t.Errorf("expected 6 attempts, got %d", c.Attempts)
	}
	if !c.LockedUntil.Equal(now.Add(15 * time.Minute)) {
		t.Errorf("lockout moved to %s", c.LockedUntil)
	}
}

func TestRedisStore_UnlockedCounterSurvivesIdleTime(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		store.Increment(ctx, "x@example.com", 5, 15*time.Minute, now)
	}
	mr.FastForward(time.Hour)

	c, err := store.Increment(ctx, "x@example.com", 5, 15*time.Minute, now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if c.Attempts != 5 || c.LockedUntil.IsZero() {
		t.Fatalf("expected the 5th failure to lock, got %+v", c)
	}
}

func TestRedisStore_IncrementAfterExpiredLockoutStartsOver(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		store.Increment(ctx, "x@example.com", 5, 15*time.Minute, now)
	}
	c, err := store.Increment(ctx, "x@example.com", 5, 15*time.Minute, now.Add(15*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if c.Attempts != 1 || !c.LockedUntil.IsZero() {
		t.Fatalf("expected a fresh counter, got %+v", c)
	}
}

func TestRedisStore_ClearAndMissing(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	if _, ok, err := store.Get(ctx, "nobody@example.com"); ok || err != nil {
		t.Fatalf("expected missing counter, ok=%v err=%v", ok, err)
	}

	store.Increment(ctx, "x@example.com", 5, 15*time.Minute, now)
	if err := store.Clear(ctx, "x@example.com"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Get(ctx, "x@example.com"); ok {
		t.Fatal("expected counter to be cleared")
	}
}

func TestRedisStore_WithThrottle(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)
	th, clk := newTestThrottle(store)

	for i := 0; i < 5; i++ {
		if _, err := th.RecordFailure(ctx, "x@example.com"); err != nil {
			t.Fatal(err)
		}
	}
	if locked, err := th.IsLocked(ctx, "x@example.com"); err != nil || !locked {
		t.Fatalf("expected lock, locked=%v err=%v", locked, err)
	}

	clk.Advance(15 * time.Minute)
	if locked, err := th.IsLocked(ctx, "x@example.com"); err != nil || locked {
		t.Fatalf("expected lockout to expire, locked=%v err=%v", locked, err)
	}
	if _, ok, _ := store.Get(ctx, "x@example.com"); ok {
		t.Fatal("expected expired counter to be deleted")
	}
}

func TestRedisStore_Ping(t *testing.T) {
	store, mr := newRedisStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	mr.Close()
	if err := store.Ping(context.Background()); err == nil {
		t.Error("expected ping to fail once redis is gone")
	}
}
