package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/clinic/clinic/internal/platform/session"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL drops limiters for keys not seen in this long.
	IdleTTL time.Duration
	// KeyFunc defaults to TenantIPKey.
	KeyFunc func(c echo.Context) string
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
		IdleTTL:           5 * time.Minute,
	}
}

// DefaultLoginRPS is used when no positive login rate is configured.
const DefaultLoginRPS = 1.0

// LoginRateLimitConfig limits credential posts per client ip. It sits in
// front of the login throttle and slows spraying across many identifiers.
func LoginRateLimitConfig(rps float64) RateLimitConfig {
	if rps <= 0 {
		rps = DefaultLoginRPS
	}
	burst := int(math.Ceil(rps * 5))
	if burst < 1 {
		burst = 1
	}
	return RateLimitConfig{
		RequestsPerSecond: rps,
		BurstSize:         burst,
		IdleTTL:           15 * time.Minute,
		KeyFunc:           IPKey,
	}
}

// IPKey keys by client ip.
func IPKey(c echo.Context) string {
	return c.RealIP()
}

// TenantIPKey keys by client ip, prefixed with the session tenant when the
// request carries one.
func TenantIPKey(c echo.Context) string {
	key := c.RealIP()
	if s, ok := session.FromContext(c.Request().Context()); ok && s.TenantID != "" {
		key = s.TenantID + ":" + key
	}
	return key
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore holds per-key limiters.
type limiterStore struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	config    RateLimitConfig
	lastPrune time.Time
	now       func() time.Time
}

func newLimiterStore(cfg RateLimitConfig) *limiterStore {
	return &limiterStore{
		visitors: make(map[string]*visitor),
		config:   cfg,
		now:      time.Now,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.config.IdleTTL > 0 && now.Sub(s.lastPrune) > s.config.IdleTTL {
		for k, v := range s.visitors {
			if now.Sub(v.lastSeen) > s.config.IdleTTL {
				delete(s.visitors, k)
			}
		}
		s.lastPrune = now
	}

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(s.config.RequestsPerSecond), s.config.BurstSize)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (s *limiterStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// RateLimit returns a token bucket rate limiting middleware.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return rateLimit(newLimiterStore(cfg))
}

func rateLimit(store *limiterStore) echo.MiddlewareFunc {
	cfg := store.config
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = TenantIPKey
	}
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			lim := store.get(cfg.KeyFunc(c))
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)

			now := store.now()
			res := lim.ReserveN(now, 1)
			if !res.OK() {
				return tooManyRequests(h, 1)
			}
			if delay := res.DelayFrom(now); delay > 0 {
				res.CancelAt(now)
				return tooManyRequests(h, int(math.Ceil(delay.Seconds())))
			}
			return next(c)
		}
	}
}

func tooManyRequests(h http.Header, retryAfter int) error {
	h.Set("Retry-After", strconv.Itoa(retryAfter))
	h.Set("X-RateLimit-Remaining", "0")
	return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
}
