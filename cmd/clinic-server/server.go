package main

import (
	"context"
	crypto_rand "crypto/rand"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/account"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/hipaa"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/session"
	"github.com/clinic/clinic/internal/platform/throttle"
)

// deps are the stores the HTTP server is assembled from.
type deps struct {
	Audit    hipaa.Store
	Creds    auth.CredentialStore
	Patients patient.Repository
	Lockouts throttle.Store
	Checks   map[string]db.Check
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg.MustRegister(middleware.Collectors()...)
	reg.MustRegister(throttle.Collectors()...)
	reg.MustRegister(hipaa.Collectors()...)
	return reg
}

// resolveSessionSecret returns the configured secret, or a random one in
// development. The second return value is true when a key was generated.
func resolveSessionSecret(cfg *config.Config) ([]byte, bool, error) {
	if cfg.SessionSecret != "" {
		return []byte(cfg.SessionSecret), false, nil
	}
	if !cfg.IsDev() {
		return nil, false, fmt.Errorf("SESSION_SECRET is required")
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate session secret: %w", err)
	}
	return key, true, nil
}

// throttleConfig overrides the lockout defaults with any configured values.
func throttleConfig(cfg *config.Config) throttle.Config {
	tc := throttle.DefaultConfig()
	if cfg.LoginMaxAttempts > 0 {
		tc.MaxAttempts = cfg.LoginMaxAttempts
	}
	if cfg.LoginLockout > 0 {
		tc.LockoutDuration = cfg.LoginLockout
	}
	if cfg.LoginSweep > 0 {
		tc.SweepInterval = cfg.LoginSweep
	}
	return tc
}

// newServer wires the middleware chain and routes. The returned throttle
// has not been started.
func newServer(cfg *config.Config, d deps, reg *prometheus.Registry, logger zerolog.Logger) (*echo.Echo, *throttle.Throttle, error) {
	secret, generated, err := resolveSessionSecret(cfg)
	if err != nil {
		return nil, nil, err
	}
	if generated {
		logger.Warn().Msg("SESSION_SECRET not set; using a random key, sessions will not survive a restart")
	}

	writer := hipaa.NewWriter(d.Audit, logger)
	th := throttle.New(d.Lockouts, throttleConfig(cfg), logger)
	authn := auth.NewAuthenticator(d.Creds, th, writer, auth.AuthenticatorConfig{
		SystemTenantID: cfg.SystemTenantID,
	}, logger)
	manager := session.NewManager(session.ManagerConfig{
		Secret:      secret,
		MaxAge:      cfg.SessionMaxAge,
		IdleTimeout: cfg.SessionIdle,
		UpdateAge:   cfg.SessionUpdateAge,
		Secure:      cfg.CookieSecure(),
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.CookieSecure()))
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.Metrics())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{"Content-Type", "X-Request-ID", "X-CSRF-Token"},
		AllowCredentials: true,
	}))

	// Session and audit middleware
	e.Use(auth.RequestMeta())
	e.Use(auth.SessionMiddleware(auth.SessionConfig{
		Manager: manager,
		Logger:  logger,
		Skipper: auth.SessionSkipper,
	}))
	e.Use(middleware.DeniedAudit(writer, logger))

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(d.Checks))
	e.GET("/metrics", middleware.MetricsHandler(reg))

	// Auth endpoints
	loginLimit := middleware.RateLimit(middleware.LoginRateLimitConfig(cfg.LoginRateLimitRPS))
	auth.NewHandler(authn, manager, writer).RegisterRoutes(e.Group("/api/auth"), loginLimit)

	// API
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		KeyFunc:           middleware.TenantIPKey,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1 := e.Group("/api/v1", middleware.RateLimit(rateLimitCfg))

	patient.NewHandler(patient.NewService(d.Patients, writer)).RegisterRoutes(apiV1)

	query := hipaa.NewQueryService(d.Audit, cfg.AuditPageSize, cfg.AuditMaxPageSize)
	hipaa.NewHandler(query, writer).RegisterRoutes(apiV1, auth.Guard(auth.AdminOnly))

	return e, th, nil
}

// newLockoutStore returns the configured lockout store and, for redis, a
// health check and a closer.
func newLockoutStore(cfg *config.Config) (throttle.Store, db.Check, func(), error) {
	if cfg.LockoutStore != config.LockoutStoreRedis {
		return throttle.NewMemoryStore(), nil, func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	store := throttle.NewRedisStore(client)
	return store, store.Ping, func() { _ = client.Close() }, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	lockouts, redisPing, closeLockouts, err := newLockoutStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure lockout store")
	}
	defer closeLockouts()

	cipher, err := hipaa.NewFieldCipher(cfg.PHIEncryptionKeys, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid PHI_ENCRYPTION_KEYS")
	}

	d := deps{
		Audit:    hipaa.NewPGStore(pool),
		Creds:    account.NewService(account.NewRepo(pool)),
		Patients: patient.NewRepo(pool, cipher),
		Lockouts: lockouts,
		Checks:   map[string]db.Check{"postgres": db.PoolCheck(pool)},
	}
	if redisPing != nil {
		d.Checks["redis"] = redisPing
	}

	e, th, err := newServer(cfg, d, newRegistry(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	th.Start(ctx)
	defer th.Close()

	return serve(ctx, e, cfg, pool, logger)
}

func serve(ctx context.Context, e *echo.Echo, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) error {
	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		logger.Error().Err(err).Msg("server error")
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Int32("open_conns", pool.Stat().TotalConns()).Msg("server stopped")
	return nil
}
