package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	LockoutStoreMemory = "memory"
	LockoutStoreRedis  = "redis"

	minSessionSecretLen = 32
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	LoginRateLimitRPS float64       `mapstructure:"LOGIN_RATE_LIMIT_RPS"`
	SessionSecret     string        `mapstructure:"SESSION_SECRET"`
	SessionIdle       time.Duration `mapstructure:"SESSION_IDLE_TIMEOUT"`
	SessionMaxAge     time.Duration `mapstructure:"SESSION_MAX_AGE"`
	SessionUpdateAge  time.Duration `mapstructure:"SESSION_UPDATE_AGE"`
	LoginMaxAttempts  int           `mapstructure:"LOGIN_MAX_ATTEMPTS"`
	LoginLockout      time.Duration `mapstructure:"LOGIN_LOCKOUT_DURATION"`
	LoginSweep        time.Duration `mapstructure:"LOGIN_SWEEP_INTERVAL"`
	LockoutStore      string        `mapstructure:"LOCKOUT_STORE"`
	AuditPageSize     int           `mapstructure:"AUDIT_PAGE_SIZE"`
	AuditMaxPageSize  int           `mapstructure:"AUDIT_MAX_PAGE_SIZE"`
	SystemTenantID    string        `mapstructure:"SYSTEM_TENANT_ID"`
	TLSEnabled        bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile       string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile        string        `mapstructure:"TLS_KEY_FILE"`
	PHIEncryptionKeys string        `mapstructure:"PHI_ENCRYPTION_KEYS"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOGIN_RATE_LIMIT_RPS",
	"SESSION_SECRET", "SESSION_IDLE_TIMEOUT", "SESSION_MAX_AGE", "SESSION_UPDATE_AGE",
	"LOGIN_MAX_ATTEMPTS", "LOGIN_LOCKOUT_DURATION", "LOGIN_SWEEP_INTERVAL", "LOCKOUT_STORE",
	"AUDIT_PAGE_SIZE", "AUDIT_MAX_PAGE_SIZE", "SYSTEM_TENANT_ID",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
	"PHI_ENCRYPTION_KEYS", "REQUEST_TIMEOUT", "LOG_LEVEL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("LOGIN_RATE_LIMIT_RPS", 1)
	v.SetDefault("SESSION_IDLE_TIMEOUT", "30m")
	v.SetDefault("SESSION_MAX_AGE", "24h")
	v.SetDefault("SESSION_UPDATE_AGE", "5m")
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_LOCKOUT_DURATION", "15m")
	v.SetDefault("LOGIN_SWEEP_INTERVAL", "60s")
	v.SetDefault("LOCKOUT_STORE", LockoutStoreMemory)
	v.SetDefault("AUDIT_PAGE_SIZE", 50)
	v.SetDefault("AUDIT_MAX_PAGE_SIZE", 500)
	v.SetDefault("SYSTEM_TENANT_ID", "system")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	cfg.LockoutStore = strings.ToLower(strings.TrimSpace(cfg.LockoutStore))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// CookieSecure reports whether session, callback-url and CSRF cookies carry
// the Secure attribute and the __Secure-/__Host- name prefixes.
func (c *Config) CookieSecure() bool {
	return c.IsProduction() || c.TLSEnabled
}

// Validate checks that the configuration is safe to run. Outside development
// a session signing secret of at least 32 bytes is required, and the redis
// lockout store needs REDIS_URL.
func (c *Config) Validate() error {
	if !c.IsDev() && len(c.SessionSecret) < minSessionSecretLen {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes outside development (ENV=%q)",
			minSessionSecretLen, c.Env)
	}

	switch c.LockoutStore {
	case LockoutStoreMemory:
	case LockoutStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when LOCKOUT_STORE is %q", LockoutStoreRedis)
		}
	default:
		return fmt.Errorf("LOCKOUT_STORE must be %q or %q, got %q", LockoutStoreMemory, LockoutStoreRedis, c.LockoutStore)
	}

	durations := map[string]time.Duration{
		"SESSION_IDLE_TIMEOUT":   c.SessionIdle,
		"SESSION_MAX_AGE":        c.SessionMaxAge,
		"SESSION_UPDATE_AGE":     c.SessionUpdateAge,
		"LOGIN_LOCKOUT_DURATION": c.LoginLockout,
		"LOGIN_SWEEP_INTERVAL":   c.LoginSweep,
		"REQUEST_TIMEOUT":        c.RequestTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.SessionIdle > c.SessionMaxAge {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT (%s) cannot exceed SESSION_MAX_AGE (%s)", c.SessionIdle, c.SessionMaxAge)
	}

	if c.LoginRateLimitRPS <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT_RPS must be positive, got %v", c.LoginRateLimitRPS)
	}
	if c.LoginMaxAttempts <= 0 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS must be positive, got %d", c.LoginMaxAttempts)
	}
	if c.AuditPageSize <= 0 || c.AuditMaxPageSize < c.AuditPageSize {
		return fmt.Errorf("AUDIT_PAGE_SIZE must be positive and not exceed AUDIT_MAX_PAGE_SIZE")
	}
	if strings.TrimSpace(c.SystemTenantID) == "" {
		return fmt.Errorf("SYSTEM_TENANT_ID must not be empty")
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
