// Package config loads meterd settings from the environment. A .env file in
// the working directory is read first when present; real environment
// variables take precedence over it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// TrustedProxies is a comma-separated list of proxy IPs/CIDRs whose
	// X-Forwarded-For is honored. Empty trusts none.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisAddr   string `envconfig:"REDIS_ADDR"`

	JWTSecret          string `envconfig:"JWT_SECRET"`
	JWTIssuer          string `envconfig:"JWT_ISSUER" default:"user-service"`
	JWTAccessTokenMins int    `envconfig:"JWT_ACCESS_TOKEN_MINUTES" default:"30"`

	AuditPersistEnabled bool `envconfig:"AUDIT_PERSIST_ENABLED" default:"false"`
	AuditPersistAsync   bool `envconfig:"AUDIT_PERSIST_ASYNC" default:"false"`
	AuditWorkers        int  `envconfig:"AUDIT_WORKERS" default:"4"`

	EntitlementLockTimeout time.Duration `envconfig:"ENTITLEMENT_LOCK_TIMEOUT" default:"3s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// ErrMissingDatabaseURL is returned by Validate when DATABASE_URL is unset.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	return &c, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return ErrMissingDatabaseURL
	}
	if c.JWTAccessTokenMins <= 0 {
		return fmt.Errorf("JWT_ACCESS_TOKEN_MINUTES must be positive, got %d", c.JWTAccessTokenMins)
	}
	if c.EntitlementLockTimeout <= 0 {
		return fmt.Errorf("ENTITLEMENT_LOCK_TIMEOUT must be positive, got %s", c.EntitlementLockTimeout)
	}
	return nil
}

// AccessTokenTTL is JWT_ACCESS_TOKEN_MINUTES as a duration.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWTAccessTokenMins) * time.Minute
}

// IsProd reports whether APP_ENV names a production environment.
func (c *Config) IsProd() bool {
	switch strings.ToLower(strings.TrimSpace(c.AppEnv)) {
	case "prod", "production":
		return true
	}
	return false
}
