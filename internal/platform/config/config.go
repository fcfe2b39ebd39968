// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, token codec) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// MinSigningSecretLength is the shortest accepted HMAC secret for signed tokens.
const MinSigningSecretLength = 32

// Supported notifier backends.
const (
	NotifierLog  = "log"
	NotifierSMTP = "smtp"
)

// # Configuration Schema

// DatabaseConfig holds the settings needed to reach and migrate PostgreSQL.
//
// It is split out so that operator tooling can load it without the full
// server configuration.
type DatabaseConfig struct {
	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`
}

// Config holds all runtime configuration for the accounts API server.
type Config struct {
	DatabaseConfig

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Key-Value Cache (Redis)
	RedisURL      string `env:"REDIS_URL,required"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"8"`

	// SigningSecret authenticates stateless verification links.
	SigningSecret string `env:"SIGNING_SECRET,required"`

	// RS256 key pair for access tokens
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH,required"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,required"`

	// Link targets
	FrontendURL   string `env:"FRONTEND_URL"    envDefault:"http://localhost:3000"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	// Token lifetimes
	AccessTokenTTL       time.Duration `env:"ACCESS_TOKEN_TTL"       envDefault:"1h"`
	VerificationTokenTTL time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"24h"`
	ResetTokenTTL        time.Duration `env:"RESET_TOKEN_TTL"        envDefault:"24h"`

	// Brute-force mitigation
	LockoutThreshold int           `env:"LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutWindow    time.Duration `env:"LOCKOUT_WINDOW"    envDefault:"24h"`
	LockoutEnforce   bool          `env:"LOCKOUT_ENFORCE"   envDefault:"false"`

	// Outbound notifications
	Notifier     string        `env:"NOTIFIER"      envDefault:"log"`
	SMTPHost     string        `env:"SMTP_HOST"`
	SMTPPort     int           `env:"SMTP_PORT"     envDefault:"587"`
	SMTPUsername string        `env:"SMTP_USERNAME"`
	SMTPPassword string        `env:"SMTP_PASSWORD"`
	SMTPFrom     string        `env:"SMTP_FROM"     envDefault:"no-reply@localhost"`
	SMTPTimeout  time.Duration `env:"SMTP_TIMEOUT"  envDefault:"10s"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`

	// Comma-separated CIDRs or addresses whose forwarding headers are believed
	TrustedProxies string `env:"TRUSTED_PROXIES"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and validates it.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabase parses only the [DatabaseConfig] subset.
func LoadDatabase() (*DatabaseConfig, error) {
	cfg := &DatabaseConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	return cfg, nil
}

// Validate rejects combinations that parse correctly but cannot run.
func (c *Config) Validate() error {
	var problems []error

	if len(c.SigningSecret) < MinSigningSecretLength {
		problems = append(problems, fmt.Errorf("SIGNING_SECRET must be at least %d bytes", MinSigningSecretLength))
	}
	if c.AccessTokenTTL <= 0 || c.VerificationTokenTTL <= 0 || c.ResetTokenTTL <= 0 {
		problems = append(problems, errors.New("token TTLs must be positive"))
	}
	if c.LockoutThreshold < 1 {
		problems = append(problems, errors.New("LOCKOUT_THRESHOLD must be at least 1"))
	}
	if c.LockoutWindow <= 0 {
		problems = append(problems, errors.New("LOCKOUT_WINDOW must be positive"))
	}

	switch c.Notifier {
	case NotifierLog:
	case NotifierSMTP:
		if c.SMTPHost == "" {
			problems = append(problems, errors.New("SMTP_HOST is required when NOTIFIER=smtp"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown NOTIFIER %q", c.Notifier))
	}

	if _, err := c.TrustedProxyPrefixes(); err != nil {
		problems = append(problems, err)
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(problems...))
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOrigins returns the frontend origin plus any EXTRA_ORIGINS entries.
func (c *Config) AllowedOrigins() []string {
	origins := []string{strings.TrimRight(c.FrontendURL, "/")}
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, strings.TrimRight(origin, "/"))
		}
	}
	return origins
}

// TrustedProxyPrefixes parses TRUSTED_PROXIES. A bare address becomes a
// single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, entry := range strings.Split(c.TrustedProxies, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES entry %q is not a CIDR", entry)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}

		address, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP address", entry)
		}
		address = address.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(address, address.BitLen()))
	}
	return prefixes, nil
}
