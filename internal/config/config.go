// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads and validates the identity service configuration.
package config

import (
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/identity/internal/identity"
	"github.com/holomush/identity/internal/logging"
	"github.com/holomush/identity/internal/password"
	"github.com/holomush/identity/internal/store"
	"github.com/holomush/identity/internal/token"
)

// Config is the full service configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database" json:"database"`
	Log      LogConfig      `koanf:"log" json:"log"`
	Lockout  LockoutConfig  `koanf:"lockout" json:"lockout"`
	Password PasswordConfig `koanf:"password" json:"password"`
	Token    TokenConfig    `koanf:"token" json:"token"`
}

// DatabaseConfig locates and sizes the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url" json:"url" jsonschema:"description=PostgreSQL connection URL"`
	MaxConns        int32         `koanf:"max_conns" json:"max_conns" jsonschema:"minimum=1"`
	ConnectAttempts uint64        `koanf:"connect_attempts" json:"connect_attempts" jsonschema:"minimum=1"`
	ConnectBackoff  time.Duration `koanf:"connect_backoff" json:"connect_backoff" jsonschema:"type=string,pattern=^([0-9]+(ns|us|ms|s|m|h))+$"`
}

// LogConfig selects the log format and level.
type LogConfig struct {
	Format string `koanf:"format" json:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=warning,enum=error"`
}

// LockoutConfig mirrors identity.LockoutPolicy.
type LockoutConfig struct {
	Threshold int           `koanf:"threshold" json:"threshold" jsonschema:"minimum=1"`
	Cadence   int           `koanf:"cadence" json:"cadence" jsonschema:"minimum=1"`
	Duration  time.Duration `koanf:"duration" json:"duration" jsonschema:"type=string,pattern=^([0-9]+(ns|us|ms|s|m|h))+$"`
}

// PasswordConfig holds the argon2id cost and the password policy.
type PasswordConfig struct {
	MemoryKiB   uint32 `koanf:"memory_kib" json:"memory_kib" jsonschema:"minimum=8192"`
	Iterations  uint32 `koanf:"iterations" json:"iterations" jsonschema:"minimum=1"`
	Parallelism uint8  `koanf:"parallelism" json:"parallelism" jsonschema:"minimum=1"`
	SaltLength  uint32 `koanf:"salt_length" json:"salt_length" jsonschema:"minimum=16"`
	KeyLength   uint32 `koanf:"key_length" json:"key_length" jsonschema:"minimum=16"`
	MinLength   int    `koanf:"min_length" json:"min_length" jsonschema:"minimum=1"`
}

// TokenConfig configures access and refresh tokens.
// Secret is only required by commands that issue or parse access tokens.
type TokenConfig struct {
	Secret       string        `koanf:"secret" json:"secret" jsonschema:"minLength=32"`
	Issuer       string        `koanf:"issuer" json:"issuer"`
	AccessTTL    time.Duration `koanf:"access_ttl" json:"access_ttl" jsonschema:"type=string,pattern=^([0-9]+(ns|us|ms|s|m|h))+$"`
	RefreshBytes int           `koanf:"refresh_bytes" json:"refresh_bytes" jsonschema:"minimum=32"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	lockout := identity.DefaultLockoutPolicy()
	params := password.DefaultParams()
	return Config{
		Database: DatabaseConfig{
			MaxConns:        10,
			ConnectAttempts: 5,
			ConnectBackoff:  500 * time.Millisecond,
		},
		Log: LogConfig{
			Format: logging.FormatJSON,
			Level:  "info",
		},
		Lockout: LockoutConfig{
			Threshold: lockout.Threshold,
			Cadence:   lockout.Cadence,
			Duration:  lockout.Duration,
		},
		Password: PasswordConfig{
			MemoryKiB:   params.MemoryKiB,
			Iterations:  params.Iterations,
			Parallelism: params.Parallelism,
			SaltLength:  params.SaltLength,
			KeyLength:   params.KeyLength,
			MinLength:   identity.DefaultPasswordPolicy().MinLength,
		},
		Token: TokenConfig{
			AccessTTL:    token.DefaultAccessTTL,
			RefreshBytes: token.DefaultRefreshBytes,
		},
	}
}

// Validate checks every section. The access token secret is checked when
// an issuer is built, not here.
func (c Config) Validate() error {
	switch {
	case c.Database.MaxConns < 1:
		return invalid("database.max_conns", "must be at least 1")
	case c.Database.ConnectAttempts < 1:
		return invalid("database.connect_attempts", "must be at least 1")
	case c.Database.ConnectBackoff < 0:
		return invalid("database.connect_backoff", "must not be negative")
	case c.Log.Format != logging.FormatJSON && c.Log.Format != logging.FormatText:
		return invalid("log.format", "must be json or text")
	case c.Password.MinLength < 1:
		return invalid("password.min_length", "must be at least 1")
	case c.Token.AccessTTL <= 0:
		return invalid("token.access_ttl", "must be positive")
	case c.Token.RefreshBytes < token.MinRefreshBytes:
		return invalid("token.refresh_bytes", "must be at least 32")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if err := c.LockoutPolicy().Validate(); err != nil {
		return err
	}
	return c.PasswordParams().Validate()
}

func invalid(field, reason string) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf("%s %s", field, reason)
}

// LockoutPolicy returns the lockout section as an identity.LockoutPolicy.
func (c Config) LockoutPolicy() identity.LockoutPolicy {
	return identity.LockoutPolicy{
		Threshold: c.Lockout.Threshold,
		Cadence:   c.Lockout.Cadence,
		Duration:  c.Lockout.Duration,
	}
}

// PasswordPolicy returns the password acceptance policy.
func (c Config) PasswordPolicy() identity.PasswordPolicy {
	return identity.PasswordPolicy{MinLength: c.Password.MinLength}
}

// PasswordParams returns the argon2id parameters.
func (c Config) PasswordParams() password.Params {
	return password.Params{
		MemoryKiB:   c.Password.MemoryKiB,
		Iterations:  c.Password.Iterations,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
	}
}

// AccessConfig returns the access token issuer settings.
func (c Config) AccessConfig() token.AccessConfig {
	return token.AccessConfig{
		Secret: []byte(c.Token.Secret),
		Issuer: c.Token.Issuer,
		TTL:    c.Token.AccessTTL,
	}
}

// ConnectOptions returns the pool settings for store.Connect.
func (c Config) ConnectOptions(logger *slog.Logger) store.ConnectOptions {
	return store.ConnectOptions{
		URL:      c.Database.URL,
		MaxConns: c.Database.MaxConns,
		Attempts: c.Database.ConnectAttempts,
		Backoff:  c.Database.ConnectBackoff,
		Logger:   logger,
	}
}

// LogOptions returns the logging section as logging.Options.
func (c Config) LogOptions() logging.Options {
	return logging.Options{Format: c.Log.Format, Level: c.Log.Level}
}
