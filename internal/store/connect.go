// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions configures Connect.
type ConnectOptions struct {
	URL string
	// MaxConns overrides the pool size when positive.
	MaxConns int32
	// Attempts is the number of pings tried before giving up. Minimum 1.
	Attempts uint64
	// Backoff is the initial delay between pings; it doubles each time.
	Backoff time.Duration
	Logger  *slog.Logger
}

// Connect opens a pgx pool and waits until the database answers a ping.
func Connect(ctx context.Context, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}

	if err := ping(ctx, pool, opts); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func ping(ctx context.Context, pool *pgxpool.Pool, opts ConnectOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attempts := max(opts.Attempts, 1)
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var tried uint64
	b := retry.WithMaxRetries(attempts-1, retry.NewExponential(backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		tried++
		if err := pool.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not reachable", "attempt", tried, "of", attempts, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("attempts", tried).Wrap(err)
	}
	return nil
}
