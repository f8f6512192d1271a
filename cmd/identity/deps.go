// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/identity/internal/config"
	"github.com/holomush/identity/internal/identity"
	identitypg "github.com/holomush/identity/internal/identity/postgres"
	"github.com/holomush/identity/internal/store"
)

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// StoreOpener opens the identity store and returns a cleanup function.
	// Default: a pgx pool from store.Connect behind the postgres store.
	StoreOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (identity.Store, func(), error)

	// MigratorFactory creates a schema migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// Registry receives the identity counters and is written out by
	// --metrics-textfile. Default: a fresh prometheus.Registry.
	Registry *prometheus.Registry
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Force(version int) error
	Status() (*store.Status, error)
	Close() error
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.StoreOpener == nil {
		out.StoreOpener = openPostgres
	}
	if out.Registry == nil {
		out.Registry = prometheus.NewRegistry()
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			m, err := store.NewMigrator(databaseURL)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	return &out
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (identity.Store, func(), error) {
	if err := requireDatabaseURL(cfg); err != nil {
		return nil, nil, err
	}
	pool, err := store.Connect(ctx, cfg.ConnectOptions(logger))
	if err != nil {
		return nil, nil, err
	}
	return identitypg.New(pool), pool.Close, nil
}
