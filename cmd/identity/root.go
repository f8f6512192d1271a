// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/identity/internal/config"
	"github.com/holomush/identity/internal/identity"
	"github.com/holomush/identity/internal/logging"
	"github.com/holomush/identity/internal/password"
	"github.com/holomush/identity/internal/token"
	"github.com/holomush/identity/pkg/errutil"
)

// app is the state shared by the commands of one invocation.
type app struct {
	deps        *Deps
	configFile  string
	metricsFile string
}

// NewRootCmd creates the root command for the identity CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	a := &app{deps: deps.withDefaults()}

	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Identity service operator tool",
		Long: `identity manages accounts of the identity service: registration,
login with lockout, refresh token rotation, password changes and
soft deletion, plus the PostgreSQL schema they live in.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&a.metricsFile, "metrics-textfile", "",
		"write identity counters in Prometheus text format to this file on exit")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(a.newMigrateCmd())
	cmd.AddCommand(a.newRegisterCmd())
	cmd.AddCommand(a.newLoginCmd())
	cmd.AddCommand(a.newRefreshCmd())
	cmd.AddCommand(a.newPasswdCmd())
	cmd.AddCommand(a.newUserCmd())
	cmd.AddCommand(a.newWhoamiCmd())
	cmd.AddCommand(a.newConfigCmd())

	return cmd
}

// loadConfig reads the configuration layers visible to cmd.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.LoadOptions{File: a.configFile, Flags: cmd.Flags()})
}

// setup loads the configuration and builds the logger that writes to the
// command's error stream.
func (a *app) setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.Setup("identity", version, cfg.LogOptions(), cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// services are the identity flows built from configuration.
type services struct {
	register *identity.RegistrationService
	auth     *identity.AuthService
	refresh  *identity.RefreshService
	password *identity.PasswordService
	account  *identity.AccountService
}

// buildServices opens the store and builds the flows. Flows that issue
// access tokens are only built when withAccess is set, so commands that do
// not need them run without a signing secret.
func (a *app) buildServices(ctx context.Context, cmd *cobra.Command, withAccess bool) (*services, func(), error) {
	cfg, logger, err := a.setup(cmd)
	if err != nil {
		return nil, nil, err
	}

	hasher, err := password.NewArgon2(cfg.PasswordParams())
	if err != nil {
		return nil, nil, err
	}
	dummy, err := hasher.DummyDigest()
	if err != nil {
		return nil, nil, err
	}
	refresh, err := token.NewRefreshGenerator(cfg.Token.RefreshBytes)
	if err != nil {
		return nil, nil, err
	}

	deps := identity.Deps{
		Hasher:      hasher,
		Verifier:    hasher,
		Tokens:      refresh,
		Lockout:     cfg.LockoutPolicy(),
		Passwords:   cfg.PasswordPolicy(),
		DummyDigest: dummy,
		Logger:      logger,
		Metrics:     identity.NewMetrics(a.deps.Registry),
	}
	if withAccess {
		access, err := token.NewAccessIssuer(cfg.AccessConfig())
		if err != nil {
			return nil, nil, err
		}
		deps.AccessTokens = access
	}

	st, closeStore, err := a.deps.StoreOpener(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	deps.Store = st
	cleanup := func() {
		closeStore()
		a.writeMetrics(logger)
	}

	svc, err := newServices(deps, withAccess)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

// writeMetrics dumps the registry for the node_exporter textfile collector.
func (a *app) writeMetrics(logger *slog.Logger) {
	if a.metricsFile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(a.metricsFile, a.deps.Registry); err != nil {
		errutil.LogError(logger, "failed to write metrics textfile",
			oops.Code("METRICS_WRITE_FAILED").With("file", a.metricsFile).Wrap(err))
	}
}

func newServices(deps identity.Deps, withAccess bool) (*services, error) {
	svc := &services{}
	var err error
	if svc.register, err = identity.NewRegistrationService(deps); err != nil {
		return nil, err
	}
	if svc.password, err = identity.NewPasswordService(deps); err != nil {
		return nil, err
	}
	if svc.account, err = identity.NewAccountService(deps); err != nil {
		return nil, err
	}
	if !withAccess {
		return svc, nil
	}
	if svc.auth, err = identity.NewAuthService(deps); err != nil {
		return nil, err
	}
	if svc.refresh, err = identity.NewRefreshService(deps); err != nil {
		return nil, err
	}
	return svc, nil
}

func requireDatabaseURL(cfg *config.Config) error {
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("field", "database.url").
			Errorf("database.url is required (set --database-url or IDENTITY_DATABASE__URL)")
	}
	return nil
}
