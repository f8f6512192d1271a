// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/holomush/identity/internal/config"
	"github.com/holomush/identity/internal/identity"
	"github.com/holomush/identity/internal/identity/identitytest"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// cli runs commands against one in-memory store.
type cli struct {
	t        *testing.T
	store    *identitytest.Store
	registry *prometheus.Registry
	stderr   bytes.Buffer
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("IDENTITY_PASSWORD__MEMORY_KIB", "8192")
	t.Setenv("IDENTITY_PASSWORD__ITERATIONS", "1")
	t.Setenv("IDENTITY_TOKEN__SECRET", testSecret)
	return &cli{t: t, store: identitytest.NewStore(nil)}
}

func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	c.registry = prometheus.NewRegistry()
	c.stderr.Reset()

	deps := &Deps{
		StoreOpener: func(context.Context, *config.Config, *slog.Logger) (identity.Store, func(), error) {
			return c.store, func() {}, nil
		},
		Registry: c.registry,
	}
	cmd := newRootCmd(deps)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&c.stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// fields parses "key: value" lines.
func fields(t *testing.T, out string) map[string]string {
	t.Helper()
	m := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		key, value, ok := strings.Cut(line, ":")
		require.True(t, ok, "unexpected line %q", line)
		m[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return m
}

func (c *cli) mustRegister(login, password string) {
	c.t.Helper()
	_, err := c.run(password+"\n", "register", "--login", login)
	require.NoError(c.t, err)
}

func (c *cli) mustLogin(login, password string) map[string]string {
	c.t.Helper()
	out, err := c.run("", "login", "--login", login, "--password", password)
	require.NoError(c.t, err)
	return fields(c.t, out)
}
