// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identity_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/holomush/identity/internal/identity"
	"github.com/holomush/identity/internal/identity/identitytest"
)

// harness wires every service to one in-memory fixture.
type harness struct {
	*identitytest.Fixture
	logs     *bytes.Buffer
	metrics  *identity.Metrics
	register *identity.RegistrationService
	auth     *identity.AuthService
	refresh  *identity.RefreshService
	password *identity.PasswordService
	account  *identity.AccountService
}

func newHarness(t *testing.T, opts ...func(*identity.Deps)) *harness {
	t.Helper()
	h := &harness{
		Fixture: identitytest.NewFixture(),
		logs:    &bytes.Buffer{},
		metrics: identity.NewMetrics(prometheus.NewRegistry()),
	}
	deps := h.Deps()
	deps.Logger = slog.New(slog.NewJSONHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	deps.Metrics = h.metrics
	for _, opt := range opts {
		opt(&deps)
	}

	var err error
	h.register, err = identity.NewRegistrationService(deps)
	require.NoError(t, err)
	h.auth, err = identity.NewAuthService(deps)
	require.NoError(t, err)
	h.refresh, err = identity.NewRefreshService(deps)
	require.NoError(t, err)
	h.password, err = identity.NewPasswordService(deps)
	require.NoError(t, err)
	h.account, err = identity.NewAccountService(deps)
	require.NoError(t, err)
	return h
}

// mustRegister registers login and returns its credential.
func (h *harness) mustRegister(t *testing.T, login, password string) identity.Credential {
	t.Helper()
	require.NoError(t, h.register.Register(context.Background(), login, password))
	cred, ok := h.Store.Credential(identity.NormalizeLogin(login))
	require.True(t, ok)
	return cred
}

// mustLogin authenticates and returns the issued tokens.
func (h *harness) mustLogin(t *testing.T, login, password string) *identity.Tokens {
	t.Helper()
	tokens, err := h.auth.Authenticate(context.Background(), login, password)
	require.NoError(t, err)
	return tokens
}

// failLogins submits n wrong passwords, ignoring the result.
func (h *harness) failLogins(n int, login string) {
	for range n {
		_, _ = h.auth.Authenticate(context.Background(), login, "wrong-password") //nolint:errcheck // only the side effects matter
	}
}

func (h *harness) credential(t *testing.T, login string) identity.Credential {
	t.Helper()
	cred, ok := h.Store.Credential(login)
	require.True(t, ok)
	return cred
}

func (h *harness) liveSessions(t *testing.T, credentialID ulid.ULID) []identity.Session {
	t.Helper()
	return h.Store.LiveSessions(credentialID)
}
