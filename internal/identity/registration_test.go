// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/identity/internal/identity"
	"github.com/holomush/identity/internal/identity/identitytest"
	"github.com/holomush/identity/pkg/errutil"
)

func TestRegistrationService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates user credential and secret", func(t *testing.T) {
		h := newHarness(t)

		require.NoError(t, h.register.Register(ctx, "  Alice ", "correct horse"))

		cred, ok := h.Store.Credential("alice")
		require.True(t, ok)
		assert.Equal(t, identity.CredentialKindUsername, cred.Kind)
		assert.Zero(t, cred.FailedAttempts)
		assert.Nil(t, cred.ConfirmedAt)
		assert.Nil(t, cred.LockedUntil)

		user, ok := h.Store.User(cred.UserID)
		require.True(t, ok)
		assert.True(t, user.IsActive())

		secret, ok := h.Store.Secret(cred.UserID)
		require.True(t, ok)
		assert.Equal(t, identitytest.Digest(1, "correct horse"), secret.PasswordDigest)

		users, creds, secrets, sessions := h.Store.Counts()
		assert.Equal(t, []int{1, 1, 1, 0}, []int{users, creds, secrets, sessions})
		assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Registrations.WithLabelValues(identity.ResultSuccess)), 0)
	})

	t.Run("duplicate login after normalization is rejected", func(t *testing.T) {
		h := newHarness(t)
		h.mustRegister(t, "alice", "correct horse")

		err := h.register.Register(ctx, "ALICE ", "another password")

		errutil.AssertErrorCode(t, err, identity.CodeDuplicateLogin)
		assert.Equal(t, identity.KindDuplicateLogin, identity.KindOf(err))
		users, creds, secrets, _ := h.Store.Counts()
		assert.Equal(t, []int{1, 1, 1}, []int{users, creds, secrets}, "second user must be rolled back")
		assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Registrations.WithLabelValues(string(identity.KindDuplicateLogin))), 0)
	})

	t.Run("hash failure persists nothing", func(t *testing.T) {
		h := newHarness(t)
		h.Hasher.HashErr = errors.New("out of memory")

		err := h.register.Register(ctx, "alice", "correct horse")

		errutil.AssertErrorCode(t, err, identity.CodeUpstreamFailure)
		assert.Equal(t, "unknown system error", err.Error())
		users, creds, secrets, _ := h.Store.Counts()
		assert.Equal(t, []int{0, 0, 0}, []int{users, creds, secrets})
	})

	t.Run("store failure rolls back every row", func(t *testing.T) {
		h := newHarness(t)
		h.Store.FailOn("CreateSecret", errors.New("disk full"))

		err := h.register.Register(ctx, "alice", "correct horse")

		errutil.AssertErrorCode(t, err, identity.CodeUpstreamFailure)
		assert.Equal(t, "unknown database error", err.Error())
		assert.NotContains(t, err.Error(), "disk full")
		users, creds, secrets, _ := h.Store.Counts()
		assert.Equal(t, []int{0, 0, 0}, []int{users, creds, secrets})
		assert.Contains(t, h.logs.String(), "registration failed")
	})

	t.Run("invalid input", func(t *testing.T) {
		h := newHarness(t)
		tests := []struct {
			name     string
			login    string
			password string
		}{
			{"empty login", "   ", "correct horse"},
			{"login with space", "al ice", "correct horse"},
			{"short password", "alice", "short"},
			{"empty password", "alice", ""},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := h.register.Register(ctx, tt.login, tt.password)
				errutil.AssertErrorCode(t, err, identity.CodeValidationFailed)
			})
		}
		users, _, _, _ := h.Store.Counts()
		assert.Zero(t, users)
	})

	t.Run("password is stored verbatim", func(t *testing.T) {
		h := newHarness(t)
		cred := h.mustRegister(t, "alice", " padded password ")

		secret, ok := h.Store.Secret(cred.UserID)
		require.True(t, ok)
		assert.Equal(t, identitytest.Digest(1, " padded password "), secret.PasswordDigest)
	})
}

func TestRegistrationService_StoreCalls(t *testing.T) {
	ctx := context.Background()
	userID := ulid.Make()

	store := new(identitytest.MockStore)
	store.On("InTransaction", ctx, mock.Anything).Return(nil)
	store.On("CreateUser", ctx).Return(userID, nil)
	store.On("CreateCredential", ctx, identity.CredentialKindUsername, "bob", userID).Return(ulid.Make(), nil)
	store.On("CreateSecret", ctx, userID, identitytest.Digest(7, "correct horse")).Return(nil)

	svc, err := identity.NewRegistrationService(identity.Deps{
		Store:  store,
		Hasher: &identitytest.Hasher{Cost: 7},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Register(ctx, "Bob", "correct horse"))
	store.AssertExpectations(t)
}

func TestRegistrationService_DuplicateFromStore(t *testing.T) {
	ctx := context.Background()
	userID := ulid.Make()

	store := new(identitytest.MockStore)
	store.On("InTransaction", ctx, mock.Anything).Return(nil)
	store.On("CreateUser", ctx).Return(userID, nil)
	store.On("CreateCredential", ctx, identity.CredentialKindUsername, "bob", userID).
		Return(ulid.ULID{}, identity.ErrDuplicateLogin)

	svc, err := identity.NewRegistrationService(identity.Deps{Store: store, Hasher: &identitytest.Hasher{}})
	require.NoError(t, err)

	err = svc.Register(ctx, "bob", "correct horse")
	errutil.AssertErrorCode(t, err, identity.CodeDuplicateLogin)
	store.AssertNotCalled(t, "CreateSecret", mock.Anything, mock.Anything, mock.Anything)
}
