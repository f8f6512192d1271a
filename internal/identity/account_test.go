// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/identity/internal/identity"
	"github.com/holomush/identity/internal/identity/identitytest"
	"github.com/holomush/identity/pkg/errutil"
)

func TestAccountService_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("soft delete hides the user from login", func(t *testing.T) {
		h := newHarness(t)
		cred := h.mustRegister(t, testLogin, testPassword)

		require.NoError(t, h.account.SoftDelete(ctx, cred.UserID))

		user, err := h.account.FindUser(ctx, cred.UserID)
		require.NoError(t, err)
		require.NotNil(t, user.DeletedAt)
		assert.Equal(t, identitytest.Epoch, *user.DeletedAt)

		_, err = h.auth.Authenticate(ctx, testLogin, testPassword)
		errutil.AssertErrorCode(t, err, identity.CodeInvalidCredentials)
	})

	t.Run("soft delete is idempotent", func(t *testing.T) {
		h := newHarness(t)
		cred := h.mustRegister(t, testLogin, testPassword)
		require.NoError(t, h.account.SoftDelete(ctx, cred.UserID))
		h.Clock.Advance(time.Hour)

		require.NoError(t, h.account.SoftDelete(ctx, cred.UserID))

		user, ok := h.Store.User(cred.UserID)
		require.True(t, ok)
		assert.Equal(t, identitytest.Epoch, *user.DeletedAt, "first deletion time is kept")
	})

	t.Run("restore allows login again", func(t *testing.T) {
		h := newHarness(t)
		cred := h.mustRegister(t, testLogin, testPassword)
		require.NoError(t, h.account.SoftDelete(ctx, cred.UserID))

		require.NoError(t, h.account.Restore(ctx, cred.UserID))
		require.NoError(t, h.account.Restore(ctx, cred.UserID))

		h.mustLogin(t, testLogin, testPassword)
	})

	t.Run("unknown user is a no-op", func(t *testing.T) {
		h := newHarness(t)
		id := ulid.Make()

		require.NoError(t, h.account.SoftDelete(ctx, id))
		require.NoError(t, h.account.Restore(ctx, id))
	})

	t.Run("find unknown user", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.account.FindUser(ctx, ulid.Make())

		errutil.AssertErrorCode(t, err, identity.CodeUserNotFound)
		assert.Equal(t, identity.KindUserNotFound, identity.KindOf(err))
	})

	t.Run("store failures are opaque", func(t *testing.T) {
		h := newHarness(t)
		h.Store.FailOn("SoftDeleteUser", errors.New("connection refused"))
		h.Store.FailOn("RestoreUser", errors.New("connection refused"))
		h.Store.FailOn("FindUserByID", errors.New("connection refused"))
		id := ulid.Make()

		errutil.AssertErrorCode(t, h.account.SoftDelete(ctx, id), identity.CodeUpstreamFailure)
		errutil.AssertErrorCode(t, h.account.Restore(ctx, id), identity.CodeUpstreamFailure)
		_, err := h.account.FindUser(ctx, id)
		errutil.AssertErrorCode(t, err, identity.CodeUpstreamFailure)
	})
}
