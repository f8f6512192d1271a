// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identitytest

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/identity/internal/identity"
)

var _ identity.Store = (*MockStore)(nil)

// MockStore is a testify mock of identity.Store.
// InTransaction records the call and, unless it was told to return an
// error, runs fn with the caller's context.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}

func (m *MockStore) CreateUser(ctx context.Context) (ulid.ULID, error) {
	args := m.Called(ctx)
	return args.Get(0).(ulid.ULID), args.Error(1)
}

func (m *MockStore) CreateCredential(ctx context.Context, kind, login string, userID ulid.ULID) (ulid.ULID, error) {
	args := m.Called(ctx, kind, login, userID)
	return args.Get(0).(ulid.ULID), args.Error(1)
}

func (m *MockStore) CreateSecret(ctx context.Context, userID ulid.ULID, digest string) error {
	args := m.Called(ctx, userID, digest)
	return args.Error(0)
}

func (m *MockStore) FindCredentialByLogin(ctx context.Context, login string) (*identity.Credential, error) {
	args := m.Called(ctx, login)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Credential), args.Error(1)
}

func (m *MockStore) FindSecretByUserID(ctx context.Context, userID ulid.ULID) (*identity.Secret, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Secret), args.Error(1)
}

func (m *MockStore) UpdateFailureLogin(ctx context.Context, credentialID ulid.ULID, attempts int, lockedUntil *time.Time) error {
	args := m.Called(ctx, credentialID, attempts, lockedUntil)
	return args.Error(0)
}

func (m *MockStore) ResetFailureLogin(ctx context.Context, credentialID ulid.ULID) error {
	args := m.Called(ctx, credentialID)
	return args.Error(0)
}

func (m *MockStore) CreateSession(ctx context.Context, credentialID ulid.ULID, refreshToken string) error {
	args := m.Called(ctx, credentialID, refreshToken)
	return args.Error(0)
}

func (m *MockStore) ConsumeSessionAndIssueNext(ctx context.Context, oldToken, newToken string) (*identity.Credential, error) {
	args := m.Called(ctx, oldToken, newToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Credential), args.Error(1)
}

func (m *MockStore) UpgradeSecretDigest(ctx context.Context, secretID ulid.ULID, digest string) error {
	args := m.Called(ctx, secretID, digest)
	return args.Error(0)
}

func (m *MockStore) SoftDeleteUser(ctx context.Context, userID ulid.ULID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockStore) RestoreUser(ctx context.Context, userID ulid.ULID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockStore) FindUserByID(ctx context.Context, userID ulid.ULID) (*identity.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}
