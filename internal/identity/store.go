// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identity

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Transactor runs a function inside a unit of work.
// The function receives a context carrying the transaction; store methods
// called with that context join it. A nil return commits, anything else
// (including a panic) rolls back.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store persists users, credentials, secrets and sessions.
type Store interface {
	Transactor

	// CreateUser inserts an empty, active user and returns its id.
	CreateUser(ctx context.Context) (ulid.ULID, error)

	// CreateCredential binds a login to a user. Returns ErrDuplicateLogin
	// if the login is already taken.
	CreateCredential(ctx context.Context, kind, login string, userID ulid.ULID) (ulid.ULID, error)

	// CreateSecret stores the password digest of a user.
	CreateSecret(ctx context.Context, userID ulid.ULID, digest string) error

	// FindCredentialByLogin returns the credential of an active user.
	// Returns ErrNotFound otherwise.
	FindCredentialByLogin(ctx context.Context, login string) (*Credential, error)

	// FindSecretByUserID returns ErrNotFound if the user has no secret.
	FindSecretByUserID(ctx context.Context, userID ulid.ULID) (*Secret, error)

	// UpdateFailureLogin persists the failure counter and lock deadline.
	UpdateFailureLogin(ctx context.Context, credentialID ulid.ULID, attempts int, lockedUntil *time.Time) error

	// ResetFailureLogin zeroes the counter, clears the lock and sets
	// confirmed_at if it is unset.
	ResetFailureLogin(ctx context.Context, credentialID ulid.ULID) error

	// CreateSession disables every live session of the credential and
	// inserts a new live one carrying refreshToken.
	CreateSession(ctx context.Context, credentialID ulid.ULID, refreshToken string) error

	// ConsumeSessionAndIssueNext disables the live session holding oldToken
	// and, if its credential may still refresh, inserts a session holding
	// newToken. Returns ErrNotFound if no live session holds oldToken or the
	// credential is not eligible; the old session stays disabled either way.
	ConsumeSessionAndIssueNext(ctx context.Context, oldToken, newToken string) (*Credential, error)

	// UpgradeSecretDigest replaces the digest of a secret.
	UpgradeSecretDigest(ctx context.Context, secretID ulid.ULID, digest string) error

	// SoftDeleteUser sets deleted_at if unset. Unknown users are ignored.
	SoftDeleteUser(ctx context.Context, userID ulid.ULID) error

	// RestoreUser clears deleted_at. Unknown users are ignored.
	RestoreUser(ctx context.Context, userID ulid.ULID) error

	// FindUserByID returns ErrNotFound if the user does not exist.
	FindUserByID(ctx context.Context, userID ulid.ULID) (*User, error)
}
