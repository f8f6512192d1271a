// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements identity.Store on PostgreSQL.
//
// Refresh tokens are never stored in clear; sessions carry the SHA-256 hex
// digest produced by token.Hash. Writes that change the session set of a
// credential lock the credential row first, so concurrent logins and
// refreshes for the same credential serialize.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/identity/internal/identity"
	"github.com/holomush/identity/internal/token"
)

// Compile-time interface check.
var _ identity.Store = (*Store)(nil)

// Store implements identity.Store using PostgreSQL.
type Store struct {
	pool pool
}

// New creates a Store. The pool is usually a *pgxpool.Pool.
func New(p pool) *Store {
	return &Store{pool: p}
}

// CreateUser inserts an empty user.
func (s *Store) CreateUser(ctx context.Context) (ulid.ULID, error) {
	id := ulid.Make()
	if _, err := s.q(ctx).Exec(ctx, `INSERT INTO users (id) VALUES ($1)`, id.String()); err != nil {
		return ulid.ULID{}, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}
	return id, nil
}

// CreateCredential inserts a credential. A unique violation on login is
// reported as identity.ErrDuplicateLogin.
func (s *Store) CreateCredential(ctx context.Context, kind, login string, userID ulid.ULID) (ulid.ULID, error) {
	id := ulid.Make()
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO user_credentials (id, kind, login, user_id)
		VALUES ($1, $2, $3, $4)
	`, id.String(), kind, login, userID.String())
	if isUniqueViolation(err) {
		return ulid.ULID{}, oops.Code("CREDENTIAL_DUPLICATE_LOGIN").
			With("login", login).
			Wrap(identity.ErrDuplicateLogin)
	}
	if err != nil {
		return ulid.ULID{}, oops.Code("CREDENTIAL_CREATE_FAILED").
			With("operation", "insert credential").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return id, nil
}

// CreateSecret inserts the password digest of a user.
func (s *Store) CreateSecret(ctx context.Context, userID ulid.ULID, digest string) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO user_secrets (id, user_id, password_digest)
		VALUES ($1, $2, $3)
	`, ulid.Make().String(), userID.String(), digest)
	if err != nil {
		return oops.Code("SECRET_CREATE_FAILED").
			With("operation", "insert secret").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

const credentialColumns = `c.id, c.kind, c.login, c.user_id, c.confirmed_at,
		       c.login_attempts, c.locked_until, c.created_at`

// FindCredentialByLogin looks up the credential of an active user.
func (s *Store) FindCredentialByLogin(ctx context.Context, login string) (*identity.Credential, error) {
	row := s.q(ctx).QueryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM user_credentials c
		JOIN users u ON u.id = c.user_id
		WHERE c.login = $1
		  AND u.deleted_at IS NULL
		  AND u.blocked_at IS NULL
	`, login)

	cred, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").
			With("login", login).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CREDENTIAL_GET_FAILED").
			With("operation", "get credential by login").
			Wrap(err)
	}
	return cred, nil
}

// FindSecretByUserID returns the secret of a user.
func (s *Store) FindSecretByUserID(ctx context.Context, userID ulid.ULID) (*identity.Secret, error) {
	var (
		idStr     string
		userIDStr string
		secret    identity.Secret
	)
	err := s.q(ctx).QueryRow(ctx, `
		SELECT id, user_id, password_digest, updated_at
		FROM user_secrets
		WHERE user_id = $1
	`, userID.String()).Scan(&idStr, &userIDStr, &secret.PasswordDigest, &secret.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SECRET_NOT_FOUND").
			With("user_id", userID.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SECRET_GET_FAILED").
			With("operation", "get secret by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if secret.ID, err = parseID("secret id", idStr); err != nil {
		return nil, err
	}
	if secret.UserID, err = parseID("user id", userIDStr); err != nil {
		return nil, err
	}
	return &secret, nil
}

// UpdateFailureLogin stores the failure counter and lock deadline.
func (s *Store) UpdateFailureLogin(ctx context.Context, credentialID ulid.ULID, attempts int, lockedUntil *time.Time) error {
	result, err := s.q(ctx).Exec(ctx, `
		UPDATE user_credentials SET login_attempts = $2, locked_until = $3
		WHERE id = $1
	`, credentialID.String(), attempts, lockedUntil)
	if err != nil {
		return oops.Code("CREDENTIAL_UPDATE_FAILED").
			With("operation", "record login failure").
			With("credential_id", credentialID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return credentialNotFound(credentialID)
	}
	return nil
}

// ResetFailureLogin clears the failure state and confirms the credential.
func (s *Store) ResetFailureLogin(ctx context.Context, credentialID ulid.ULID) error {
	result, err := s.q(ctx).Exec(ctx, `
		UPDATE user_credentials
		SET login_attempts = 0,
		    locked_until = NULL,
		    confirmed_at = COALESCE(confirmed_at, now())
		WHERE id = $1
	`, credentialID.String())
	if err != nil {
		return oops.Code("CREDENTIAL_UPDATE_FAILED").
			With("operation", "reset login failures").
			With("credential_id", credentialID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return credentialNotFound(credentialID)
	}
	return nil
}

// CreateSession replaces the live session of a credential.
func (s *Store) CreateSession(ctx context.Context, credentialID ulid.ULID, refreshToken string) error {
	return s.InTransaction(ctx, func(ctx context.Context) error {
		q := s.q(ctx)

		var locked string
		err := q.QueryRow(ctx, `SELECT id FROM user_credentials WHERE id = $1 FOR UPDATE`,
			credentialID.String()).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return credentialNotFound(credentialID)
		}
		if err != nil {
			return oops.Code("SESSION_CREATE_FAILED").
				With("operation", "lock credential").
				With("credential_id", credentialID.String()).
				Wrap(err)
		}

		return s.replaceSessions(ctx, q, credentialID, refreshToken)
	})
}

// ConsumeSessionAndIssueNext rotates a refresh token.
//
// The disable of the old session is committed even when the credential is
// no longer eligible; only then is ErrNotFound returned.
func (s *Store) ConsumeSessionAndIssueNext(ctx context.Context, oldToken, newToken string) (*identity.Credential, error) {
	var (
		cred     *identity.Credential
		eligible bool
	)
	oldHash := token.Hash(oldToken)

	err := s.InTransaction(ctx, func(ctx context.Context) error {
		q := s.q(ctx)

		var credIDStr string
		err := q.QueryRow(ctx, `
			SELECT user_credential_id FROM user_sessions
			WHERE refresh_token_hash = $1 AND disabled_at IS NULL
		`, oldHash).Scan(&credIDStr)
		if errors.Is(err, pgx.ErrNoRows) {
			return oops.Code("SESSION_NOT_FOUND").Wrap(identity.ErrNotFound)
		}
		if err != nil {
			return oops.Code("SESSION_GET_FAILED").
				With("operation", "find live session").
				Wrap(err)
		}

		row := q.QueryRow(ctx, `
			SELECT `+credentialColumns+`,
			       c.confirmed_at IS NOT NULL
			         AND (c.locked_until IS NULL OR c.locked_until <= now())
			         AND u.deleted_at IS NULL
			         AND u.blocked_at IS NULL
			FROM user_credentials c
			JOIN users u ON u.id = c.user_id
			WHERE c.id = $1
			FOR UPDATE OF c
		`, credIDStr)
		cred, err = scanCredential(row, &eligible)
		if err != nil {
			return oops.Code("SESSION_GET_FAILED").
				With("operation", "lock credential").
				With("credential_id", credIDStr).
				Wrap(err)
		}

		// Re-checked under the credential lock: a concurrent refresh that
		// committed first has already disabled the session.
		result, err := q.Exec(ctx, `
			UPDATE user_sessions SET disabled_at = now()
			WHERE refresh_token_hash = $1 AND disabled_at IS NULL
		`, oldHash)
		if err != nil {
			return oops.Code("SESSION_UPDATE_FAILED").
				With("operation", "disable session").
				Wrap(err)
		}
		if result.RowsAffected() == 0 {
			return oops.Code("SESSION_NOT_FOUND").Wrap(identity.ErrNotFound)
		}

		if !eligible {
			return nil
		}
		return s.replaceSessions(ctx, q, cred.ID, newToken)
	})
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, oops.Code("CREDENTIAL_NOT_ELIGIBLE").
			With("credential_id", cred.ID.String()).
			Wrap(identity.ErrNotFound)
	}
	return cred, nil
}

// replaceSessions disables the live sessions of a credential and inserts a
// new one. The caller holds the credential row lock.
func (s *Store) replaceSessions(ctx context.Context, q querier, credentialID ulid.ULID, refreshToken string) error {
	if _, err := q.Exec(ctx, `
		UPDATE user_sessions SET disabled_at = now()
		WHERE user_credential_id = $1 AND disabled_at IS NULL
	`, credentialID.String()); err != nil {
		return oops.Code("SESSION_UPDATE_FAILED").
			With("operation", "disable live sessions").
			With("credential_id", credentialID.String()).
			Wrap(err)
	}

	if _, err := q.Exec(ctx, `
		INSERT INTO user_sessions (id, refresh_token_hash, user_credential_id)
		VALUES ($1, $2, $3)
	`, ulid.Make().String(), token.Hash(refreshToken), credentialID.String()); err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("credential_id", credentialID.String()).
			Wrap(err)
	}
	return nil
}

// UpgradeSecretDigest replaces a password digest.
func (s *Store) UpgradeSecretDigest(ctx context.Context, secretID ulid.ULID, digest string) error {
	result, err := s.q(ctx).Exec(ctx, `
		UPDATE user_secrets SET password_digest = $2, updated_at = now()
		WHERE id = $1
	`, secretID.String(), digest)
	if err != nil {
		return oops.Code("SECRET_UPDATE_FAILED").
			With("operation", "update digest").
			With("secret_id", secretID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SECRET_NOT_FOUND").
			With("secret_id", secretID.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// SoftDeleteUser marks a user deleted.
func (s *Store) SoftDeleteUser(ctx context.Context, userID ulid.ULID) error {
	_, err := s.q(ctx).Exec(ctx, `
		UPDATE users SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, userID.String())
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "soft delete user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// RestoreUser clears a soft delete.
func (s *Store) RestoreUser(ctx context.Context, userID ulid.ULID) error {
	_, err := s.q(ctx).Exec(ctx, `UPDATE users SET deleted_at = NULL WHERE id = $1`, userID.String())
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "restore user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// FindUserByID returns a user whatever its state.
func (s *Store) FindUserByID(ctx context.Context, userID ulid.ULID) (*identity.User, error) {
	var (
		idStr string
		user  identity.User
	)
	err := s.q(ctx).QueryRow(ctx, `
		SELECT id, first_name, middle_name, last_name, birthdate, gender,
		       blocked_at, deleted_at, created_at
		FROM users
		WHERE id = $1
	`, userID.String()).Scan(
		&idStr,
		&user.FirstName,
		&user.MiddleName,
		&user.LastName,
		&user.Birthdate,
		&user.Gender,
		&user.BlockedAt,
		&user.DeletedAt,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("user_id", userID.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by id").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if user.ID, err = parseID("user id", idStr); err != nil {
		return nil, err
	}
	return &user, nil
}

// scanCredential scans credentialColumns followed by any extra destinations.
// Callers are responsible for handling pgx.ErrNoRows.
func scanCredential(row pgx.Row, extra ...any) (*identity.Credential, error) {
	var (
		idStr     string
		userIDStr string
		cred      identity.Credential
	)
	dest := append([]any{
		&idStr,
		&cred.Kind,
		&cred.Login,
		&userIDStr,
		&cred.ConfirmedAt,
		&cred.FailedAttempts,
		&cred.LockedUntil,
		&cred.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with their own code
	}

	var err error
	if cred.ID, err = parseID("credential id", idStr); err != nil {
		return nil, err
	}
	if cred.UserID, err = parseID("user id", userIDStr); err != nil {
		return nil, err
	}
	return &cred, nil
}

func parseID(field, value string) (ulid.ULID, error) {
	id, err := ulid.Parse(value)
	if err != nil {
		return ulid.ULID{}, oops.Code("ROW_INVALID_ID").
			With("field", field).
			With("value", value).
			Wrap(err)
	}
	return id, nil
}

func credentialNotFound(id ulid.ULID) error {
	return oops.Code("CREDENTIAL_NOT_FOUND").
		With("credential_id", id.String()).
		Wrap(identity.ErrNotFound)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
