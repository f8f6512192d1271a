// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

// FailureRecorder is notified when a password change presents the wrong
// current password. It must not block.
type FailureRecorder func(ctx context.Context, userID ulid.ULID)

// Deps carries the collaborators shared by the services. Each constructor
// checks only the fields its flow uses.
type Deps struct {
	Store        Store
	Hasher       PasswordHasher
	Verifier     PasswordVerifier
	Tokens       TokenGenerator
	AccessTokens AccessTokenIssuer

	// Lockout defaults to DefaultLockoutPolicy when zero.
	Lockout LockoutPolicy
	// Passwords defaults to DefaultPasswordPolicy when zero.
	Passwords PasswordPolicy

	// DummyDigest, when set, is verified against on unknown logins so that
	// they take as long as known ones.
	DummyDigest string

	// Now defaults to time.Now.
	Now     func() time.Time
	Logger  *slog.Logger
	Metrics *Metrics

	// OnPasswordChangeFailure defaults to a warning log entry.
	OnPasswordChangeFailure FailureRecorder
}

func (d Deps) withDefaults() Deps {
	if d.Lockout == (LockoutPolicy{}) {
		d.Lockout = DefaultLockoutPolicy()
	}
	if d.Passwords == (PasswordPolicy{}) {
		d.Passwords = DefaultPasswordPolicy()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.OnPasswordChangeFailure == nil {
		logger := d.Logger
		d.OnPasswordChangeFailure = func(ctx context.Context, userID ulid.ULID) {
			logger.WarnContext(ctx, "password change rejected", "user_id", userID.String())
		}
	}
	return d
}

type requirement uint8

const (
	needStore requirement = 1 << iota
	needHasher
	needVerifier
	needTokens
	needAccessTokens
)

// check returns an error naming the first missing dependency in need.
func (d Deps) check(need requirement) error {
	switch {
	case need&needStore != 0 && d.Store == nil:
		return errMissingDependency("store")
	case need&needHasher != 0 && d.Hasher == nil:
		return errMissingDependency("password hasher")
	case need&needVerifier != 0 && d.Verifier == nil:
		return errMissingDependency("password verifier")
	case need&needTokens != 0 && d.Tokens == nil:
		return errMissingDependency("token generator")
	case need&needAccessTokens != 0 && d.AccessTokens == nil:
		return errMissingDependency("access token issuer")
	}
	return nil
}
