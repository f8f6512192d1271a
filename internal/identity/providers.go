// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identity

import "github.com/oklog/ulid/v2"

// PasswordHasher turns a plaintext password into a self-describing digest
// using the currently configured cost parameters.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Verification is the outcome of checking a password against a digest.
type Verification struct {
	// Matches is true when the password produced the digest.
	Matches bool
	// Stale is true when the digest was produced with parameters other than
	// the ones currently configured.
	Stale bool
}

// PasswordVerifier checks a plaintext password against a stored digest.
// An error means the digest could not be evaluated, not a mismatch.
type PasswordVerifier interface {
	Verify(password, digest string) (Verification, error)
}

// TokenGenerator produces opaque, cryptographically random refresh tokens.
type TokenGenerator interface {
	Next() (string, error)
}

// AccessTokenIssuer produces short-lived signed tokens for a user.
type AccessTokenIssuer interface {
	Issue(userID ulid.ULID) (string, error)
}
