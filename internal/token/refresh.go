// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package token produces refresh tokens and signed access tokens.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/samber/oops"

	"github.com/holomush/identity/internal/identity"
)

var _ identity.TokenGenerator = (*RefreshGenerator)(nil)

// Refresh token sizes.
const (
	DefaultRefreshBytes = 48 // 64 base64url characters
	MinRefreshBytes     = 32
)

// RefreshGenerator produces random base64url refresh tokens.
type RefreshGenerator struct {
	size int
}

// NewRefreshGenerator creates a generator of size-byte tokens.
func NewRefreshGenerator(size int) (*RefreshGenerator, error) {
	if size < MinRefreshBytes {
		return nil, oops.Code("TOKEN_INVALID_SIZE").With("refresh_bytes", size).
			Errorf("refresh tokens need at least %d random bytes", MinRefreshBytes)
	}
	return &RefreshGenerator{size: size}, nil
}

// Next returns a fresh token.
func (g *RefreshGenerator) Next() (string, error) {
	raw := make([]byte, g.size)
	if _, err := rand.Read(raw); err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", g.size).
			Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Hash computes the SHA-256 hex digest of a refresh token.
// Stores persist this instead of the token.
func Hash(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
