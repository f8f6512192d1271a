// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identitytest

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/identity/internal/identity"
)

// Compile-time interface checks.
var (
	_ identity.PasswordHasher    = (*Hasher)(nil)
	_ identity.PasswordVerifier  = (*Hasher)(nil)
	_ identity.TokenGenerator    = (*Tokens)(nil)
	_ identity.AccessTokenIssuer = (*AccessIssuer)(nil)
)

const digestPrefix = "plain$"

// Hasher is a reversible stand-in for a key derivation function.
// Digests look like "plain$<cost>$<password>"; a digest whose cost differs
// from Cost verifies as stale.
type Hasher struct {
	Cost      int
	HashErr   error
	VerifyErr error
}

// Digest returns the digest Hasher would produce for password at cost.
func Digest(cost int, password string) string {
	return digestPrefix + strconv.Itoa(cost) + "$" + password
}

// Hash implements identity.PasswordHasher.
func (h *Hasher) Hash(password string) (string, error) {
	if h.HashErr != nil {
		return "", h.HashErr
	}
	return Digest(h.Cost, password), nil
}

// Verify implements identity.PasswordVerifier.
func (h *Hasher) Verify(password, digest string) (identity.Verification, error) {
	if h.VerifyErr != nil {
		return identity.Verification{}, h.VerifyErr
	}
	rest, ok := strings.CutPrefix(digest, digestPrefix)
	if !ok {
		return identity.Verification{}, oops.Code("DIGEST_MALFORMED").Errorf("unrecognized digest")
	}
	costText, stored, ok := strings.Cut(rest, "$")
	if !ok {
		return identity.Verification{}, oops.Code("DIGEST_MALFORMED").Errorf("digest has no cost")
	}
	cost, err := strconv.Atoi(costText)
	if err != nil {
		return identity.Verification{}, oops.Code("DIGEST_MALFORMED").Wrap(err)
	}
	return identity.Verification{Matches: stored == password, Stale: cost != h.Cost}, nil
}

// Tokens yields "refresh-1", "refresh-2", and so on.
type Tokens struct {
	mu  sync.Mutex
	n   int
	Err error
}

// Next implements identity.TokenGenerator.
func (t *Tokens) Next() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return "", t.Err
	}
	t.n++
	return fmt.Sprintf("refresh-%d", t.n), nil
}

// AccessIssuer issues "access-<user id>" tokens.
type AccessIssuer struct {
	Err error
}

// Issue implements identity.AccessTokenIssuer.
func (a *AccessIssuer) Issue(userID ulid.ULID) (string, error) {
	if a.Err != nil {
		return "", a.Err
	}
	return "access-" + userID.String(), nil
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock reading t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current reading.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
