// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identity

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// CredentialKindUsername is the login method created by registration.
const CredentialKindUsername = "username"

// MaxLoginLength bounds a normalized login.
const MaxLoginLength = 254

// User is the identity anchor. Users are soft-deleted, never removed.
type User struct {
	ID         ulid.ULID
	FirstName  *string
	MiddleName *string
	LastName   *string
	Birthdate  *time.Time
	Gender     *string
	BlockedAt  *time.Time
	DeletedAt  *time.Time
	CreatedAt  time.Time
}

// IsActive returns true if the user is neither blocked nor soft-deleted.
func (u *User) IsActive() bool {
	return u.BlockedAt == nil && u.DeletedAt == nil
}

// Credential is one login method bound to a user, carrying lockout state.
type Credential struct {
	ID             ulid.ULID
	Kind           string
	Login          string
	UserID         ulid.ULID
	ConfirmedAt    *time.Time
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
}

// IsLockedAt returns true if the credential's lock is still in effect at t.
func (c *Credential) IsLockedAt(t time.Time) bool {
	return c.LockedUntil != nil && c.LockedUntil.After(t)
}

// CanRefreshAt returns true if sessions of this credential may be rotated at t:
// it has logged in at least once and is not currently locked.
func (c *Credential) CanRefreshAt(t time.Time) bool {
	return c.ConfirmedAt != nil && !c.IsLockedAt(t)
}

// Secret is the stored password digest of a user.
type Secret struct {
	ID             ulid.ULID
	UserID         ulid.ULID
	PasswordDigest string
	UpdatedAt      time.Time
}

// Session is one refresh-token lineage. It is live until DisabledAt is set.
type Session struct {
	ID           ulid.ULID
	RefreshToken string
	CredentialID ulid.ULID
	CreatedAt    time.Time
	DisabledAt   *time.Time
}

// IsLive returns true if the session has not been disabled.
func (s *Session) IsLive() bool {
	return s.DisabledAt == nil
}

// Tokens is the result of a successful login or refresh.
type Tokens struct {
	UserID       ulid.ULID
	AccessToken  string
	RefreshToken string
}

// NormalizeLogin trims surrounding whitespace and lowercases a login.
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// ValidateLogin checks a normalized login.
// Requirements:
// - Not empty
// - At most MaxLoginLength characters
// - No whitespace or control characters
func ValidateLogin(login string) error {
	if login == "" {
		return errValidation("login", "login cannot be empty")
	}
	if utf8.RuneCountInString(login) > MaxLoginLength {
		return errValidation("login", "login must be at most %d characters", MaxLoginLength)
	}
	for _, r := range login {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return errValidation("login", "login cannot contain whitespace or control characters")
		}
	}
	return nil
}

// PasswordPolicy constrains new passwords.
type PasswordPolicy struct {
	MinLength int
}

// DefaultPasswordPolicy returns the policy used when none is configured.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 8}
}

// Validate checks a candidate password against the policy.
func (p PasswordPolicy) Validate(password string) error {
	if password == "" {
		return errValidation("password", "password cannot be empty")
	}
	if utf8.RuneCountInString(password) < p.MinLength {
		return errValidation("password", "password must be at least %d characters", p.MinLength)
	}
	return nil
}
