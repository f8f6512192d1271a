// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identity

import (
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/identity/pkg/errutil"
)

// Store sentinels. Adapters wrap these so services can match with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateLogin is returned when a credential login is already taken.
	ErrDuplicateLogin = errors.New("duplicate login")
)

// Error codes returned by services.
const (
	CodeDuplicateLogin     = "IDENTITY_DUPLICATE_LOGIN"
	CodeInvalidCredentials = "IDENTITY_INVALID_CREDENTIALS"
	CodeTemporarilyLocked  = "IDENTITY_TEMPORARILY_LOCKED"
	CodeReauthRequired     = "IDENTITY_REAUTH_REQUIRED"
	CodeUpstreamFailure    = "IDENTITY_UPSTREAM_FAILURE"
	CodeValidationFailed   = "IDENTITY_VALIDATION_FAILED"
	CodeUserNotFound       = "IDENTITY_USER_NOT_FOUND"
	CodeInvalidDependency  = "IDENTITY_INVALID_DEPENDENCY"
)

// Kind classifies a service error.
type Kind string

// Error kinds.
const (
	KindDuplicateLogin     Kind = "duplicate_login"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindTemporarilyLocked  Kind = "temporarily_locked"
	KindReauthRequired     Kind = "reauthentication_required"
	KindUpstreamFailure    Kind = "upstream_failure"
	KindValidationFailure  Kind = "validation_failure"
	KindUserNotFound       Kind = "user_not_found"
)

var kindsByCode = map[string]Kind{
	CodeDuplicateLogin:     KindDuplicateLogin,
	CodeInvalidCredentials: KindInvalidCredentials,
	CodeTemporarilyLocked:  KindTemporarilyLocked,
	CodeReauthRequired:     KindReauthRequired,
	CodeUpstreamFailure:    KindUpstreamFailure,
	CodeValidationFailed:   KindValidationFailure,
	CodeUserNotFound:       KindUserNotFound,
}

// KindOf returns the Kind of err. Errors that carry no identity code are
// reported as KindUpstreamFailure. A nil error has the empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if kind, ok := kindsByCode[errutil.Code(err)]; ok {
		return kind
	}
	return KindUpstreamFailure
}

// isDomainError reports whether err already carries an identity code.
func isDomainError(err error) bool {
	_, ok := kindsByCode[errutil.Code(err)]
	return ok
}

func errInvalidCredentials(accountingFailed bool) error {
	b := oops.Code(CodeInvalidCredentials)
	if accountingFailed {
		b = b.With("accounting_failed", true)
	}
	return b.Errorf("incorrect login or password")
}

func errTemporarilyLocked(lockedUntil *time.Time, accountingFailed bool) error {
	b := oops.Code(CodeTemporarilyLocked)
	if lockedUntil != nil {
		b = b.With("locked_until", lockedUntil.UTC())
	}
	if accountingFailed {
		b = b.With("accounting_failed", true)
	}
	return b.Errorf("temporarily locked")
}

func errReauthRequired() error {
	return oops.Code(CodeReauthRequired).Errorf("login required")
}

func errDuplicateLogin(login string) error {
	return oops.Code(CodeDuplicateLogin).With("login", login).Errorf("login is already taken")
}

func errValidation(field, format string, args ...any) error {
	return oops.Code(CodeValidationFailed).With("field", field).Errorf(format, args...)
}

func errUserNotFound(id string) error {
	return oops.Code(CodeUserNotFound).With("user_id", id).Errorf("user not found")
}

func errMissingDependency(name string) error {
	return oops.Code(CodeInvalidDependency).With("dependency", name).Errorf("%s is required", name)
}

// upstream converts a provider failure into an opaque UpstreamFailure.
// The cause is kept in the error context for logs, never in the message.
// Errors that are already identity errors pass through unchanged.
func upstream(operation string, err error) error {
	return opaque(operation, "unknown system error", err)
}

// upstreamDB is upstream for store failures.
func upstreamDB(operation string, err error) error {
	return opaque(operation, "unknown database error", err)
}

func opaque(operation, message string, err error) error {
	if isDomainError(err) {
		return err
	}
	b := oops.Code(CodeUpstreamFailure).With("operation", operation)
	if err != nil {
		b = b.With("cause", err.Error())
		if code := errutil.Code(err); code != "" {
			b = b.With("cause_code", code)
		}
	}
	return b.Errorf("%s", message)
}
