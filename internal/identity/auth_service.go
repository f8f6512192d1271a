// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/holomush/identity/pkg/errutil"
)

// AuthService authenticates a login and password and starts a session.
type AuthService struct {
	store       Store
	hasher      PasswordHasher
	verifier    PasswordVerifier
	tokens      TokenGenerator
	access      AccessTokenIssuer
	lockout     LockoutPolicy
	dummyDigest string
	now         func() time.Time
	logger      *slog.Logger
	metrics     *Metrics
}

// NewAuthService creates an AuthService.
func NewAuthService(deps Deps) (*AuthService, error) {
	if err := deps.check(needStore | needHasher | needVerifier | needTokens | needAccessTokens); err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	if err := deps.Lockout.Validate(); err != nil {
		return nil, err
	}
	return &AuthService{
		store:       deps.Store,
		hasher:      deps.Hasher,
		verifier:    deps.Verifier,
		tokens:      deps.Tokens,
		access:      deps.AccessTokens,
		lockout:     deps.Lockout,
		dummyDigest: deps.DummyDigest,
		now:         deps.Now,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
	}, nil
}

// Authenticate checks login and password and, on success, disables any live
// session of the credential and starts a new one.
//
// The password is verified before the lock is consulted. A correct password
// on a locked credential reports TemporarilyLocked and changes nothing; a
// wrong one is still counted.
func (s *AuthService) Authenticate(ctx context.Context, login, password string) (tokens *Tokens, err error) {
	defer func() { s.metrics.login(err) }()

	login = NormalizeLogin(login)
	if err := ValidateLogin(login); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, errValidation("password", "password cannot be empty")
	}

	cred, err := s.store.FindCredentialByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.burnVerification(password)
			return nil, errInvalidCredentials(false)
		}
		return nil, s.fail(ctx, upstreamDB("find credential", err))
	}

	now := s.now()
	locked := cred.IsLockedAt(now)

	secret, err := s.store.FindSecretByUserID(ctx, cred.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.burnVerification(password)
			return nil, errInvalidCredentials(false)
		}
		return nil, s.fail(ctx, upstreamDB("find secret", err))
	}

	result, err := s.verifier.Verify(password, secret.PasswordDigest)
	if err != nil {
		return nil, s.fail(ctx, upstream("verify password", err))
	}
	if !result.Matches {
		return nil, s.recordFailure(ctx, cred, locked, now)
	}
	if locked {
		return nil, errTemporarilyLocked(cred.LockedUntil, false)
	}

	if result.Stale {
		if err := s.upgradeDigest(ctx, secret, password); err != nil {
			return nil, err
		}
	}

	refresh, err := s.tokens.Next()
	if err != nil {
		return nil, s.fail(ctx, upstream("generate refresh token", err))
	}
	access, err := s.access.Issue(cred.UserID)
	if err != nil {
		return nil, s.fail(ctx, upstream("issue access token", err))
	}

	err = s.store.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.ResetFailureLogin(ctx, cred.ID); err != nil {
			return err
		}
		return s.store.CreateSession(ctx, cred.ID, refresh)
	})
	if err != nil {
		return nil, s.fail(ctx, upstreamDB("start session", err))
	}

	return &Tokens{UserID: cred.UserID, AccessToken: access, RefreshToken: refresh}, nil
}

// recordFailure counts a failed attempt and returns the error for the caller.
// A failed write does not change the outcome of the login.
func (s *AuthService) recordFailure(ctx context.Context, cred *Credential, locked bool, now time.Time) error {
	attempts := cred.FailedAttempts + 1
	lockedUntil, triggered := s.lockout.Next(attempts, cred.LockedUntil, now)
	logger := s.logger.With("credential_id", cred.ID.String(), "attempts", attempts)

	accountingFailed := false
	if err := s.store.UpdateFailureLogin(ctx, cred.ID, attempts, lockedUntil); err != nil {
		accountingFailed = true
		lockedUntil = cred.LockedUntil
		s.metrics.accountingFailure()
		errutil.LogErrorContext(ctx, logger, "failed to record login failure", err)
	} else if triggered {
		s.metrics.lockout()
		logger.WarnContext(ctx, "credential locked", "locked_until", lockedUntil.UTC())
	}

	if locked {
		return errTemporarilyLocked(lockedUntil, accountingFailed)
	}
	return errInvalidCredentials(accountingFailed)
}

// upgradeDigest rehashes a password whose digest uses outdated parameters.
func (s *AuthService) upgradeDigest(ctx context.Context, secret *Secret, password string) error {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return s.fail(ctx, upstream("rehash password", err))
	}
	if err := s.store.UpgradeSecretDigest(ctx, secret.ID, digest); err != nil {
		return s.fail(ctx, upstreamDB("upgrade digest", err))
	}
	s.metrics.hashUpgrade()
	s.logger.InfoContext(ctx, "password digest upgraded", "user_id", secret.UserID.String())
	return nil
}

// burnVerification spends the cost of a verification on unknown logins.
func (s *AuthService) burnVerification(password string) {
	if s.dummyDigest == "" {
		return
	}
	_, _ = s.verifier.Verify(password, s.dummyDigest) //nolint:errcheck // result is discarded
}

func (s *AuthService) fail(ctx context.Context, err error) error {
	errutil.LogErrorContext(ctx, s.logger, "authentication failed", err)
	return err
}
