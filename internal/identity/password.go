// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/identity/pkg/errutil"
)

// PasswordService changes the password of an authenticated user.
type PasswordService struct {
	store     Store
	hasher    PasswordHasher
	verifier  PasswordVerifier
	passwords PasswordPolicy
	onFailure FailureRecorder
	logger    *slog.Logger
	metrics   *Metrics
}

// NewPasswordService creates a PasswordService.
func NewPasswordService(deps Deps) (*PasswordService, error) {
	if err := deps.check(needStore | needHasher | needVerifier); err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	return &PasswordService{
		store:     deps.Store,
		hasher:    deps.Hasher,
		verifier:  deps.Verifier,
		passwords: deps.Passwords,
		onFailure: deps.OnPasswordChangeFailure,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
	}, nil
}

// ChangePassword replaces the user's digest after verifying the current
// password. Existing sessions are left alone.
func (s *PasswordService) ChangePassword(ctx context.Context, userID ulid.ULID, current, next string) (err error) {
	defer func() { s.metrics.passwordChange(err) }()

	if err := s.passwords.Validate(next); err != nil {
		return err
	}

	secret, err := s.store.FindSecretByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errInvalidCredentials(false)
		}
		return s.fail(ctx, upstreamDB("find secret", err))
	}

	result, err := s.verifier.Verify(current, secret.PasswordDigest)
	if err != nil {
		return s.fail(ctx, upstream("verify password", err))
	}
	if !result.Matches {
		s.onFailure(ctx, userID)
		return errInvalidCredentials(false)
	}

	digest, err := s.hasher.Hash(next)
	if err != nil {
		return s.fail(ctx, upstream("hash password", err))
	}
	if err := s.store.UpgradeSecretDigest(ctx, secret.ID, digest); err != nil {
		return s.fail(ctx, upstreamDB("store digest", err))
	}

	s.logger.InfoContext(ctx, "password changed", "user_id", userID.String())
	return nil
}

func (s *PasswordService) fail(ctx context.Context, err error) error {
	errutil.LogErrorContext(ctx, s.logger, "password change failed", err)
	return err
}
