// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/holomush/identity/pkg/errutil"
)

// RegistrationService creates new users with a username credential.
type RegistrationService struct {
	store     Store
	hasher    PasswordHasher
	passwords PasswordPolicy
	logger    *slog.Logger
	metrics   *Metrics
}

// NewRegistrationService creates a RegistrationService.
func NewRegistrationService(deps Deps) (*RegistrationService, error) {
	if err := deps.check(needStore | needHasher); err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	return &RegistrationService{
		store:     deps.Store,
		hasher:    deps.Hasher,
		passwords: deps.Passwords,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
	}, nil
}

// Register creates a user, its credential and its secret in one transaction.
// Nothing is persisted unless all three are.
func (s *RegistrationService) Register(ctx context.Context, login, password string) (err error) {
	defer func() { s.metrics.registration(err) }()

	login = NormalizeLogin(login)
	if err := ValidateLogin(login); err != nil {
		return err
	}
	if err := s.passwords.Validate(password); err != nil {
		return err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return upstream("hash password", err)
	}

	err = s.store.InTransaction(ctx, func(ctx context.Context) error {
		userID, err := s.store.CreateUser(ctx)
		if err != nil {
			return err
		}
		if _, err := s.store.CreateCredential(ctx, CredentialKindUsername, login, userID); err != nil {
			return err
		}
		return s.store.CreateSecret(ctx, userID, digest)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateLogin) {
			return errDuplicateLogin(login)
		}
		err = upstreamDB("register", err)
		errutil.LogErrorContext(ctx, s.logger.With("login", login), "registration failed", err)
		return err
	}

	s.logger.InfoContext(ctx, "user registered", "login", login)
	return nil
}
