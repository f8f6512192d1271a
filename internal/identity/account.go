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

// AccountService manages the lifecycle of users.
type AccountService struct {
	store  Store
	logger *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(deps Deps) (*AccountService, error) {
	if err := deps.check(needStore); err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	return &AccountService{store: deps.Store, logger: deps.Logger}, nil
}

// SoftDelete marks the user deleted. Deleting twice, or deleting an unknown
// user, is not an error.
func (s *AccountService) SoftDelete(ctx context.Context, userID ulid.ULID) error {
	if err := s.store.SoftDeleteUser(ctx, userID); err != nil {
		return s.fail(ctx, upstreamDB("soft delete user", err))
	}
	s.logger.InfoContext(ctx, "user deleted", "user_id", userID.String())
	return nil
}

// Restore clears the deleted mark.
func (s *AccountService) Restore(ctx context.Context, userID ulid.ULID) error {
	if err := s.store.RestoreUser(ctx, userID); err != nil {
		return s.fail(ctx, upstreamDB("restore user", err))
	}
	s.logger.InfoContext(ctx, "user restored", "user_id", userID.String())
	return nil
}

// FindUser returns the user, deleted or not.
func (s *AccountService) FindUser(ctx context.Context, userID ulid.ULID) (*User, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errUserNotFound(userID.String())
		}
		return nil, s.fail(ctx, upstreamDB("find user", err))
	}
	return user, nil
}

func (s *AccountService) fail(ctx context.Context, err error) error {
	errutil.LogErrorContext(ctx, s.logger, "account operation failed", err)
	return err
}
