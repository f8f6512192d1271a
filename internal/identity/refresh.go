// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/holomush/identity/pkg/errutil"
)

// RefreshService rotates refresh tokens. Each token can be exchanged once.
type RefreshService struct {
	store   Store
	tokens  TokenGenerator
	access  AccessTokenIssuer
	logger  *slog.Logger
	metrics *Metrics
}

// NewRefreshService creates a RefreshService.
func NewRefreshService(deps Deps) (*RefreshService, error) {
	if err := deps.check(needStore | needTokens | needAccessTokens); err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	return &RefreshService{
		store:   deps.Store,
		tokens:  deps.Tokens,
		access:  deps.AccessTokens,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}, nil
}

// Refresh disables the session holding refreshToken and issues its
// successor. A token that is unknown, already used, or belongs to a
// credential that may no longer refresh yields ReauthenticationRequired;
// in every case the presented token is dead afterwards.
func (s *RefreshService) Refresh(ctx context.Context, refreshToken string) (tokens *Tokens, err error) {
	defer func() { s.metrics.refresh(err) }()

	if refreshToken == "" {
		return nil, errReauthRequired()
	}

	next, err := s.tokens.Next()
	if err != nil {
		return nil, s.fail(ctx, upstream("generate refresh token", err))
	}

	cred, err := s.store.ConsumeSessionAndIssueNext(ctx, refreshToken, next)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.InfoContext(ctx, "refresh rejected")
			return nil, errReauthRequired()
		}
		return nil, s.fail(ctx, upstreamDB("rotate session", err))
	}

	access, err := s.access.Issue(cred.UserID)
	if err != nil {
		return nil, s.fail(ctx, upstream("issue access token", err))
	}

	return &Tokens{UserID: cred.UserID, AccessToken: access, RefreshToken: next}, nil
}

func (s *RefreshService) fail(ctx context.Context, err error) error {
	errutil.LogErrorContext(ctx, s.logger, "refresh failed", err)
	return err
}
