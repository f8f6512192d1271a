// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/identity/internal/identity"
)

var _ identity.AccessTokenIssuer = (*AccessIssuer)(nil)

// Access token defaults.
const (
	DefaultAccessTTL = 15 * time.Minute
	MinSecretLength  = 32
)

// AccessConfig configures an AccessIssuer.
type AccessConfig struct {
	// Secret is the HS256 signing key.
	Secret []byte
	// Issuer is written to and required in the iss claim. Optional.
	Issuer string
	// TTL defaults to DefaultAccessTTL.
	TTL time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// AccessIssuer signs and parses HS256 access tokens whose subject is a user id.
type AccessIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewAccessIssuer creates an AccessIssuer.
func NewAccessIssuer(cfg AccessConfig) (*AccessIssuer, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, oops.Code("TOKEN_INVALID_SECRET").With("length", len(cfg.Secret)).
			Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultAccessTTL
	}
	if cfg.TTL < 0 {
		return nil, oops.Code("TOKEN_INVALID_TTL").With("ttl", cfg.TTL.String()).Errorf("access token ttl must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AccessIssuer{secret: cfg.Secret, issuer: cfg.Issuer, ttl: cfg.TTL, now: cfg.Now}, nil
}

// Issue signs a token for userID, valid for the configured TTL.
func (a *AccessIssuer) Issue(userID ulid.ULID) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return signed, nil
}

// Parse validates the signature, expiry and issuer of tokenString and
// returns the user id it was issued for.
func (a *AccessIssuer) Parse(tokenString string) (ulid.ULID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		code := "TOKEN_INVALID"
		if errors.Is(err, jwt.ErrTokenExpired) {
			code = "TOKEN_EXPIRED"
		}
		return ulid.ULID{}, oops.Code(code).Wrap(err)
	}

	userID, err := ulid.Parse(claims.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code("TOKEN_INVALID").With("subject", claims.Subject).Wrap(err)
	}
	return userID, nil
}
