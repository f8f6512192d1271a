// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package password implements argon2id password digests in PHC string format.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"

	"github.com/holomush/identity/internal/identity"
)

// Compile-time interface checks.
var (
	_ identity.PasswordHasher   = (*Argon2)(nil)
	_ identity.PasswordVerifier = (*Argon2)(nil)
)

const algorithm = "argon2id"

// Lower bounds for configured parameters.
const (
	minMemoryKiB  = 8 * 1024
	minSaltLength = 16
	minKeyLength  = 16
)

// Params are the argon2id cost parameters.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams returns m=32768, t=2, p=1 with a 16 byte salt and 32 byte key.
func DefaultParams() Params {
	return Params{
		MemoryKiB:   32 * 1024,
		Iterations:  2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate checks the parameters against the supported minimums.
func (p Params) Validate() error {
	switch {
	case p.MemoryKiB < minMemoryKiB:
		return oops.Code("PASSWORD_INVALID_PARAMS").With("memory_kib", p.MemoryKiB).
			Errorf("memory must be at least %d KiB", minMemoryKiB)
	case p.Iterations < 1:
		return oops.Code("PASSWORD_INVALID_PARAMS").With("iterations", p.Iterations).
			Errorf("iterations must be at least 1")
	case p.Parallelism < 1:
		return oops.Code("PASSWORD_INVALID_PARAMS").With("parallelism", p.Parallelism).
			Errorf("parallelism must be at least 1")
	case p.SaltLength < minSaltLength:
		return oops.Code("PASSWORD_INVALID_PARAMS").With("salt_length", p.SaltLength).
			Errorf("salt length must be at least %d bytes", minSaltLength)
	case p.KeyLength < minKeyLength:
		return oops.Code("PASSWORD_INVALID_PARAMS").With("key_length", p.KeyLength).
			Errorf("key length must be at least %d bytes", minKeyLength)
	}
	return nil
}

// Argon2 hashes and verifies passwords with argon2id.
// Verification uses the parameters recorded in the digest, so a change of
// Params never invalidates stored digests; it only marks them stale.
type Argon2 struct {
	params Params
}

// NewArgon2 creates an Argon2 using params.
func NewArgon2(params Params) (*Argon2, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2{params: params}, nil
}

// Params returns the parameters new digests are produced with.
func (a *Argon2) Params() Params {
	return a.params
}

// Hash produces a PHC digest of password:
// $argon2id$v=19$m=32768,t=2,p=1$<salt>$<key>
func (a *Argon2) Hash(password string) (string, error) {
	salt := make([]byte, a.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("PASSWORD_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, a.params.Iterations, a.params.MemoryKiB, a.params.Parallelism, a.params.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm,
		argon2.Version,
		a.params.MemoryKiB,
		a.params.Iterations,
		a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks password against digest. A malformed digest is an error,
// not a mismatch.
func (a *Argon2) Verify(password, digest string) (identity.Verification, error) {
	parsed, err := parse(digest)
	if err != nil {
		return identity.Verification{}, err
	}

	computed := argon2.IDKey([]byte(password), parsed.salt, parsed.params.Iterations,
		parsed.params.MemoryKiB, parsed.params.Parallelism, parsed.params.KeyLength)

	return identity.Verification{
		Matches: subtle.ConstantTimeCompare(computed, parsed.key) == 1,
		Stale:   a.stale(parsed.params),
	}, nil
}

// DummyDigest returns a digest of a random password, for spending a
// verification on unknown logins.
func (a *Argon2) DummyDigest() (string, error) {
	random := make([]byte, 32)
	if _, err := rand.Read(random); err != nil {
		return "", oops.Code("PASSWORD_SALT_FAILED").Wrap(err)
	}
	return a.Hash(base64.RawStdEncoding.EncodeToString(random))
}

func (a *Argon2) stale(p Params) bool {
	return p.MemoryKiB != a.params.MemoryKiB ||
		p.Iterations != a.params.Iterations ||
		p.Parallelism != a.params.Parallelism ||
		p.KeyLength != a.params.KeyLength
}

type parsedDigest struct {
	params Params
	salt   []byte
	key    []byte
}

func parse(digest string) (*parsedDigest, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, oops.Code("PASSWORD_INVALID_DIGEST").Errorf("invalid digest format")
	}
	if parts[1] != algorithm {
		return nil, oops.Code("PASSWORD_INVALID_DIGEST").With("algorithm", parts[1]).
			Errorf("unsupported algorithm %q", parts[1])
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, oops.Code("PASSWORD_INVALID_DIGEST").Errorf("invalid version field %q", parts[2])
	}
	if version != argon2.Version {
		return nil, oops.Code("PASSWORD_INVALID_DIGEST").With("version", version).
			Errorf("unsupported argon2 version %d", version)
	}

	var params Params
	if err := parseParams(parts[3], &params); err != nil {
		return nil, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code("PASSWORD_INVALID_DIGEST").With("field", "salt").Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code("PASSWORD_INVALID_DIGEST").With("field", "key").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return nil, oops.Code("PASSWORD_INVALID_DIGEST").Errorf("invalid key length %d", len(key))
	}
	params.SaltLength = uint32(len(salt)) //nolint:gosec // bounded by digest length
	params.KeyLength = uint32(len(key))   //nolint:gosec // bounded above

	return &parsedDigest{params: params, salt: salt, key: key}, nil
}

func parseParams(field string, params *Params) error {
	pairs := strings.Split(field, ",")
	if len(pairs) != 3 {
		return oops.Code("PASSWORD_INVALID_DIGEST").Errorf("invalid parameter field %q", field)
	}

	seen := make(map[string]bool, 3)
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || seen[name] {
			return oops.Code("PASSWORD_INVALID_DIGEST").Errorf("invalid parameter %q", pair)
		}
		seen[name] = true

		bits := 32
		if name == "p" {
			bits = 8
		}
		n, err := strconv.ParseUint(value, 10, bits)
		if err != nil || n == 0 {
			return oops.Code("PASSWORD_INVALID_DIGEST").With("parameter", name).Errorf("invalid parameter %q", pair)
		}

		switch name {
		case "m":
			params.MemoryKiB = uint32(n)
		case "t":
			params.Iterations = uint32(n)
		case "p":
			params.Parallelism = uint8(n)
		default:
			return oops.Code("PASSWORD_INVALID_DIGEST").With("parameter", name).Errorf("unknown parameter %q", name)
		}
	}
	return nil
}
