// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identitytest

import (
	"time"

	"github.com/holomush/identity/internal/identity"
)

// Epoch is the initial reading of a Fixture clock.
var Epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// Fixture bundles in-memory collaborators sharing one clock.
type Fixture struct {
	Clock  *Clock
	Store  *Store
	Hasher *Hasher
	Tokens *Tokens
	Access *AccessIssuer
}

// NewFixture creates a Fixture with an empty store and hasher cost 1.
func NewFixture() *Fixture {
	clock := NewClock(Epoch)
	return &Fixture{
		Clock:  clock,
		Store:  NewStore(clock.Now),
		Hasher: &Hasher{Cost: 1},
		Tokens: &Tokens{},
		Access: &AccessIssuer{},
	}
}

// Deps returns identity.Deps wired to the fixture.
func (f *Fixture) Deps() identity.Deps {
	return identity.Deps{
		Store:        f.Store,
		Hasher:       f.Hasher,
		Verifier:     f.Hasher,
		Tokens:       f.Tokens,
		AccessTokens: f.Access,
		Now:          f.Clock.Now,
	}
}
