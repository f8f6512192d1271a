// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package identitytest provides in-memory collaborators for exercising the
// identity services without a database.
package identitytest

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/identity/internal/identity"
)

// Compile-time interface check.
var _ identity.Store = (*Store)(nil)

type state struct {
	users       map[ulid.ULID]identity.User
	credentials map[ulid.ULID]identity.Credential
	logins      map[string]ulid.ULID
	secrets     map[ulid.ULID]identity.Secret // keyed by user id
	sessions    map[ulid.ULID]identity.Session
}

func newState() *state {
	return &state{
		users:       make(map[ulid.ULID]identity.User),
		credentials: make(map[ulid.ULID]identity.Credential),
		logins:      make(map[string]ulid.ULID),
		secrets:     make(map[ulid.ULID]identity.Secret),
		sessions:    make(map[ulid.ULID]identity.Session),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.credentials {
		c.credentials[k] = v
	}
	for k, v := range st.logins {
		c.logins[k] = v
	}
	for k, v := range st.secrets {
		c.secrets[k] = v
	}
	for k, v := range st.sessions {
		c.sessions[k] = v
	}
	return c
}

type txKey struct{ store *Store }

// Store is an identity.Store held in memory.
// Transactions work on a private copy that replaces the shared state on
// commit. Only one transaction runs at a time.
type Store struct {
	mu       sync.Mutex
	state    *state
	now      func() time.Time
	failures map[string]error
}

// NewStore creates an empty Store. A nil now uses time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		state:    newState(),
		now:      now,
		failures: make(map[string]error),
	}
}

// FailOn makes every call to the named method return err.
// A nil err clears the failure.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// InTransaction implements identity.Transactor. A call made with a context
// that already carries a transaction joins it.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{s}).(*state); ok {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["InTransaction"]; err != nil {
		return err
	}

	work := s.state.clone()
	if err := fn(context.WithValue(ctx, txKey{s}, work)); err != nil {
		return err
	}
	s.state = work
	return nil
}

// run executes op against the transaction in ctx, or atomically against the
// shared state when there is none.
func (s *Store) run(ctx context.Context, method string, op func(st *state) error) error {
	if st, ok := ctx.Value(txKey{s}).(*state); ok {
		if err := s.failures[method]; err != nil {
			return err
		}
		return op(st)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures[method]; err != nil {
		return err
	}
	work := s.state.clone()
	if err := op(work); err != nil {
		return err
	}
	s.state = work
	return nil
}

// CreateUser implements identity.Store.
func (s *Store) CreateUser(ctx context.Context) (ulid.ULID, error) {
	id := ulid.Make()
	err := s.run(ctx, "CreateUser", func(st *state) error {
		st.users[id] = identity.User{ID: id, CreatedAt: s.now()}
		return nil
	})
	if err != nil {
		return ulid.ULID{}, err
	}
	return id, nil
}

// CreateCredential implements identity.Store.
func (s *Store) CreateCredential(ctx context.Context, kind, login string, userID ulid.ULID) (ulid.ULID, error) {
	id := ulid.Make()
	err := s.run(ctx, "CreateCredential", func(st *state) error {
		if _, taken := st.logins[login]; taken {
			return oops.Code("CREDENTIAL_DUPLICATE_LOGIN").With("login", login).Wrap(identity.ErrDuplicateLogin)
		}
		st.credentials[id] = identity.Credential{
			ID:        id,
			Kind:      kind,
			Login:     login,
			UserID:    userID,
			CreatedAt: s.now(),
		}
		st.logins[login] = id
		return nil
	})
	if err != nil {
		return ulid.ULID{}, err
	}
	return id, nil
}

// CreateSecret implements identity.Store.
func (s *Store) CreateSecret(ctx context.Context, userID ulid.ULID, digest string) error {
	return s.run(ctx, "CreateSecret", func(st *state) error {
		if _, exists := st.secrets[userID]; exists {
			return oops.Code("SECRET_DUPLICATE").With("user_id", userID.String()).Errorf("user already has a secret")
		}
		st.secrets[userID] = identity.Secret{ID: ulid.Make(), UserID: userID, PasswordDigest: digest, UpdatedAt: s.now()}
		return nil
	})
}

// FindCredentialByLogin implements identity.Store.
func (s *Store) FindCredentialByLogin(ctx context.Context, login string) (*identity.Credential, error) {
	var found identity.Credential
	err := s.run(ctx, "FindCredentialByLogin", func(st *state) error {
		id, ok := st.logins[login]
		if !ok {
			return notFound("credential", login)
		}
		cred := st.credentials[id]
		user := st.users[cred.UserID]
		if !user.IsActive() {
			return notFound("credential", login)
		}
		found = cred
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// FindSecretByUserID implements identity.Store.
func (s *Store) FindSecretByUserID(ctx context.Context, userID ulid.ULID) (*identity.Secret, error) {
	var found identity.Secret
	err := s.run(ctx, "FindSecretByUserID", func(st *state) error {
		secret, ok := st.secrets[userID]
		if !ok {
			return notFound("secret", userID.String())
		}
		found = secret
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// UpdateFailureLogin implements identity.Store.
func (s *Store) UpdateFailureLogin(ctx context.Context, credentialID ulid.ULID, attempts int, lockedUntil *time.Time) error {
	return s.run(ctx, "UpdateFailureLogin", func(st *state) error {
		cred, ok := st.credentials[credentialID]
		if !ok {
			return notFound("credential", credentialID.String())
		}
		cred.FailedAttempts = attempts
		cred.LockedUntil = copyTime(lockedUntil)
		st.credentials[credentialID] = cred
		return nil
	})
}

// ResetFailureLogin implements identity.Store.
func (s *Store) ResetFailureLogin(ctx context.Context, credentialID ulid.ULID) error {
	return s.run(ctx, "ResetFailureLogin", func(st *state) error {
		cred, ok := st.credentials[credentialID]
		if !ok {
			return notFound("credential", credentialID.String())
		}
		cred.FailedAttempts = 0
		cred.LockedUntil = nil
		if cred.ConfirmedAt == nil {
			now := s.now()
			cred.ConfirmedAt = &now
		}
		st.credentials[credentialID] = cred
		return nil
	})
}

// CreateSession implements identity.Store.
func (s *Store) CreateSession(ctx context.Context, credentialID ulid.ULID, refreshToken string) error {
	return s.run(ctx, "CreateSession", func(st *state) error {
		if _, ok := st.credentials[credentialID]; !ok {
			return notFound("credential", credentialID.String())
		}
		st.insertSession(credentialID, refreshToken, s.now())
		return nil
	})
}

// ConsumeSessionAndIssueNext implements identity.Store.
func (s *Store) ConsumeSessionAndIssueNext(ctx context.Context, oldToken, newToken string) (*identity.Credential, error) {
	var (
		found    identity.Credential
		eligible bool
	)
	// The consume step commits even when the credential is ineligible.
	err := s.run(ctx, "ConsumeSessionAndIssueNext", func(st *state) error {
		now := s.now()
		var live *identity.Session
		for _, sess := range st.sessions {
			if sess.RefreshToken == oldToken && sess.IsLive() {
				live = &sess
				break
			}
		}
		if live == nil {
			return notFound("session", "")
		}
		live.DisabledAt = &now
		st.sessions[live.ID] = *live

		cred := st.credentials[live.CredentialID]
		user := st.users[cred.UserID]
		if !cred.CanRefreshAt(now) || !user.IsActive() {
			return nil
		}
		st.insertSession(cred.ID, newToken, now)
		found = cred
		eligible = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, notFound("session", "")
	}
	return &found, nil
}

// UpgradeSecretDigest implements identity.Store.
func (s *Store) UpgradeSecretDigest(ctx context.Context, secretID ulid.ULID, digest string) error {
	return s.run(ctx, "UpgradeSecretDigest", func(st *state) error {
		for userID, secret := range st.secrets {
			if secret.ID == secretID {
				secret.PasswordDigest = digest
				secret.UpdatedAt = s.now()
				st.secrets[userID] = secret
				return nil
			}
		}
		return notFound("secret", secretID.String())
	})
}

// SoftDeleteUser implements identity.Store.
func (s *Store) SoftDeleteUser(ctx context.Context, userID ulid.ULID) error {
	return s.run(ctx, "SoftDeleteUser", func(st *state) error {
		user, ok := st.users[userID]
		if !ok || user.DeletedAt != nil {
			return nil
		}
		now := s.now()
		user.DeletedAt = &now
		st.users[userID] = user
		return nil
	})
}

// RestoreUser implements identity.Store.
func (s *Store) RestoreUser(ctx context.Context, userID ulid.ULID) error {
	return s.run(ctx, "RestoreUser", func(st *state) error {
		user, ok := st.users[userID]
		if !ok {
			return nil
		}
		user.DeletedAt = nil
		st.users[userID] = user
		return nil
	})
}

// FindUserByID implements identity.Store.
func (s *Store) FindUserByID(ctx context.Context, userID ulid.ULID) (*identity.User, error) {
	var found identity.User
	err := s.run(ctx, "FindUserByID", func(st *state) error {
		user, ok := st.users[userID]
		if !ok {
			return notFound("user", userID.String())
		}
		found = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (st *state) insertSession(credentialID ulid.ULID, token string, now time.Time) {
	for id, sess := range st.sessions {
		if sess.CredentialID == credentialID && sess.IsLive() {
			disabled := now
			sess.DisabledAt = &disabled
			st.sessions[id] = sess
		}
	}
	id := ulid.Make()
	st.sessions[id] = identity.Session{ID: id, RefreshToken: token, CredentialID: credentialID, CreatedAt: now}
}

func notFound(entity, key string) error {
	return oops.Code("NOT_FOUND").With("entity", entity).With("key", key).Wrap(identity.ErrNotFound)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
