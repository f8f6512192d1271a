// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identitytest

import (
	"sort"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/identity/internal/identity"
)

// Credential returns the credential for login, ignoring user state.
func (s *Store) Credential(login string) (identity.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.state.logins[login]
	if !ok {
		return identity.Credential{}, false
	}
	return s.state.credentials[id], true
}

// UpdateCredential applies fn to the stored credential for login.
func (s *Store) UpdateCredential(login string, fn func(*identity.Credential)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.state.logins[login]
	if !ok {
		return false
	}
	cred := s.state.credentials[id]
	fn(&cred)
	s.state.credentials[id] = cred
	return true
}

// User returns the stored user.
func (s *Store) User(id ulid.ULID) (identity.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.state.users[id]
	return user, ok
}

// UpdateUser applies fn to the stored user.
func (s *Store) UpdateUser(id ulid.ULID, fn func(*identity.User)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.state.users[id]
	if !ok {
		return false
	}
	fn(&user)
	s.state.users[id] = user
	return true
}

// Secret returns the stored secret of a user.
func (s *Store) Secret(userID ulid.ULID) (identity.Secret, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret, ok := s.state.secrets[userID]
	return secret, ok
}

// Sessions returns every session of a credential, oldest first.
func (s *Store) Sessions(credentialID ulid.ULID) []identity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []identity.Session
	for _, sess := range s.state.sessions {
		if sess.CredentialID == credentialID {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) < 0 })
	return out
}

// LiveSessions returns the sessions of a credential that are not disabled.
func (s *Store) LiveSessions(credentialID ulid.ULID) []identity.Session {
	var live []identity.Session
	for _, sess := range s.Sessions(credentialID) {
		if sess.IsLive() {
			live = append(live, sess)
		}
	}
	return live
}

// Counts reports how many users, credentials, secrets and sessions are stored.
func (s *Store) Counts() (users, credentials, secrets, sessions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.users), len(s.state.credentials), len(s.state.secrets), len(s.state.sessions)
}
