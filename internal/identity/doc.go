// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package identity is the authentication core: registration, login with
// escalating lockout, refresh-token rotation, password change and account
// soft deletion.
//
// # Domain Types
//
// User, Credential, Secret and Session mirror the rows owned by a Store.
// Services only ever hold request-scoped copies returned from Store calls.
//
// # Services
//
// Each flow is an independent service built from a shared Deps struct:
//   - RegistrationService - creates user, credential and secret atomically
//   - AuthService - verifies a login, escalates lockouts, upgrades digests, opens a session
//   - RefreshService - consumes a refresh token and issues its single successor
//   - PasswordService - re-verifies and replaces a password digest
//   - AccountService - soft-deletes, restores and looks up users
//
// Services never call one another. Constructors validate the dependencies
// they need and return an error when one is missing.
//
// # Errors
//
// Every error returned by a service is an oops error whose code is one of the
// Code* constants. KindOf maps an error to its Kind for callers that render
// distinct responses.
package identity
