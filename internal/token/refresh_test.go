// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package token_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/identity/internal/token"
	"github.com/holomush/identity/pkg/errutil"
)

func TestRefreshGenerator_Next(t *testing.T) {
	gen, err := token.NewRefreshGenerator(token.DefaultRefreshBytes)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for range 100 {
		tok, err := gen.Next()
		require.NoError(t, err)
		assert.Len(t, tok, 64)

		raw, err := base64.RawURLEncoding.DecodeString(tok)
		require.NoError(t, err)
		assert.Len(t, raw, token.DefaultRefreshBytes)

		assert.False(t, seen[tok], "token repeated")
		seen[tok] = true
	}
}

func TestNewRefreshGenerator_RejectsShortTokens(t *testing.T) {
	_, err := token.NewRefreshGenerator(16)
	errutil.AssertErrorCode(t, err, "TOKEN_INVALID_SIZE")
}

func TestHash(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", token.Hash("abc"))
	assert.NotEqual(t, token.Hash("a"), token.Hash("b"))
}
