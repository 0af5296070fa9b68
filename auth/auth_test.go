// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	tests := []struct {
		name    string
		byteLen int
		wantLen int // hex encoded length = byteLen * 2
	}{
		{"8 bytes", 8, 16},
		{"16 bytes", 16, 32},
		{"24 bytes", 24, 48},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := GenerateID(tt.byteLen)
			require.NoError(t, err)
			assert.Len(t, id, tt.wantLen)

			_, err = hex.DecodeString(id)
			assert.NoError(t, err, "ID should be valid hex")
		})
	}

	id1, _ := GenerateID(16)
	id2, _ := GenerateID(16)
	assert.NotEqual(t, id1, id2, "GenerateID() produced duplicate IDs")
}

func TestGenerateAccountToken(t *testing.T) {
	token, err := GenerateAccountToken()
	require.NoError(t, err)

	// 24 bytes base64 without padding = 32 chars
	assert.Len(t, token, 32)
	assert.NotContains(t, token, "=")
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")

	other, err := GenerateAccountToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("token-a", "salt")
	h2 := HashToken("token-a", "salt")
	assert.Equal(t, h1, h2, "HashToken should be deterministic")
	assert.Len(t, h1, 64)

	assert.NotEqual(t, h1, HashToken("token-b", "salt"))
	assert.NotEqual(t, h1, HashToken("token-a", "other-salt"))
	assert.False(t, strings.Contains(h1, "token-a"))
}

func TestValidateToken(t *testing.T) {
	salt := "test-token-salt"
	token, err := GenerateAccountToken()
	require.NoError(t, err)
	hash := HashToken(token, salt)

	tests := []struct {
		name    string
		token   string
		hash    string
		salt    string
		wantErr error
	}{
		{"valid", token, hash, salt, nil},
		{"empty token", "", hash, salt, ErrMissingToken},
		{"wrong token", token + "x", hash, salt, ErrInvalidToken},
		{"wrong salt", token, hash, "nope", ErrInvalidToken},
		{"wrong hash", token, HashToken("other", salt), salt, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateToken(tt.token, tt.hash, tt.salt)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHashIP(t *testing.T) {
	h := HashIP("192.168.1.1", "salt")
	assert.Len(t, h, 16)
	assert.Equal(t, h, HashIP("192.168.1.1", "salt"))
	assert.NotEqual(t, h, HashIP("192.168.1.2", "salt"))
	assert.NotEqual(t, h, HashIP("192.168.1.1", "pepper"))
}
