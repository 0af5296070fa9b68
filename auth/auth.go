// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// TokenHeader carries the account token on authenticated requests
const TokenHeader = "X-Account-Token"

var (
	ErrInvalidToken = errors.New("invalid account token")
	ErrMissingToken = errors.New("missing account token")
)

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateAccountToken creates a random secret handed to an account once,
// at registration.
func GenerateAccountToken() (string, error) {
	b := make([]byte, 24) // 192 bits
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate account token: %w", err)
	}
	return strings.TrimRight(base64.URLEncoding.EncodeToString(b), "="), nil
}

// HashToken derives the stored form of an account token.
// The raw token never touches the database.
func HashToken(token, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateToken checks a presented token against a stored hash
func ValidateToken(token, hash, salt string) error {
	if token == "" {
		return ErrMissingToken
	}
	if !hmac.Equal([]byte(HashToken(token, salt)), []byte(hash)) {
		return ErrInvalidToken
	}
	return nil
}

// HashIP creates a one-way hash of an IP address for privacy
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	// 64 bits is enough to spot repeat bidders
	return hex.EncodeToString(sum[:8])
}
