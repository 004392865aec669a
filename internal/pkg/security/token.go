// Package security handles the API bearer token: generating it, hashing
// it for the config file and verifying requests against the hash.
package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken is returned for a token that does not match the hash.
var ErrInvalidToken = errors.New("invalid token")

// GenerateToken returns a random 32-byte token, hex encoded.
func GenerateToken() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// HashToken returns the bcrypt hash stored as server.token_hash.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", errors.New("token must not be empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verifier checks tokens against one bcrypt hash. Tokens that passed once
// are remembered so later requests skip the bcrypt cost.
type Verifier struct {
	hash     []byte
	accepted sync.Map
}

// NewVerifier returns a verifier for hash. An empty hash disables checks.
func NewVerifier(hash string) (*Verifier, error) {
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("token hash: %w", err)
		}
	}
	return &Verifier{hash: []byte(hash)}, nil
}

// Enabled reports whether a token is required.
func (v *Verifier) Enabled() bool { return len(v.hash) > 0 }

// Check verifies token.
func (v *Verifier) Check(token string) error {
	if !v.Enabled() {
		return nil
	}
	if _, ok := v.accepted.Load(token); ok {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(token)); err != nil {
		return ErrInvalidToken
	}
	v.accepted.Store(token, struct{}{})
	return nil
}
