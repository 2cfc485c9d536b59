// Package auth guards the MCP endpoint with static API keys. Keys are held
// in memory as SHA-256 digests; the plaintext is never retained.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sync"
)

const (
	// APIKeyPrefix distinguishes sealbox API keys from other bearer tokens.
	APIKeyPrefix = "sb_"

	// APIKeyMinLen is the prefix plus 16 random bytes in hex.
	APIKeyMinLen = len(APIKeyPrefix) + 32
)

// APIKey is an authenticated key identity.
type APIKey struct {
	UserID string
}

type keyEntry struct {
	digest [sha256.Size]byte
	userID string
}

// Store holds the configured API keys.
type Store struct {
	mu   sync.RWMutex
	keys []keyEntry
}

// NewStore creates an empty key store.
func NewStore() *Store {
	return &Store{}
}

// AddAPIKey registers key for userID.
func (s *Store) AddAPIKey(userID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys = append(s.keys, keyEntry{digest: sha256.Sum256([]byte(key)), userID: userID})
}

// Len returns the number of registered keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.keys)
}

// ValidateAPIKey returns the identity for key, or nil. Every entry is
// compared so the time taken does not depend on which entry matched.
func (s *Store) ValidateAPIKey(key string) *APIKey {
	digest := sha256.Sum256([]byte(key))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *APIKey

	for _, e := range s.keys {
		if subtle.ConstantTimeCompare(digest[:], e.digest[:]) == 1 && found == nil {
			found = &APIKey{UserID: e.userID}
		}
	}

	return found
}

// GenerateAPIKey returns a fresh key in the configured format.
func GenerateAPIKey() string {
	return APIKeyPrefix + RandomHex(16)
}

// RandomHex generates a cryptographically random hex string of the given byte length.
func RandomHex(byteLen int) string {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
