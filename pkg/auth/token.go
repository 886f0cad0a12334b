package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	// GeneratedKeyBytes is the number of random bytes in a generated API key (64 hex chars)
	GeneratedKeyBytes = 32

	maskVisible = 5
)

// GenerateKey returns a random hex-encoded API key
func GenerateKey() (string, error) {
	b := make([]byte, GeneratedKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken computes the SHA256 hash of a bearer token. Raw tokens are never
// used as cache keys or logged.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// MaskKey hides all but the first and last five characters of a key
func MaskKey(key string) string {
	if len(key) <= maskVisible*2 {
		return "..."
	}
	return key[:maskVisible] + "..." + key[len(key)-maskVisible:]
}
