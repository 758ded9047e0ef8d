// Package auth implements credential handling for the plugin registry:
// API token generation and digest lookup material, plus the GitHub OAuth
// login flow used by the browser session endpoints.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"strings"
)

const (
	tokenLength   = 32
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateToken produces a new API token: 32 characters drawn uniformly from
// the alphanumeric alphabet via crypto/rand, alongside its SHA-256 digest.
// Only the digest is ever persisted.
func GenerateToken() (plaintext string, digest []byte, err error) {
	var sb strings.Builder
	sb.Grow(tokenLength)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := 0; i < tokenLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", nil, err
		}
		sb.WriteByte(tokenAlphabet[n.Int64()])
	}
	plaintext = sb.String()
	return plaintext, DigestToken(plaintext), nil
}

// DigestToken returns the SHA-256 digest of a token's plaintext. Digest
// equality is the authentication test, so lookups hit the unique index on
// token_digest instead of scanning rows.
func DigestToken(plaintext string) []byte {
	sum := sha256.Sum256([]byte(plaintext))
	return sum[:]
}

// ExtractBearer pulls the token out of an Authorization header value.
// Returns "" when the header is absent or not a Bearer scheme.
func ExtractBearer(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
