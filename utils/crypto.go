package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// APIKeyPrefix marks bearer credentials that are API keys rather than JWTs.
const APIKeyPrefix = "cKey_"

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateAPIKey returns a new raw key of the form cKey_<domain>_<random>.
func GenerateAPIKey(domain string) (string, error) {
	raw, err := randomToken(32)
	if err != nil {
		return "", err
	}
	return APIKeyPrefix + domain + "_" + raw, nil
}

// GenerateRefreshToken returns a new opaque refresh token.
func GenerateRefreshToken() (string, error) {
	return randomToken(64)
}

// HashSecret is the one-way hash stored for API keys and refresh tokens.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// IsAPIKey reports whether a bearer credential looks like an API key.
func IsAPIKey(credential string) bool {
	return strings.HasPrefix(credential, APIKeyPrefix)
}
