// Package auth handles the API keys that gate the two backend tiers.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Credential tiers.
const (
	TierPublic  = "public"
	TierService = "service"
)

// MinKeyLength is the shortest plaintext key HashKey accepts.
const MinKeyLength = 24

var ErrWeakKey = errors.New("key must be at least 24 characters and mix at least 3 of: uppercase, lowercase, numbers, special characters")

var (
	hasUpper   = regexp.MustCompile(`[A-Z]`).MatchString
	hasLower   = regexp.MustCompile(`[a-z]`).MatchString
	hasNumber  = regexp.MustCompile(`[0-9]`).MatchString
	hasSpecial = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>_\-+=~]`).MatchString
)

// ValidateKeyStrength checks key length and character mix.
func ValidateKeyStrength(key string) error {
	if len(key) < MinKeyLength {
		return ErrWeakKey
	}
	checks := 0
	for _, has := range []func(string) bool{hasUpper, hasLower, hasNumber, hasSpecial} {
		if has(key) {
			checks++
		}
	}
	if checks < 3 {
		return ErrWeakKey
	}
	return nil
}

// HashKey returns the bcrypt hash to put in the config instead of the
// plaintext key.
func HashKey(key string) (string, error) {
	if err := ValidateKeyStrength(key); err != nil {
		return "", err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// IsHash reports whether a configured key is a bcrypt hash.
func IsHash(configured string) bool {
	return strings.HasPrefix(configured, "$2a$") ||
		strings.HasPrefix(configured, "$2b$") ||
		strings.HasPrefix(configured, "$2y$")
}

// KeyMatches compares a presented key with a configured one. Empty keys
// never match.
func KeyMatches(configured, presented string) bool {
	if configured == "" || presented == "" {
		return false
	}
	if IsHash(configured) {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}

// PresentedKey extracts the caller's key from the Authorization bearer
// token, the apikey header or the apikey query parameter, in that order.
func PresentedKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if k := r.Header.Get("apikey"); k != "" {
		return k
	}
	return r.URL.Query().Get("apikey")
}
