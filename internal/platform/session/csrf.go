package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// CSRFHeader carries the double-submitted token on state-changing auth calls.
const CSRFHeader = "X-CSRF-Token"

// NewCSRFToken returns 32 random bytes, hex encoded.
func NewCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: csrf token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ValidCSRF compares the cookie and header tokens in constant time.
func ValidCSRF(cookieToken, headerToken string) bool {
	if cookieToken == "" || headerToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) == 1
}
