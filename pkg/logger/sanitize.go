package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MaxUsernameLen matches the platform's maximum login-name length.
// Usernames are truncated to this before hashing so key cardinality
// stays bounded.
const MaxUsernameLen = 60

// TruncateUsername bounds a submitted username to the platform maximum.
func TruncateUsername(username string) string {
	if len(username) > MaxUsernameLen {
		return username[:MaxUsernameLen]
	}
	return username
}

// HashUsername returns a short salted hash of a username, suitable for
// counter keys and persisted logs. Raw usernames must never be written
// to durable storage or log output.
func HashUsername(username, salt string) string {
	sum := sha256.Sum256([]byte(salt + ":" + strings.ToLower(TruncateUsername(username))))
	return hex.EncodeToString(sum[:])[:16]
}

// SanitizeQueryString reports whether a query string contains sensitive
// parameters and should be redacted wholesale from request logs.
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"password",
		"token",
		"secret",
		"api_key",
		"apikey",
		"auth",
		"csrf",
		"username",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
