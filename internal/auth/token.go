package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mhartsell/gatehouse/internal/models"
)

// SessionManager issues and validates session tokens. The session
// lifetime comes from the security options at issue time; remember-me
// extends it to the configured remember duration.
type SessionManager struct {
	secret           string
	rememberDuration time.Duration
}

// NewSessionManager creates a new SessionManager
func NewSessionManager(secret string, rememberDuration time.Duration) *SessionManager {
	return &SessionManager{
		secret:           secret,
		rememberDuration: rememberDuration,
	}
}

// Lifetime returns the effective session lifetime for a base duration
// and remember flag. The cookie max-age must agree with the token
// expiry, so both come from here.
func (sm *SessionManager) Lifetime(base time.Duration, remember bool) time.Duration {
	if remember && sm.rememberDuration > base {
		return sm.rememberDuration
	}
	return base
}

// Issue creates a session token for the user with the given lifetime.
func (sm *SessionManager) Issue(user *models.User, lifetime time.Duration, remember bool) (string, error) {
	lifetime = sm.Lifetime(lifetime, remember)

	now := time.Now()
	claims := &models.SessionClaims{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.Roles,
		Remember: remember,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(sm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return tokenString, nil
}

// Validate parses and verifies a session token.
func (sm *SessionManager) Validate(tokenString string) (*models.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(sm.secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid {
		return nil, models.ErrUnauthorized
	}
	return claims, nil
}
