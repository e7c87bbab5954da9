package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Form token action names. The standard form and the AJAX entry point
// use distinct actions so a token issued for one cannot replay against
// the other.
const (
	ActionLoginForm = "login-form"
	ActionLoginAjax = "login-ajax"
)

// formTokenEntry stores token metadata
type formTokenEntry struct {
	action string
	expiry time.Time
}

// FormTokenManager issues and validates single-use anti-forgery tokens
// bound to an action name.
type FormTokenManager struct {
	validTokens map[string]*formTokenEntry
	mu          sync.RWMutex
	tokenTTL    time.Duration
}

// NewFormTokenManager creates a new form token manager
func NewFormTokenManager(ttl time.Duration) *FormTokenManager {
	manager := &FormTokenManager{
		validTokens: make(map[string]*formTokenEntry),
		tokenTTL:    ttl,
	}

	go manager.cleanupExpiredTokens()

	return manager
}

// Issue creates a new token for the given action.
func (m *FormTokenManager) Issue(action string) (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(randomBytes)

	m.mu.Lock()
	m.validTokens[token] = &formTokenEntry{
		action: action,
		expiry: time.Now().Add(m.tokenTTL),
	}
	m.mu.Unlock()

	return token, nil
}

// Validate checks that a token exists, has not expired, and was issued
// for the given action. A valid token is consumed.
func (m *FormTokenManager) Validate(token, action string) bool {
	if token == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.validTokens[token]
	if !exists {
		return false
	}
	if entry.action != action {
		return false
	}
	if time.Now().After(entry.expiry) {
		delete(m.validTokens, token)
		return false
	}

	delete(m.validTokens, token)
	return true
}

// cleanupExpiredTokens periodically removes expired tokens
func (m *FormTokenManager) cleanupExpiredTokens() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		now := time.Now()
		for token, entry := range m.validTokens {
			if now.After(entry.expiry) {
				delete(m.validTokens, token)
			}
		}
		m.mu.Unlock()
	}
}
