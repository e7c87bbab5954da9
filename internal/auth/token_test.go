package auth_test

import (
	"testing"
	"time"

	"github.com/mhartsell/gatehouse/internal/auth"
	"github.com/mhartsell/gatehouse/internal/models"
	"github.com/stretchr/testify/assert"
)

func testUser() *models.User {
	return &models.User{
		ID:       "8f4a2b9e-0000-0000-0000-000000000001",
		Username: "alice",
		Roles:    []string{"editor"},
	}
}

func TestSessionIssueAndValidate(t *testing.T) {
	sm := auth.NewSessionManager("a-sufficiently-long-dev-secret", 14*24*time.Hour)

	token, err := sm.Issue(testUser(), time.Hour, false)
	assert.NoError(t, err)

	claims, err := sm.Validate(token)
	assert.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, []string{"editor"}, claims.Roles)
	assert.False(t, claims.Remember)
}

func TestSessionRememberExtendsLifetime(t *testing.T) {
	sm := auth.NewSessionManager("a-sufficiently-long-dev-secret", 14*24*time.Hour)

	token, err := sm.Issue(testUser(), time.Hour, true)
	assert.NoError(t, err)

	claims, err := sm.Validate(token)
	assert.NoError(t, err)
	assert.True(t, claims.Remember)
	assert.True(t, claims.ExpiresAt.After(time.Now().Add(13*24*time.Hour)))
}

func TestSessionValidate_WrongSecret(t *testing.T) {
	sm := auth.NewSessionManager("a-sufficiently-long-dev-secret", 0)
	other := auth.NewSessionManager("a-different-but-also-long-secret", 0)

	token, err := sm.Issue(testUser(), time.Hour, false)
	assert.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestSessionValidate_Expired(t *testing.T) {
	sm := auth.NewSessionManager("a-sufficiently-long-dev-secret", 0)

	token, err := sm.Issue(testUser(), -time.Minute, false)
	assert.NoError(t, err)

	_, err = sm.Validate(token)
	assert.Error(t, err)
}
