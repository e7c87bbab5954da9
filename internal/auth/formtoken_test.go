package auth_test

import (
	"testing"
	"time"

	"github.com/mhartsell/gatehouse/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestFormTokenIssueAndValidate(t *testing.T) {
	m := auth.NewFormTokenManager(15 * time.Minute)

	token, err := m.Issue(auth.ActionLoginForm)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	assert.True(t, m.Validate(token, auth.ActionLoginForm))
	// Tokens are single-use.
	assert.False(t, m.Validate(token, auth.ActionLoginForm))
}

func TestFormTokenActionBinding(t *testing.T) {
	m := auth.NewFormTokenManager(15 * time.Minute)

	token, err := m.Issue(auth.ActionLoginForm)
	assert.NoError(t, err)

	// A token issued for the standard form does not validate for ajax.
	assert.False(t, m.Validate(token, auth.ActionLoginAjax))
}

func TestFormTokenExpiry(t *testing.T) {
	m := auth.NewFormTokenManager(time.Millisecond)

	token, err := m.Issue(auth.ActionLoginAjax)
	assert.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	assert.False(t, m.Validate(token, auth.ActionLoginAjax))
}

func TestFormTokenEmptyAndUnknown(t *testing.T) {
	m := auth.NewFormTokenManager(15 * time.Minute)

	assert.False(t, m.Validate("", auth.ActionLoginForm))
	assert.False(t, m.Validate("deadbeef", auth.ActionLoginForm))
}
