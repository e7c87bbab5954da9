package auth_test

import (
	"strings"
	"testing"

	"github.com/mhartsell/gatehouse/pkg/auth"
	"github.com/stretchr/testify/assert"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := auth.HashPassword("correct horse battery staple")
	assert.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.NoError(t, auth.ComparePassword(hash, "correct horse battery staple"))
	assert.Error(t, auth.ComparePassword(hash, "wrong password"))
}

func TestHashPassword_RejectsEmptyAndOversized(t *testing.T) {
	_, err := auth.HashPassword("")
	assert.Error(t, err)

	_, err = auth.HashPassword(strings.Repeat("x", auth.MaxPasswordLen+1))
	assert.Error(t, err)
}

func TestValidatePassword_GenericError(t *testing.T) {
	err := auth.ValidatePassword("short")
	assert.Error(t, err)
	assert.Equal(t, "invalid password", err.Error())

	assert.NoError(t, auth.ValidatePassword("long enough password"))
}
