package services

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mhartsell/gatehouse/internal/models"
)

func TestLoginPathMatcher(t *testing.T) {
	opts := models.DefaultSecurityOptions()
	opts.CustomLoginSlug = "portal"
	matcher := NewLoginPathMatcher(opts)

	tests := []struct {
		target string
		want   bool
	}{
		{"/login", true},
		{"/login/", true},
		{"/LOGIN", true},
		{"/auth/login", true},
		{"/auth/ajax-login", true},
		{"/auth/login-token", true},
		{"/portal", true},
		{"/Portal/", true},
		{"/anything?action=login", true},
		{"/anything?action=AJAX-LOGIN", true},
		{"/?portal", true},
		{"/index?Portal=1", true},
		{"/", false},
		{"/admin", false},
		{"/portal/news", false},
		{"/loginx", false},
		{"/?other=portal", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", tt.target, nil)
		assert.Equal(t, tt.want, matcher.IsLoginRequest(r), "target %s", tt.target)
	}
}

func TestLoginPathReflectsSlug(t *testing.T) {
	matcher := NewLoginPathMatcher(models.DefaultSecurityOptions())
	assert.Equal(t, CanonicalLoginPath, matcher.LoginPath())
	assert.False(t, matcher.CanonicalHidden())

	hidden := models.DefaultSecurityOptions()
	hidden.CustomLoginSlug = "portal"
	hidden.HideLoginPath = true
	matcher.Reload(hidden)
	assert.Equal(t, "/portal", matcher.LoginPath())
	assert.True(t, matcher.CanonicalHidden())
}

func TestHidingWithoutSlugIsIgnored(t *testing.T) {
	opts := models.DefaultSecurityOptions()
	opts.HideLoginPath = true
	matcher := NewLoginPathMatcher(opts)
	assert.False(t, matcher.CanonicalHidden())
	assert.Equal(t, CanonicalLoginPath, matcher.LoginPath())
}
