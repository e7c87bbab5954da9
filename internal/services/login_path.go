package services

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/mhartsell/gatehouse/internal/models"
)

// OptionsReader is the read side of the options store. Implemented by
// repositories.OptionsRepository.
type OptionsReader interface {
	GetSecurityOptions(ctx context.Context) (models.SecurityOptions, error)
	GetLoginOptions(ctx context.Context) (models.LoginOptions, error)
}

// Canonical login surface. The canonical page stays reachable unless
// hiding is enabled with a custom slug configured.
const (
	CanonicalLoginPath = "/login"
	AjaxLoginPath      = "/auth/ajax-login"
	FormLoginPath      = "/auth/login"
)

// LoginPathMatcher decides whether a request targets the login surface.
// It is compiled from the security options and swapped whole on reload,
// so request-path checks never read the options table.
type LoginPathMatcher struct {
	mu     sync.RWMutex
	slug   string
	hidden bool
}

func NewLoginPathMatcher(opts models.SecurityOptions) *LoginPathMatcher {
	m := &LoginPathMatcher{}
	m.Reload(opts)
	return m
}

// Reload recompiles the matcher from fresh options.
func (m *LoginPathMatcher) Reload(opts models.SecurityOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slug = opts.CustomLoginSlug
	// Hiding without a slug would leave no way in at all.
	m.hidden = opts.HideLoginPath && opts.CustomLoginSlug != ""
}

// LoginPath returns the path unauthenticated users should be sent to.
func (m *LoginPathMatcher) LoginPath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.slug != "" {
		return "/" + m.slug
	}
	return CanonicalLoginPath
}

// CanonicalHidden reports whether requests to the canonical login path
// should 404 instead of serving the form.
func (m *LoginPathMatcher) CanonicalHidden() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hidden
}

// IsLoginRequest reports whether the request targets any part of the
// login surface: canonical page, custom slug as a path segment or a
// query parameter, submit endpoints, or an explicit action=login /
// action=ajax-login query parameter. Matching is case-insensitive and
// tolerates a trailing slash.
func (m *LoginPathMatcher) IsLoginRequest(r *http.Request) bool {
	path := strings.ToLower(strings.TrimSuffix(r.URL.Path, "/"))
	if path == "" {
		path = "/"
	}

	switch path {
	case CanonicalLoginPath, AjaxLoginPath, FormLoginPath, "/auth/login-token", "/auth/logout":
		return true
	}

	m.mu.RLock()
	slug := m.slug
	m.mu.RUnlock()
	if slug != "" {
		if path == "/"+strings.ToLower(slug) {
			return true
		}
		// The hidden login is also reachable as ?<slug> on any path.
		for key := range r.URL.Query() {
			if strings.EqualFold(key, slug) {
				return true
			}
		}
	}

	switch strings.ToLower(r.URL.Query().Get("action")) {
	case "login", "ajax-login", "logout":
		return true
	}
	return false
}
