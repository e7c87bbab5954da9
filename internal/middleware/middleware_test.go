package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhartsell/gatehouse/internal/auth"
	"github.com/mhartsell/gatehouse/internal/models"
	"github.com/mhartsell/gatehouse/internal/services"
)

type staticOptions struct {
	opts models.SecurityOptions
	err  error
}

func (s *staticOptions) GetSecurityOptions(context.Context) (models.SecurityOptions, error) {
	return s.opts, s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeadersSetWithNonce(t *testing.T) {
	source := &staticOptions{opts: models.DefaultSecurityOptions()}
	var nonce string
	handler := SecurityHeaders(source)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nonce = NonceFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/login", nil))

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	csp := rec.Header().Get("Content-Security-Policy")
	require.NotEmpty(t, nonce)
	assert.Contains(t, csp, "'nonce-"+nonce+"'")
	assert.Contains(t, csp, "frame-ancestors 'none'")
}

func TestSecurityHeadersNoncesAreUnique(t *testing.T) {
	source := &staticOptions{opts: models.DefaultSecurityOptions()}
	handler := SecurityHeaders(source)(okHandler())

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		csp := rec.Header().Get("Content-Security-Policy")
		start := strings.Index(csp, "'nonce-")
		require.GreaterOrEqual(t, start, 0)
		assert.False(t, seen[csp[start:start+30]])
		seen[csp[start:start+30]] = true
	}
}

func TestSecurityHeadersDisabledByOption(t *testing.T) {
	opts := models.DefaultSecurityOptions()
	opts.SecurityHeaders = false
	handler := SecurityHeaders(&staticOptions{opts: opts})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestSecurityHeadersFailClosedOnError(t *testing.T) {
	handler := SecurityHeaders(&staticOptions{err: assert.AnError})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func forcedLoginOptions() *staticOptions {
	opts := models.DefaultSecurityOptions()
	opts.ForceLoginEnabled = true
	return &staticOptions{opts: opts}
}

func TestForceLoginRedirectsAnonymous(t *testing.T) {
	source := forcedLoginOptions()
	matcher := services.NewLoginPathMatcher(source.opts)
	handler := ForceLogin(source, matcher)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/admin/orders?page=2", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "/login?redirect_to="), "got %s", location)
	assert.Contains(t, location, "%2Fadmin%2Forders%3Fpage%3D2")
}

func TestForceLoginSkipsLoginSurface(t *testing.T) {
	source := forcedLoginOptions()
	matcher := services.NewLoginPathMatcher(source.opts)
	handler := ForceLogin(source, matcher)(okHandler())

	for _, target := range []string{"/login", "/auth/ajax-login", "/health", "/metrics", "/assets/app.css"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
		assert.Equal(t, http.StatusOK, rec.Code, "target %s", target)
	}
}

func TestForceLoginAnswersJSONClientsWith401(t *testing.T) {
	source := forcedLoginOptions()
	matcher := services.NewLoginPathMatcher(source.opts)
	handler := ForceLogin(source, matcher)(okHandler())

	r := httptest.NewRequest("GET", "/admin/orders", nil)
	r.Header.Set("X-Requested-With", "XMLHttpRequest")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestForceLoginDisabledPassesThrough(t *testing.T) {
	source := &staticOptions{opts: models.DefaultSecurityOptions()}
	matcher := services.NewLoginPathMatcher(source.opts)
	handler := ForceLogin(source, matcher)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/admin", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestForceLoginPassesAuthenticated(t *testing.T) {
	source := forcedLoginOptions()
	matcher := services.NewLoginPathMatcher(source.opts)
	handler := ForceLogin(source, matcher)(okHandler())

	r := httptest.NewRequest("GET", "/admin", nil)
	claims := &models.SessionClaims{UserID: "u1", Username: "alice"}
	r = r.WithContext(auth.WithSession(r.Context(), claims))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionMiddlewareResolvesCookie(t *testing.T) {
	sm := auth.NewSessionManager("test-secret-value-0123456789abcdef", 14*24*time.Hour)
	user := &models.User{ID: "u1", Username: "alice", Roles: []string{"administrator"}}
	token, err := sm.Issue(user, time.Hour, false)
	require.NoError(t, err)

	var claims *models.SessionClaims
	handler := Session(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims = auth.SessionFromContext(r.Context())
	}))

	r := httptest.NewRequest("GET", "/admin", nil)
	r.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	handler.ServeHTTP(httptest.NewRecorder(), r)

	require.NotNil(t, claims)
	assert.Equal(t, "u1", claims.UserID)
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(okHandler())

	// Anonymous.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/admin/settings", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Authenticated, wrong role.
	r := httptest.NewRequest("GET", "/admin/settings", nil)
	r = r.WithContext(auth.WithSession(r.Context(), &models.SessionClaims{UserID: "u2", Roles: []string{"customer"}}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Administrator.
	r = httptest.NewRequest("GET", "/admin/settings", nil)
	r = r.WithContext(auth.WithSession(r.Context(), &models.SessionClaims{UserID: "u3", Roles: []string{"administrator"}}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}
