package auth

import (
	"context"
	"net/http"

	"github.com/mhartsell/gatehouse/internal/models"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "gatehouse_session"

// contextKey is a custom type for context keys
type contextKey string

const userContextKey contextKey = "user"

// SetSessionCookie writes the session cookie after a successful login.
func SetSessionCookie(w http.ResponseWriter, token string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the session cookie on logout.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionFromRequest resolves the current session claims from the
// cookie, or nil for anonymous requests.
func SessionFromRequest(r *http.Request, sm *SessionManager) *models.SessionClaims {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	claims, err := sm.Validate(cookie.Value)
	if err != nil {
		return nil
	}
	return claims
}

// WithSession injects session claims into the request context.
func WithSession(ctx context.Context, claims *models.SessionClaims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// SessionFromContext returns the claims injected by the session
// middleware, or nil for anonymous requests.
func SessionFromContext(ctx context.Context) *models.SessionClaims {
	claims, _ := ctx.Value(userContextKey).(*models.SessionClaims)
	return claims
}
