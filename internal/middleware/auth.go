package middleware

import (
	"net/http"

	"github.com/mhartsell/gatehouse/internal/auth"
	pkghttp "github.com/mhartsell/gatehouse/pkg/http"
)

// Session resolves the session cookie into claims on the request
// context. Requests without a valid session pass through anonymous;
// enforcement belongs to RequireSession and the force-login layer.
func Session(sm *auth.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims := auth.SessionFromRequest(r, sm); claims != nil {
				r = r.WithContext(auth.WithSession(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession rejects anonymous requests with 401.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.SessionFromContext(r.Context()) == nil {
			pkghttp.WriteUnauthorized(w, "Authentication required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects sessions without the administrator role. The
// settings and conflict surfaces are admin-only.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.SessionFromContext(r.Context())
		if claims == nil {
			pkghttp.WriteUnauthorized(w, "Authentication required.")
			return
		}
		if !hasRole(claims.Roles, "administrator") {
			pkghttp.WriteForbidden(w, "Administrator access required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hasRole(roles []string, want string) bool {
	for _, role := range roles {
		if role == want {
			return true
		}
	}
	return false
}
