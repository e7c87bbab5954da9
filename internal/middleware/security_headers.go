package middleware

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/mhartsell/gatehouse/internal/models"
)

type nonceKey struct{}

// SecurityOptionsSource provides the stored security record. The
// middleware honors its headers toggle on every request.
type SecurityOptionsSource interface {
	GetSecurityOptions(ctx context.Context) (models.SecurityOptions, error)
}

// SecurityHeaders adds the hardening headers to every response, with a
// fresh CSP nonce per request so the login page can carry its inline
// bootstrap script without 'unsafe-inline'. Administrators can turn
// the headers off when another layer already sets them.
func SecurityHeaders(options SecurityOptionsSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			opts, err := options.GetSecurityOptions(r.Context())
			if err != nil {
				// Failing open would drop the headers on a DB blip;
				// fail closed to defaults instead.
				opts = models.DefaultSecurityOptions()
			}
			if !opts.SecurityHeaders {
				next.ServeHTTP(w, r)
				return
			}

			nonce := newNonce()

			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy",
				"default-src 'self'; "+
					"script-src 'self' 'nonce-"+nonce+"'; "+
					"style-src 'self'; "+
					"img-src 'self' data:; "+
					"connect-src 'self'; "+
					"frame-ancestors 'none'; "+
					"base-uri 'self'; "+
					"form-action 'self'")

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), nonceKey{}, nonce)))
		})
	}
}

// NonceFromContext returns the CSP nonce for the current request, or
// an empty string outside the SecurityHeaders middleware.
func NonceFromContext(ctx context.Context) string {
	nonce, _ := ctx.Value(nonceKey{}).(string)
	return nonce
}

func newNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(buf)
}
