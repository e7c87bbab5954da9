package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/mhartsell/gatehouse/internal/auth"
	"github.com/mhartsell/gatehouse/internal/services"
	pkghttp "github.com/mhartsell/gatehouse/pkg/http"
)

// alwaysOpenPrefixes stay reachable without a session even when forced
// login is on: the service's own plumbing and static assets.
var alwaysOpenPrefixes = []string{"/health", "/metrics", "/assets/", "/static/", "/favicon.ico"}

// ForceLogin redirects anonymous requests to the login page when the
// administrator has enabled forced login. The login surface itself and
// the operational endpoints are always exempt, so the redirect can
// never loop. The original destination rides along as redirect_to.
func ForceLogin(options SecurityOptionsSource, matcher *services.LoginPathMatcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isAlwaysOpen(r.URL.Path) || matcher.IsLoginRequest(r) {
				next.ServeHTTP(w, r)
				return
			}
			if auth.SessionFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			opts, err := options.GetSecurityOptions(r.Context())
			if err != nil || !opts.ForceLoginEnabled {
				next.ServeHTTP(w, r)
				return
			}

			if wantsJSON(r) {
				pkghttp.WriteUnauthorized(w, "Authentication required.")
				return
			}

			target := matcher.LoginPath()
			if dest := r.URL.RequestURI(); dest != "/" {
				target += "?redirect_to=" + url.QueryEscape(dest)
			}
			http.Redirect(w, r, target, http.StatusFound)
		})
	}
}

func isAlwaysOpen(path string) bool {
	for _, prefix := range alwaysOpenPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func wantsJSON(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
