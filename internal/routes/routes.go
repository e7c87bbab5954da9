package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mhartsell/gatehouse/internal/handlers"
	"github.com/mhartsell/gatehouse/internal/middleware"
	"github.com/mhartsell/gatehouse/internal/services"
)

// Deps carries everything route registration needs.
type Deps struct {
	AuthHandler      *handlers.AuthHandler
	DashboardHandler *handlers.DashboardHandler
	SettingsHandler  *handlers.SettingsHandler
	ConflictHandler  *handlers.ConflictHandler
	SyncService      *services.SyncService
	Matcher          *services.LoginPathMatcher
	MetricsHandler   http.Handler
}

// RegisterRoutes registers all application routes. The caller must
// already have installed the session and force-login middleware, in
// that order.
func RegisterRoutes(router chi.Router, deps Deps) {
	loginLimit := middleware.RateLimitByIP(middleware.DefaultLoginRateLimit())

	// Login surface. The custom slug serves the same form handler; the
	// router cannot know the slug at boot, so a catch-all consults the
	// matcher.
	router.Get(services.CanonicalLoginPath, deps.AuthHandler.LoginForm)
	router.With(loginLimit).Get("/auth/login-token", deps.AuthHandler.Token)
	router.With(loginLimit).Post(services.FormLoginPath, deps.AuthHandler.Login)
	router.With(loginLimit).Post(services.AjaxLoginPath, deps.AuthHandler.AjaxLogin)
	router.Post("/auth/logout", deps.AuthHandler.Logout)

	// Dashboard entry, behind the redirect policy.
	router.With(middleware.RequireSession).Get(services.NativeDashboardPath, deps.DashboardHandler.Enter)
	router.With(middleware.RequireSession).Get("/dashboard", deps.DashboardHandler.Enter)

	// Admin API. Deferred sync events drain on the way in, so a
	// settings change an admin made yesterday takes effect the moment
	// anyone opens the admin surface.
	router.Route("/admin/api", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Use(middleware.RateLimitByIP(middleware.DefaultAdminRateLimit()))
		r.Use(drainSyncQueue(deps.SyncService))

		r.Get("/settings/security", deps.SettingsHandler.GetSecurityOptions)
		r.Put("/settings/security", deps.SettingsHandler.UpdateSecurityOptions)
		r.Get("/settings/login", deps.SettingsHandler.GetLoginOptions)
		r.Put("/settings/login", deps.SettingsHandler.UpdateLoginOptions)

		r.Get("/conflicts", deps.ConflictHandler.Scan)
		r.Post("/conflicts/fix/{fixID}", deps.ConflictHandler.ApplyFix)
		r.Get("/notices", deps.ConflictHandler.ListNotices)
		r.Post("/notices/{noticeID}/dismiss", deps.ConflictHandler.DismissNotice)
		r.Get("/fix-actions", deps.ConflictHandler.ListFixActions)
		r.Get("/security-log", deps.ConflictHandler.SecurityLog)
	})

	if deps.MetricsHandler != nil {
		router.Handle("/metrics", deps.MetricsHandler)
	} else {
		router.Handle("/metrics", promhttp.Handler())
	}

	// Custom slug fallthrough: unknown single-segment paths that match
	// the configured slug serve the login form.
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && deps.Matcher.IsLoginRequest(r) {
			deps.AuthHandler.LoginForm(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// drainSyncQueue processes deferred settings-sync events before admin
// requests are served.
func drainSyncQueue(sync *services.SyncService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Failures are logged inside the service; admin requests
			// still serve and the background pruner retries later.
			_, _ = sync.ProcessPending(r.Context())
			next.ServeHTTP(w, r)
		})
	}
}
