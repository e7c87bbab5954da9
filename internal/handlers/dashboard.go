package handlers

import (
	"context"
	"net/http"

	"github.com/mhartsell/gatehouse/internal/auth"
	"github.com/mhartsell/gatehouse/internal/models"
	"github.com/mhartsell/gatehouse/internal/services"
	pkghttp "github.com/mhartsell/gatehouse/pkg/http"
)

// RedirectDecider resolves the post-login destination for a user.
type RedirectDecider interface {
	Decide(ctx context.Context, user *models.User, requested string, nativeOverride bool) (string, error)
}

// UserLookup loads full user records for session claims.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// DashboardHandler applies the redirect policy when an authenticated
// user lands on the native dashboard entry point.
type DashboardHandler struct {
	redirects RedirectDecider
	users     UserLookup
}

func NewDashboardHandler(redirects RedirectDecider, users UserLookup) *DashboardHandler {
	return &DashboardHandler{redirects: redirects, users: users}
}

// Enter resolves the dashboard destination. ?native=1 asks for the
// native dashboard; the policy only grants it to elevated users.
func (h *DashboardHandler) Enter(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required.")
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		// A stale session for a deleted account: roles from the token
		// are still good enough to route with.
		user = &models.User{ID: claims.UserID, Username: claims.Username, Roles: claims.Roles}
	}

	nativeOverride := r.URL.Query().Get("native") == "1"
	dest, err := h.redirects.Decide(r.Context(), user, r.URL.Query().Get("redirect_to"), nativeOverride)
	if err != nil {
		dest = services.NativeDashboardPath
	}

	if dest == services.NativeDashboardPath || dest == r.URL.Path {
		pkghttp.WriteSuccess(w, http.StatusOK, pkghttp.SuccessData{
			Message: "Welcome back.",
		})
		return
	}
	http.Redirect(w, r, dest, http.StatusFound)
}
