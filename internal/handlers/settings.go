package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mhartsell/gatehouse/internal/auth"
	"github.com/mhartsell/gatehouse/internal/models"
	pkghttp "github.com/mhartsell/gatehouse/pkg/http"
)

// SettingsService is the options surface exposed to administrators.
type SettingsService interface {
	GetSecurityOptions(ctx context.Context) (models.SecurityOptions, error)
	GetLoginOptions(ctx context.Context) (models.LoginOptions, error)
	UpdateSecurityOptions(ctx context.Context, actor string, proposed models.SecurityOptions) (models.SecurityOptions, error)
	UpdateLoginOptions(ctx context.Context, actor string, proposed models.LoginOptions) (models.LoginOptions, error)
}

// SettingsHandler serves the admin settings API. All routes behind it
// require the administrator role.
type SettingsHandler struct {
	service SettingsService
}

func NewSettingsHandler(service SettingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// SecurityOptionsRequest mirrors models.SecurityOptions with
// validation tags. Out-of-range numbers are clamped rather than
// rejected, matching the stored-record guarantees.
type SecurityOptionsRequest struct {
	ForceLoginEnabled bool     `json:"force_login_enabled"`
	HideLoginPath     bool     `json:"hide_login_path"`
	CustomLoginSlug   string   `json:"custom_login_slug" validate:"max=100"`
	MaxLoginAttempts  int      `json:"max_login_attempts"`
	LockoutSeconds    int      `json:"lockout_seconds"`
	SessionSeconds    int      `json:"session_seconds"`
	SecurityHeaders   bool     `json:"security_headers"`
	ExemptRoles       []string `json:"exempt_roles" validate:"max=20,dive,max=64"`
}

// LoginOptionsRequest mirrors models.LoginOptions.
type LoginOptionsRequest struct {
	RedirectToCompanion  bool   `json:"redirect_to_companion"`
	ForceDashboardSwap   bool   `json:"force_dashboard_swap"`
	RoleRedirectsEnabled bool   `json:"role_redirects_enabled"`
	ExemptAdmins         bool   `json:"exempt_admins"`
	CompanionPath        string `json:"companion_path" validate:"max=200"`
}

func (h *SettingsHandler) GetSecurityOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.GetSecurityOptions(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	pkghttp.WriteData(w, http.StatusOK, opts)
}

func (h *SettingsHandler) UpdateSecurityOptions(w http.ResponseWriter, r *http.Request) {
	var req SecurityOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	stored, err := h.service.UpdateSecurityOptions(r.Context(), actorFrom(r), models.SecurityOptions{
		ForceLoginEnabled: req.ForceLoginEnabled,
		HideLoginPath:     req.HideLoginPath,
		CustomLoginSlug:   req.CustomLoginSlug,
		MaxLoginAttempts:  req.MaxLoginAttempts,
		LockoutSeconds:    req.LockoutSeconds,
		SessionSeconds:    req.SessionSeconds,
		SecurityHeaders:   req.SecurityHeaders,
		ExemptRoles:       req.ExemptRoles,
	})
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	pkghttp.WriteData(w, http.StatusOK, stored)
}

func (h *SettingsHandler) GetLoginOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.GetLoginOptions(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	pkghttp.WriteData(w, http.StatusOK, opts)
}

func (h *SettingsHandler) UpdateLoginOptions(w http.ResponseWriter, r *http.Request) {
	var req LoginOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	stored, err := h.service.UpdateLoginOptions(r.Context(), actorFrom(r), models.LoginOptions{
		RedirectToCompanion:  req.RedirectToCompanion,
		ForceDashboardSwap:   req.ForceDashboardSwap,
		RoleRedirectsEnabled: req.RoleRedirectsEnabled,
		ExemptAdmins:         req.ExemptAdmins,
		CompanionPath:        req.CompanionPath,
	})
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	pkghttp.WriteData(w, http.StatusOK, stored)
}

func actorFrom(r *http.Request) string {
	if claims := auth.SessionFromContext(r.Context()); claims != nil {
		return claims.UserID
	}
	return "unknown"
}
