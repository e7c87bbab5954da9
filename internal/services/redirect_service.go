package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mhartsell/gatehouse/internal/models"
	pkglogger "github.com/mhartsell/gatehouse/pkg/logger"
)

// Native admin surfaces used when no redirect policy applies.
const (
	NativeDashboardPath = "/admin"
	ContentListPath     = "/admin/posts"
	OrderListPath       = "/admin/orders"
	AccountPath         = "/account"
)

// roleDestinations routes non-admin roles to the surface they actually
// work in when role-based redirects are enabled.
var roleDestinations = map[string]string{
	"editor":       ContentListPath,
	"author":       ContentListPath,
	"shop_manager": OrderListPath,
	"customer":     AccountPath,
	"subscriber":   AccountPath,
}

// CompanionProbe reports whether the companion dashboard is installed
// and responding. Probes should cache internally; Decide calls this on
// every policy-affected request.
type CompanionProbe interface {
	Available(ctx context.Context) bool
}

// RedirectService decides where an authenticated user lands, applying
// the companion and role policies with exemptions checked first. When
// the companion is gone but still configured, the service heals the
// stored options instead of redirecting into a 404.
type RedirectService struct {
	settings  *SettingsService
	companion CompanionProbe
	notices   NoticeWriter
	logger    *slog.Logger
	audit     *pkglogger.AuditLogger
}

func NewRedirectService(settings *SettingsService, companion CompanionProbe, notices NoticeWriter, logger *slog.Logger, audit *pkglogger.AuditLogger) *RedirectService {
	return &RedirectService{
		settings:  settings,
		companion: companion,
		notices:   notices,
		logger:    logger,
		audit:     audit,
	}
}

// Decide resolves the destination for user. requested is the sanitized
// redirect_to value, possibly empty; nativeOverride is the one-shot
// escape hatch back to the original destination, honored only for
// users holding the manage capability so a query parameter cannot
// defeat the swap policy for everyone else.
//
// Precedence: exemption, native override, companion policy (original
// destination when the companion is down), role policy, requested
// destination, native dashboard.
func (rs *RedirectService) Decide(ctx context.Context, user *models.User, requested string, nativeOverride bool) (string, error) {
	secOpts, err := rs.settings.GetSecurityOptions(ctx)
	if err != nil {
		return "", err
	}
	loginOpts, err := rs.settings.GetLoginOptions(ctx)
	if err != nil {
		return "", err
	}

	fallback := SanitizeRedirect(requested, NativeDashboardPath)

	if user.HasCapability(models.CapBypassRedirects) || secOpts.HasExemptRole(user.Roles) {
		return fallback, nil
	}
	if loginOpts.ExemptAdmins && user.HasRole("administrator") {
		return fallback, nil
	}
	if nativeOverride && user.HasCapability(models.CapManageOptions) {
		return fallback, nil
	}

	if loginOpts.RedirectToCompanion || loginOpts.ForceDashboardSwap {
		if rs.companion.Available(ctx) {
			return loginOpts.CompanionPath, nil
		}
		if err := rs.healCompanionOptions(ctx, loginOpts); err != nil {
			rs.logger.Error("failed to heal companion options", "error", err)
		}
		// A dead companion means the original destination; the role
		// map does not get a second chance at this request.
		return fallback, nil
	}

	if loginOpts.RoleRedirectsEnabled {
		for _, role := range user.Roles {
			if dest, ok := roleDestinations[role]; ok {
				return dest, nil
			}
		}
	}
	return fallback, nil
}

// healCompanionOptions turns the companion flags off after the probe
// failed, so every subsequent request skips the dead policy instead of
// re-probing. The notice upsert is idempotent, and concurrent healers
// converge on the same stored record.
func (rs *RedirectService) healCompanionOptions(ctx context.Context, loginOpts models.LoginOptions) error {
	loginOpts.RedirectToCompanion = false
	loginOpts.ForceDashboardSwap = false
	if _, err := rs.settings.UpdateLoginOptions(ctx, "system", loginOpts); err != nil {
		return err
	}

	rs.audit.LogConfigChange("companion_redirect_disabled", "system", map[string]string{
		"reason": "companion_unreachable",
	})
	if err := rs.notices.Upsert(ctx, "companion_unreachable",
		"The companion dashboard is not responding. Companion redirects were disabled; re-enable them once it is back."); err != nil {
		rs.logger.Error("failed to post companion notice", "error", err)
	}
	return nil
}

// SanitizeRedirect keeps post-login destinations on this origin. Only
// rooted paths survive; anything else becomes the fallback.
func SanitizeRedirect(requested, fallback string) string {
	requested = strings.TrimSpace(requested)
	if requested == "" || !strings.HasPrefix(requested, "/") {
		return fallback
	}
	if strings.HasPrefix(requested, "//") || strings.HasPrefix(requested, "/\\") || strings.Contains(requested, "..") {
		return fallback
	}
	if strings.ContainsAny(requested, "\r\n") {
		return fallback
	}
	return requested
}
