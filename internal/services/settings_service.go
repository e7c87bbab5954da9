package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mhartsell/gatehouse/internal/models"
	pkglogger "github.com/mhartsell/gatehouse/pkg/logger"
)

// FallbackLoginSlug replaces any proposed slug that fails sanitization.
// Hiding is forced off alongside it so the fallback can never lock an
// admin out behind a slug they did not choose.
const FallbackLoginSlug = "secure-login"

const (
	minSlugLen = 3
	maxSlugLen = 30
)

// reservedSlugs are paths the router already owns or that would shadow
// well-known surfaces.
var reservedSlugs = map[string]bool{
	"login":     true,
	"logout":    true,
	"admin":     true,
	"auth":      true,
	"dashboard": true,
	"api":       true,
	"metrics":   true,
	"health":    true,
	"assets":    true,
	"static":    true,
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// OptionsStore is the full options surface the settings service needs.
// Implemented by repositories.OptionsRepository.
type OptionsStore interface {
	OptionsReader
	SetSecurityOptions(ctx context.Context, opts models.SecurityOptions) error
	SetLoginOptions(ctx context.Context, opts models.LoginOptions) error
}

// NoticeWriter posts dismissible admin notices. Upsert is idempotent
// per code while a notice of that code is undismissed.
type NoticeWriter interface {
	Upsert(ctx context.Context, code, message string) error
}

// SettingsService validates and persists the two option records. Every
// write sanitizes first, stores the sanitized record, then enqueues a
// sync event carrying both the previous and the sanitized value.
type SettingsService struct {
	options OptionsStore
	sync    *SyncService
	notices NoticeWriter
	logger  *slog.Logger
	audit   *pkglogger.AuditLogger
}

func NewSettingsService(options OptionsStore, sync *SyncService, notices NoticeWriter, logger *slog.Logger, audit *pkglogger.AuditLogger) *SettingsService {
	return &SettingsService{
		options: options,
		sync:    sync,
		notices: notices,
		logger:  logger,
		audit:   audit,
	}
}

// GetSecurityOptions returns the stored record, or defaults before the
// first write.
func (s *SettingsService) GetSecurityOptions(ctx context.Context) (models.SecurityOptions, error) {
	return s.options.GetSecurityOptions(ctx)
}

func (s *SettingsService) GetLoginOptions(ctx context.Context) (models.LoginOptions, error) {
	return s.options.GetLoginOptions(ctx)
}

// UpdateSecurityOptions sanitizes, persists, and synchronizes the
// security record. Security-path changes are processed immediately
// rather than waiting for the next admin request. Returns the record
// as stored, which may differ from the proposal.
func (s *SettingsService) UpdateSecurityOptions(ctx context.Context, actor string, proposed models.SecurityOptions) (models.SecurityOptions, error) {
	current, err := s.options.GetSecurityOptions(ctx)
	if err != nil {
		return models.SecurityOptions{}, err
	}

	sanitized, downgraded := s.sanitizeSecurityOptions(ctx, proposed)
	if err := s.options.SetSecurityOptions(ctx, sanitized); err != nil {
		return models.SecurityOptions{}, err
	}

	s.audit.LogConfigChange("security_options_updated", actor, map[string]string{
		"slug_downgraded": fmt.Sprintf("%t", downgraded),
	})

	if _, err := s.sync.Enqueue(ctx, models.SyncSecurityOptions, current, sanitized); err != nil {
		return models.SecurityOptions{}, err
	}
	if _, err := s.sync.ProcessImmediate(ctx, models.SyncSecurityOptions); err != nil {
		s.logger.Error("immediate sync processing failed", "error", err)
	}
	return sanitized, nil
}

// UpdateLoginOptions persists the login customization record. Redirect
// policy flips are security relevant and are processed immediately;
// everything else waits for the next admin request.
func (s *SettingsService) UpdateLoginOptions(ctx context.Context, actor string, proposed models.LoginOptions) (models.LoginOptions, error) {
	current, err := s.options.GetLoginOptions(ctx)
	if err != nil {
		return models.LoginOptions{}, err
	}

	proposed.CompanionPath = sanitizePath(proposed.CompanionPath, models.DefaultLoginOptions().CompanionPath)
	if err := s.options.SetLoginOptions(ctx, proposed); err != nil {
		return models.LoginOptions{}, err
	}

	s.audit.LogConfigChange("login_options_updated", actor, nil)

	if _, err := s.sync.Enqueue(ctx, models.SyncLoginOptions, current, proposed); err != nil {
		return models.LoginOptions{}, err
	}
	if current.RedirectToCompanion != proposed.RedirectToCompanion ||
		current.ForceDashboardSwap != proposed.ForceDashboardSwap {
		if _, err := s.sync.ProcessImmediate(ctx, models.SyncLoginOptions); err != nil {
			s.logger.Error("immediate sync processing failed", "error", err)
		}
	}
	return proposed, nil
}

// sanitizeSecurityOptions clamps numeric bounds, guarantees the
// administrator exemption, and replaces an unusable slug with the
// fallback. Returns whether the slug was downgraded.
func (s *SettingsService) sanitizeSecurityOptions(ctx context.Context, opts models.SecurityOptions) (models.SecurityOptions, bool) {
	opts.MaxLoginAttempts = clamp(opts.MaxLoginAttempts, 3, 10)
	opts.LockoutSeconds = clamp(opts.LockoutSeconds, 300, 3600)
	opts.SessionSeconds = clamp(opts.SessionSeconds, 900, 7200)

	if !containsString(opts.ExemptRoles, "administrator") {
		opts.ExemptRoles = append(opts.ExemptRoles, "administrator")
	}

	// An empty slug is unusable like any other bad proposal and takes
	// the same fallback, so the stored record always carries a slug
	// that can actually be routed.
	downgraded := false
	slug, ok := SanitizeSlug(opts.CustomLoginSlug)
	if !ok {
		downgraded = true
		opts.HideLoginPath = false
		s.logger.Warn("rejected login slug, using fallback",
			"fallback", slug, "hide_disabled", true)
		if err := s.notices.Upsert(ctx, "slug_downgraded",
			"The custom login slug was invalid and has been replaced with a safe default. Path hiding was disabled."); err != nil {
			s.logger.Error("failed to post slug notice", "error", err)
		}
	}
	opts.CustomLoginSlug = slug
	return opts, downgraded
}

// SanitizeSlug normalizes a proposed login slug. The second return is
// false when the proposal was unusable and the fallback was substituted.
func SanitizeSlug(proposed string) (string, bool) {
	slug := strings.ToLower(strings.TrimSpace(proposed))
	slug = strings.Trim(slug, "-/")

	if len(slug) < minSlugLen || len(slug) > maxSlugLen {
		return FallbackLoginSlug, false
	}
	if !slugPattern.MatchString(slug) {
		return FallbackLoginSlug, false
	}
	if reservedSlugs[slug] {
		return FallbackLoginSlug, false
	}
	return slug, true
}

// sanitizePath keeps companion paths rooted and free of scheme tricks.
func sanitizePath(p, fallback string) string {
	p = strings.TrimSpace(p)
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, "..") {
		return fallback
	}
	return p
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
