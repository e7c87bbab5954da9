package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mhartsell/gatehouse/internal/metrics"
	"github.com/mhartsell/gatehouse/internal/models"
)

const (
	conflictScanCacheKey = "conflict_scan"
	conflictScanCacheTTL = 5 * time.Minute
)

// FixRegenerateSlug replaces a broken login slug with a fresh random
// safe one and turns path hiding off.
const FixRegenerateSlug = "regenerate_login_slug"

// ExtensionRegistry reports what else is installed alongside the
// service: site extensions and the login/redirect hooks they register.
type ExtensionRegistry interface {
	ActiveExtensions(ctx context.Context) ([]string, error)
	RegisteredHooks(ctx context.Context) ([]string, error)
}

// TransientCache is the TTL cache surface for scan results. Implemented
// by repositories.TransientRepository.
type TransientCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// FixRecorder persists applied remediations and notices.
type FixRecorder interface {
	NoticeWriter
	RecordFixAction(ctx context.Context, fixID, appliedBy string) error
}

// knownIncompatible maps extension IDs to the finding reported when the
// extension is active. Entries with a fix ID get a one-click remedy.
var knownIncompatible = map[string]models.ConflictRecord{
	"maintenance-mode": {
		Type:        models.ConflictPlugin,
		Name:        "maintenance-mode",
		Severity:    models.SeverityHigh,
		Description: "Maintenance mode intercepts unauthenticated requests before the forced-login redirect runs.",
	},
	"coming-soon": {
		Type:        models.ConflictPlugin,
		Name:        "coming-soon",
		Severity:    models.SeverityHigh,
		Description: "Coming-soon pages replace the login form for logged-out visitors.",
	},
	"members-only": {
		Type:        models.ConflictPlugin,
		Name:        "members-only",
		Severity:    models.SeverityMedium,
		Description: "Duplicate access gating; both layers redirecting can loop.",
	},
	"custom-login-url": {
		Type:        models.ConflictPlugin,
		Name:        "custom-login-url",
		Severity:    models.SeverityCritical,
		Description: "Another extension also rewrites the login path. Only one rewrite can win.",
		FixID:       FixRegenerateSlug,
	},
}

// suspiciousHookTerms flag third-party hooks likely to fight the login
// pipeline or redirect policy.
var suspiciousHookTerms = []string{"login_redirect", "force_login", "maintenance", "coming_soon", "members_only", "auth_redirect"}

// ConflictService scans for extensions and hooks that interfere with
// the login pipeline, caches the result briefly, and applies known
// one-click fixes.
type ConflictService struct {
	registry ExtensionRegistry
	cache    TransientCache
	settings *SettingsService
	fixes    FixRecorder
	secLog   SecurityLogWriter
	gate     *Gate
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewConflictService(
	registry ExtensionRegistry,
	cache TransientCache,
	settings *SettingsService,
	fixes FixRecorder,
	secLog SecurityLogWriter,
	gate *Gate,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ConflictService {
	return &ConflictService{
		registry: registry,
		cache:    cache,
		settings: settings,
		fixes:    fixes,
		secLog:   secLog,
		gate:     gate,
		metrics:  m,
		logger:   logger,
	}
}

// Scan returns current findings, serving from cache when a scan ran
// within the cache TTL. Settings writes invalidate the cache, so a
// fresh scan always follows a configuration change.
func (s *ConflictService) Scan(ctx context.Context) ([]models.ConflictRecord, error) {
	var cached []models.ConflictRecord
	found, err := s.cache.Get(ctx, conflictScanCacheKey, &cached)
	if err != nil {
		s.logger.Error("conflict cache read failed", "error", err)
	} else if found {
		return cached, nil
	}

	records, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, conflictScanCacheKey, records, conflictScanCacheTTL); err != nil {
		s.logger.Error("conflict cache write failed", "error", err)
	}
	return records, nil
}

// Invalidate drops the cached scan. Implements CacheInvalidator for the
// sync service.
func (s *ConflictService) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, conflictScanCacheKey)
}

func (s *ConflictService) scan(ctx context.Context) ([]models.ConflictRecord, error) {
	s.metrics.ConflictScans.Inc()
	records := []models.ConflictRecord{}

	extensions, err := s.registry.ActiveExtensions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing extensions: %w", err)
	}
	for _, ext := range extensions {
		if record, ok := knownIncompatible[ext]; ok {
			records = append(records, record)
		}
	}

	hooks, err := s.registry.RegisteredHooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing hooks: %w", err)
	}
	own := make(map[string]bool, len(s.gate.ValidatorNames()))
	for _, name := range s.gate.ValidatorNames() {
		own[name] = true
	}
	for _, hook := range hooks {
		if own[hook] {
			continue
		}
		for _, term := range suspiciousHookTerms {
			if strings.Contains(strings.ToLower(hook), term) {
				records = append(records, models.ConflictRecord{
					Type:        models.ConflictHook,
					Name:        hook,
					Severity:    models.SeverityMedium,
					Description: "Third-party hook touches login or redirect behavior and may override the pipeline.",
				})
				break
			}
		}
	}

	if settingsRecord := s.settingsConflict(ctx); settingsRecord != nil {
		records = append(records, *settingsRecord)
	}

	for _, record := range records {
		s.metrics.ConflictsFound.WithLabelValues(string(record.Severity)).Inc()
	}
	if len(records) > 0 {
		s.logger.Warn("conflict scan found issues", "count", len(records))
	}
	return records, nil
}

// settingsConflict flags a stored configuration that hides the login
// path behind a slug that no longer sanitizes. That state would strand
// users with no reachable login form.
func (s *ConflictService) settingsConflict(ctx context.Context) *models.ConflictRecord {
	opts, err := s.settings.GetSecurityOptions(ctx)
	if err != nil {
		s.logger.Error("conflict scan could not read security options", "error", err)
		return nil
	}
	if !opts.HideLoginPath {
		return nil
	}
	if _, ok := SanitizeSlug(opts.CustomLoginSlug); ok {
		return nil
	}
	return &models.ConflictRecord{
		Type:        models.ConflictSettings,
		Name:        "hidden_login_unreachable",
		Severity:    models.SeverityCritical,
		Description: "Path hiding is enabled but the stored slug is invalid; the login form is unreachable.",
		FixID:       FixRegenerateSlug,
	}
}

// Resolve applies a known fix. Fixes are idempotent: applying one that
// already took effect changes nothing and still records the action.
func (s *ConflictService) Resolve(ctx context.Context, fixID, actor string) error {
	switch fixID {
	case FixRegenerateSlug:
		opts, err := s.settings.GetSecurityOptions(ctx)
		if err != nil {
			return err
		}
		// A fresh random slug rather than the shared fallback, so the
		// healed path is not guessable. Hiding stays off until the
		// admin re-confirms it.
		opts.CustomLoginSlug = randomLoginSlug()
		opts.HideLoginPath = false
		if _, err := s.settings.UpdateSecurityOptions(ctx, actor, opts); err != nil {
			return err
		}
	default:
		return models.ErrUnknownFix
	}

	if err := s.fixes.RecordFixAction(ctx, fixID, actor); err != nil {
		s.logger.Error("failed to record fix action", "error", err)
	}
	if err := s.secLog.Insert(ctx, &models.SecurityLogEntry{
		EventType: models.EventSettingsFix,
		Detail:    fmt.Sprintf("applied fix %s", fixID),
		CreatedAt: time.Now(),
	}); err != nil {
		s.logger.Error("failed to log fix action", "error", err)
	}
	return s.Invalidate(ctx)
}

// randomLoginSlug builds a slug that always passes SanitizeSlug.
func randomLoginSlug() string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return FallbackLoginSlug + "-" + suffix
}

// OptionBackedRegistry reads the extension inventory from the options
// store, where the deployment process records what is installed.
type OptionBackedRegistry struct {
	options optionGetter
}

type optionGetter interface {
	Get(ctx context.Context, name string, dest any) error
}

func NewOptionBackedRegistry(options optionGetter) *OptionBackedRegistry {
	return &OptionBackedRegistry{options: options}
}

func (r *OptionBackedRegistry) ActiveExtensions(ctx context.Context) ([]string, error) {
	return r.list(ctx, "active_extensions")
}

func (r *OptionBackedRegistry) RegisteredHooks(ctx context.Context) ([]string, error) {
	return r.list(ctx, "registered_hooks")
}

func (r *OptionBackedRegistry) list(ctx context.Context, name string) ([]string, error) {
	var items []string
	if err := r.options.Get(ctx, name, &items); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return items, nil
}
