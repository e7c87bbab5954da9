package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mhartsell/gatehouse/internal/metrics"
	"github.com/mhartsell/gatehouse/internal/models"
)

// SyncQueueMaxEvents caps the stored queue. Eviction prefers completed
// and failed events, oldest first; pending events go only as a last
// resort.
const SyncQueueMaxEvents = 50

// SyncQueueRepository is the persistence surface the sync service
// drives. Implemented by repositories.SyncQueueRepository.
type SyncQueueRepository interface {
	Insert(ctx context.Context, event *models.SyncEvent) error
	ListPending(ctx context.Context, eventType models.SyncEventType) ([]models.SyncEvent, error)
	GetStatus(ctx context.Context, id string) (models.SyncEventStatus, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errText string) error
	EnforceCap(ctx context.Context, cap int) error
	PruneOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// CacheInvalidator drops derived caches that a settings change makes
// stale. Implemented by the conflict service for its scan cache.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// RewritePlanner rebuilds the login-path routing table from the stored
// options. Schedule is cheap and idempotent; Flush does the rebuild at
// most once per schedule, no matter how many events asked for it.
type RewritePlanner interface {
	Schedule()
	Flush(ctx context.Context) error
}

// SyncService applies settings-change events. Processing is
// idempotent: applying a completed event again is a no-op, and a batch
// that fails halfway resumes from the first still-pending event.
type SyncService struct {
	queue     SyncQueueRepository
	conflicts CacheInvalidator
	rewrites  RewritePlanner
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewSyncService(
	queue SyncQueueRepository,
	conflicts CacheInvalidator,
	rewrites RewritePlanner,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		queue:     queue,
		conflicts: conflicts,
		rewrites:  rewrites,
		metrics:   m,
		logger:    logger,
	}
}

// Enqueue records a settings change for later processing and enforces
// the queue cap. Old and new values are stored whole so processing
// never depends on the options table's current contents.
func (s *SyncService) Enqueue(ctx context.Context, eventType models.SyncEventType, oldValue, newValue any) (*models.SyncEvent, error) {
	oldJSON, err := json.Marshal(oldValue)
	if err != nil {
		return nil, err
	}
	newJSON, err := json.Marshal(newValue)
	if err != nil {
		return nil, err
	}

	event := &models.SyncEvent{
		Type:      eventType,
		OldValue:  oldJSON,
		NewValue:  newJSON,
		Status:    models.SyncPending,
		CreatedAt: time.Now(),
	}
	if err := s.queue.Insert(ctx, event); err != nil {
		return nil, err
	}
	if err := s.queue.EnforceCap(ctx, SyncQueueMaxEvents); err != nil {
		s.logger.Error("failed to enforce sync queue cap", "error", err)
	}
	return event, nil
}

// ProcessPending applies all pending events oldest first. A failing
// event is marked failed with its error text and does not block the
// rest of the batch. Returns the number of events applied.
func (s *SyncService) ProcessPending(ctx context.Context) (int, error) {
	return s.process(ctx, "")
}

// ProcessImmediate applies pending events of one type right away,
// bypassing the usual wait for the next admin request. Used for
// security-critical changes such as redirect policy flips.
func (s *SyncService) ProcessImmediate(ctx context.Context, eventType models.SyncEventType) (int, error) {
	return s.process(ctx, eventType)
}

func (s *SyncService) process(ctx context.Context, eventType models.SyncEventType) (int, error) {
	events, err := s.queue.ListPending(ctx, eventType)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, event := range events {
		// Another processor may have raced us to this event; the
		// status re-check keeps double application out.
		status, err := s.queue.GetStatus(ctx, event.ID)
		if err != nil {
			s.logger.Error("failed to re-check sync event", "event_id", event.ID, "error", err)
			continue
		}
		if status != models.SyncPending {
			continue
		}

		if err := s.apply(ctx, &event); err != nil {
			s.metrics.SyncEvents.WithLabelValues(string(models.SyncFailed)).Inc()
			s.logger.Error("sync event failed", "event_id", event.ID, "type", event.Type, "error", err)
			if markErr := s.queue.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
				s.logger.Error("failed to mark sync event failed", "event_id", event.ID, "error", markErr)
			}
			continue
		}

		if err := s.queue.MarkCompleted(ctx, event.ID); err != nil {
			s.logger.Error("failed to mark sync event completed", "event_id", event.ID, "error", err)
			continue
		}
		s.metrics.SyncEvents.WithLabelValues(string(models.SyncCompleted)).Inc()
		applied++
	}

	if err := s.rewrites.Flush(ctx); err != nil {
		s.logger.Error("failed to flush rewrite rules", "error", err)
	}
	return applied, nil
}

// apply performs the side effects of one event. Every branch must stay
// safe to repeat: events can be retried after a crash between apply
// and MarkCompleted.
func (s *SyncService) apply(ctx context.Context, event *models.SyncEvent) error {
	switch event.Type {
	case models.SyncSecurityOptions:
		if err := s.conflicts.Invalidate(ctx); err != nil {
			return err
		}
		if securityPathChanged(event.OldValue, event.NewValue) {
			s.rewrites.Schedule()
		}
		return nil
	case models.SyncLoginOptions:
		// Redirect policy is read live from the options table, so the
		// only derived state to refresh is the conflict scan cache.
		return s.conflicts.Invalidate(ctx)
	default:
		return models.ErrBadRequest
	}
}

// securityPathChanged reports whether the stored change moved the
// login path surface: slug, hiding, or the force-login toggle.
func securityPathChanged(oldJSON, newJSON json.RawMessage) bool {
	var oldOpts, newOpts models.SecurityOptions
	if err := json.Unmarshal(oldJSON, &oldOpts); err != nil {
		return true
	}
	if err := json.Unmarshal(newJSON, &newOpts); err != nil {
		return true
	}
	return oldOpts.CustomLoginSlug != newOpts.CustomLoginSlug ||
		oldOpts.HideLoginPath != newOpts.HideLoginPath ||
		oldOpts.ForceLoginEnabled != newOpts.ForceLoginEnabled
}

// PruneOlderThan drops events past the retention window. Called by the
// background pruner.
func (s *SyncService) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	return s.queue.PruneOlderThan(ctx, age)
}

// LoginPathPlanner is the production RewritePlanner: it recompiles the
// shared login-path matcher from the stored options, at most once per
// batch of schedule calls.
type LoginPathPlanner struct {
	options   OptionsReader
	matcher   *LoginPathMatcher
	scheduled atomic.Bool
	logger    *slog.Logger
}

func NewLoginPathPlanner(options OptionsReader, matcher *LoginPathMatcher, logger *slog.Logger) *LoginPathPlanner {
	return &LoginPathPlanner{options: options, matcher: matcher, logger: logger}
}

func (p *LoginPathPlanner) Schedule() {
	p.scheduled.Store(true)
}

func (p *LoginPathPlanner) Flush(ctx context.Context) error {
	if !p.scheduled.Swap(false) {
		return nil
	}
	opts, err := p.options.GetSecurityOptions(ctx)
	if err != nil {
		// Leave the flag set so the next batch retries the rebuild.
		p.scheduled.Store(true)
		return err
	}
	p.matcher.Reload(opts)
	p.logger.Info("login path routes rebuilt", "slug", opts.CustomLoginSlug, "hidden", opts.HideLoginPath)
	return nil
}
