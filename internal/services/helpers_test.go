package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mhartsell/gatehouse/internal/metrics"
	"github.com/mhartsell/gatehouse/internal/models"
	"github.com/mhartsell/gatehouse/internal/ratelimit"
	pkglogger "github.com/mhartsell/gatehouse/pkg/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAudit() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

// memTTL is an in-memory ratelimit.TTLStore and TransientCache with
// real expiry, round-tripping values through JSON like the Postgres
// repository does.
type memTTL struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func newMemTTL() *memTTL {
	return &memTTL{entries: make(map[string]memEntry)}
}

func (m *memTTL) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return false, nil
	}
	return true, json.Unmarshal(entry.value, dest)
}

func (m *memTTL) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{value: raw, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *memTTL) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *memTTL) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	return ok && time.Now().Before(entry.expiresAt)
}

// memOptions is an in-memory OptionsStore returning defaults before
// the first write, like the repository does.
type memOptions struct {
	mu       sync.Mutex
	records  map[string][]byte
	security *models.SecurityOptions
	login    *models.LoginOptions
}

func newMemOptions() *memOptions {
	return &memOptions{records: make(map[string][]byte)}
}

func (m *memOptions) GetSecurityOptions(context.Context) (models.SecurityOptions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.security == nil {
		return models.DefaultSecurityOptions(), nil
	}
	return *m.security, nil
}

func (m *memOptions) GetLoginOptions(context.Context) (models.LoginOptions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.login == nil {
		return models.DefaultLoginOptions(), nil
	}
	return *m.login, nil
}

func (m *memOptions) SetSecurityOptions(_ context.Context, opts models.SecurityOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.security = &opts
	return nil
}

func (m *memOptions) SetLoginOptions(_ context.Context, opts models.LoginOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.login = &opts
	return nil
}

func (m *memOptions) Get(_ context.Context, name string, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.records[name]
	if !ok {
		return models.ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (m *memOptions) set(name string, value any) {
	raw, _ := json.Marshal(value)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[name] = raw
}

// memSyncQueue is an in-memory SyncQueueRepository preserving insert
// order and the eviction policy of the real one.
type memSyncQueue struct {
	mu     sync.Mutex
	events []*models.SyncEvent
}

func newMemSyncQueue() *memSyncQueue {
	return &memSyncQueue{}
}

func (q *memSyncQueue) Insert(_ context.Context, event *models.SyncEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	copied := *event
	q.events = append(q.events, &copied)
	return nil
}

func (q *memSyncQueue) ListPending(_ context.Context, eventType models.SyncEventType) ([]models.SyncEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []models.SyncEvent
	for _, e := range q.events {
		if e.Status != models.SyncPending {
			continue
		}
		if eventType != "" && e.Type != eventType {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (q *memSyncQueue) GetStatus(_ context.Context, id string) (models.SyncEventStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.events {
		if e.ID == id {
			return e.Status, nil
		}
	}
	return "", models.ErrNotFound
}

func (q *memSyncQueue) MarkCompleted(_ context.Context, id string) error {
	return q.setStatus(id, models.SyncCompleted, nil)
}

func (q *memSyncQueue) MarkFailed(_ context.Context, id, errText string) error {
	return q.setStatus(id, models.SyncFailed, &errText)
}

func (q *memSyncQueue) setStatus(id string, status models.SyncEventStatus, errText *string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.events {
		if e.ID == id {
			e.Status = status
			e.Error = errText
			return nil
		}
	}
	return models.ErrNotFound
}

func (q *memSyncQueue) EnforceCap(_ context.Context, cap int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	over := len(q.events) - cap
	if over <= 0 {
		return nil
	}
	// Non-pending first, oldest first; then pending oldest first.
	keep := make([]*models.SyncEvent, 0, cap)
	evicted := 0
	for _, e := range q.events {
		if evicted < over && e.Status != models.SyncPending {
			evicted++
			continue
		}
		keep = append(keep, e)
	}
	for evicted < over {
		keep = keep[1:]
		evicted++
	}
	q.events = keep
	return nil
}

func (q *memSyncQueue) PruneOlderThan(_ context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	q.mu.Lock()
	defer q.mu.Unlock()
	var keep []*models.SyncEvent
	var pruned int64
	for _, e := range q.events {
		if e.CreatedAt.Before(cutoff) {
			pruned++
			continue
		}
		keep = append(keep, e)
	}
	q.events = keep
	return pruned, nil
}

func (q *memSyncQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// memNotices records notices and fix actions.
type memNotices struct {
	mu      sync.Mutex
	notices map[string]string
	fixes   []string
}

func newMemNotices() *memNotices {
	return &memNotices{notices: make(map[string]string)}
}

func (n *memNotices) Upsert(_ context.Context, code, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices[code] = message
	return nil
}

func (n *memNotices) RecordFixAction(_ context.Context, fixID, appliedBy string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fixes = append(n.fixes, fixID)
	return nil
}

func (n *memNotices) hasNotice(code string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.notices[code]
	return ok
}

// memSecLog captures security log inserts.
type memSecLog struct {
	mu      sync.Mutex
	entries []models.SecurityLogEntry
}

func (l *memSecLog) Insert(_ context.Context, entry *models.SecurityLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *entry)
	return nil
}

func (l *memSecLog) count(eventType string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

// recordingAlerts counts alert sends.
type recordingAlerts struct {
	mu    sync.Mutex
	calls int
}

func (a *recordingAlerts) SendLockoutAlert(context.Context, string, string, int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return nil
}

func (a *recordingAlerts) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// recordingPlanner tracks schedule/flush calls.
type recordingPlanner struct {
	scheduled int
	flushed   int
}

func (p *recordingPlanner) Schedule()                 { p.scheduled++ }
func (p *recordingPlanner) Flush(context.Context) error { p.flushed++; return nil }

// recordingInvalidator tracks cache invalidations.
type recordingInvalidator struct {
	calls int
	err   error
}

func (i *recordingInvalidator) Invalidate(context.Context) error {
	i.calls++
	return i.err
}

// staticRegistry returns fixed extension and hook lists.
type staticRegistry struct {
	extensions []string
	hooks      []string
}

func (r *staticRegistry) ActiveExtensions(context.Context) ([]string, error) {
	return r.extensions, nil
}

func (r *staticRegistry) RegisteredHooks(context.Context) ([]string, error) {
	return r.hooks, nil
}

func newCounterStore() ratelimit.CounterStore {
	return ratelimit.NewStore(newMemTTL())
}
