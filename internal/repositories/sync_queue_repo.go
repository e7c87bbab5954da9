package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mhartsell/gatehouse/internal/database"
	"github.com/mhartsell/gatehouse/internal/models"
)

// SyncQueueRepository persists the ordered settings-change queue.
type SyncQueueRepository struct {
	db *database.DB
}

// NewSyncQueueRepository creates a new SyncQueueRepository
func NewSyncQueueRepository(db *database.DB) *SyncQueueRepository {
	return &SyncQueueRepository{db: db}
}

// Insert appends a new event. The caller supplies everything but the ID.
func (r *SyncQueueRepository) Insert(ctx context.Context, event *models.SyncEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	query := `
		INSERT INTO sync_events (id, event_type, old_value, new_value, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		event.ID, event.Type, event.OldValue, event.NewValue, event.Status, event.CreatedAt)
	return database.MapPostgresError(err)
}

// ListPending returns pending events oldest first, optionally filtered by type.
func (r *SyncQueueRepository) ListPending(ctx context.Context, eventType models.SyncEventType) ([]models.SyncEvent, error) {
	query := `
		SELECT id, event_type, old_value, new_value, status, error, created_at
		FROM sync_events
		WHERE status = 'pending' AND ($1 = '' OR event_type = $1)
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, string(eventType))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var events []models.SyncEvent
	for rows.Next() {
		var e models.SyncEvent
		if err := rows.Scan(&e.ID, &e.Type, &e.OldValue, &e.NewValue, &e.Status, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetStatus returns the current status of one event.
func (r *SyncQueueRepository) GetStatus(ctx context.Context, id string) (models.SyncEventStatus, error) {
	var status models.SyncEventStatus
	err := r.db.Pool.QueryRow(ctx, `SELECT status FROM sync_events WHERE id = $1`, id).Scan(&status)
	if err != nil {
		return "", database.MapPostgresError(err)
	}
	return status, nil
}

// MarkCompleted transitions an event to completed.
func (r *SyncQueueRepository) MarkCompleted(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE sync_events SET status = 'completed', error = NULL WHERE id = $1`, id)
	return database.MapPostgresError(err)
}

// MarkFailed transitions an event to failed with the captured error text.
func (r *SyncQueueRepository) MarkFailed(ctx context.Context, id, errText string) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE sync_events SET status = 'failed', error = $2 WHERE id = $1`, id, errText)
	return database.MapPostgresError(err)
}

// EnforceCap evicts events so at most cap remain. Completed and failed
// events go first, oldest first; pending events are only evicted when
// the queue is over cap with nothing else left to drop.
func (r *SyncQueueRepository) EnforceCap(ctx context.Context, cap int) error {
	query := `
		DELETE FROM sync_events WHERE id IN (
			SELECT id FROM sync_events
			ORDER BY (status = 'pending') ASC, created_at ASC
			OFFSET 0 LIMIT GREATEST(0, (SELECT COUNT(*) FROM sync_events) - $1)
		)
	`
	_, err := r.db.Pool.Exec(ctx, query, cap)
	return database.MapPostgresError(err)
}

// PruneOlderThan removes events older than the cutoff regardless of status.
func (r *SyncQueueRepository) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM sync_events WHERE created_at < $1`, time.Now().Add(-age))
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
