package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mhartsell/gatehouse/internal/database"
	"github.com/mhartsell/gatehouse/internal/models"
)

// NoticeRepository persists dismissible admin notices. At most one
// active notice exists per code, so repeated self-healing runs do not
// pile up duplicates.
type NoticeRepository struct {
	db *database.DB
}

// NewNoticeRepository creates a new NoticeRepository
func NewNoticeRepository(db *database.DB) *NoticeRepository {
	return &NoticeRepository{db: db}
}

// Upsert creates an active notice for code, or refreshes the message of
// an existing active one.
func (r *NoticeRepository) Upsert(ctx context.Context, code, message string) error {
	query := `
		INSERT INTO notices (id, code, message, dismissed)
		VALUES ($1, $2, $3, false)
		ON CONFLICT (code) WHERE NOT dismissed
		DO UPDATE SET message = $3
	`
	_, err := r.db.Pool.Exec(ctx, query, uuid.New().String(), code, message)
	return database.MapPostgresError(err)
}

// ListActive returns undismissed notices, newest first.
func (r *NoticeRepository) ListActive(ctx context.Context) ([]models.Notice, error) {
	query := `
		SELECT id, code, message, dismissed, created_at
		FROM notices
		WHERE NOT dismissed
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var notices []models.Notice
	for rows.Next() {
		var n models.Notice
		if err := rows.Scan(&n.ID, &n.Code, &n.Message, &n.Dismissed, &n.CreatedAt); err != nil {
			return nil, err
		}
		notices = append(notices, n)
	}
	return notices, rows.Err()
}

// Dismiss marks a notice as acknowledged.
func (r *NoticeRepository) Dismiss(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE notices SET dismissed = true WHERE id = $1`, id)
	return database.MapPostgresError(err)
}

// RecordFixAction appends one applied remediation to the ordered list.
func (r *NoticeRepository) RecordFixAction(ctx context.Context, fixID, appliedBy string) error {
	query := `
		INSERT INTO fix_actions (id, fix_id, applied_by, applied_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Pool.Exec(ctx, query, uuid.New().String(), fixID, appliedBy, time.Now())
	return database.MapPostgresError(err)
}

// ListFixActions returns recent remediations, newest first.
func (r *NoticeRepository) ListFixActions(ctx context.Context, limit int) ([]models.FixAction, error) {
	query := `
		SELECT id, fix_id, applied_by, applied_at
		FROM fix_actions
		ORDER BY applied_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var actions []models.FixAction
	for rows.Next() {
		var a models.FixAction
		if err := rows.Scan(&a.ID, &a.FixID, &a.AppliedBy, &a.AppliedAt); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
