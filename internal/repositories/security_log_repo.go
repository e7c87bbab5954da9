package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/mhartsell/gatehouse/internal/database"
	"github.com/mhartsell/gatehouse/internal/models"
)

// securityLogCap bounds the recent-events list.
const securityLogCap = 500

// SecurityLogRepository persists the capped list of recent security events.
type SecurityLogRepository struct {
	db *database.DB
}

// NewSecurityLogRepository creates a new SecurityLogRepository
func NewSecurityLogRepository(db *database.DB) *SecurityLogRepository {
	return &SecurityLogRepository{db: db}
}

// Insert appends an entry and trims the list to its cap.
func (r *SecurityLogRepository) Insert(ctx context.Context, entry *models.SecurityLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO security_log (id, event_type, ip_address, username_hash, detail)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.Pool.Exec(ctx, query,
		entry.ID, entry.EventType, entry.IPAddress, entry.UsernameHash, entry.Detail); err != nil {
		return database.MapPostgresError(err)
	}

	trim := `
		DELETE FROM security_log WHERE id IN (
			SELECT id FROM security_log
			ORDER BY created_at DESC
			OFFSET $1
		)
	`
	_, err := r.db.Pool.Exec(ctx, trim, securityLogCap)
	return database.MapPostgresError(err)
}

// ListRecent returns the newest entries, newest first.
func (r *SecurityLogRepository) ListRecent(ctx context.Context, limit int) ([]models.SecurityLogEntry, error) {
	query := `
		SELECT id, event_type, ip_address, username_hash, detail, created_at
		FROM security_log
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var entries []models.SecurityLogEntry
	for rows.Next() {
		var e models.SecurityLogEntry
		if err := rows.Scan(&e.ID, &e.EventType, &e.IPAddress, &e.UsernameHash, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
