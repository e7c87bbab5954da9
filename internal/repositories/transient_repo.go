package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mhartsell/gatehouse/internal/database"
)

// TransientRepository is the durable TTL key/value store backing rate
// limit counters, scan caches and alert markers. Values are stored as
// JSONB; expired rows are invisible to readers and swept by the pruner.
type TransientRepository struct {
	db *database.DB
}

// NewTransientRepository creates a new TransientRepository
func NewTransientRepository(db *database.DB) *TransientRepository {
	return &TransientRepository{db: db}
}

// Get loads the value for key into dest. Returns false when the key is
// absent or expired.
func (r *TransientRepository) Get(ctx context.Context, key string, dest any) (bool, error) {
	query := `
		SELECT value FROM transients
		WHERE key = $1 AND expires_at > now()
	`

	var raw []byte
	err := r.db.Pool.QueryRow(ctx, query, key).Scan(&raw)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set writes the value with the given TTL, replacing any existing entry.
func (r *TransientRepository) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transients (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, expires_at = $3
	`

	_, err = r.db.Pool.Exec(ctx, query, key, raw, time.Now().Add(ttl))
	return database.MapPostgresError(err)
}

// Delete removes the entry for key. Deleting an absent key is not an error.
func (r *TransientRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM transients WHERE key = $1`, key)
	return database.MapPostgresError(err)
}

// DeleteExpired sweeps rows whose TTL has elapsed.
func (r *TransientRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM transients WHERE expires_at <= now()`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
