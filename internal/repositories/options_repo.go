package repositories

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/mhartsell/gatehouse/internal/database"
	"github.com/mhartsell/gatehouse/internal/models"
)

// OptionsRepository persists named JSON option records. Writes are
// last-writer-wins by design; each record is self-contained so readers
// never need cross-key consistency.
type OptionsRepository struct {
	db *database.DB
}

// NewOptionsRepository creates a new OptionsRepository
func NewOptionsRepository(db *database.DB) *OptionsRepository {
	return &OptionsRepository{db: db}
}

// Get loads the named record into dest. Returns models.ErrNotFound when
// the record has never been written.
func (r *OptionsRepository) Get(ctx context.Context, name string, dest any) error {
	var raw []byte
	err := r.db.Pool.QueryRow(ctx, `SELECT value FROM options WHERE name = $1`, name).Scan(&raw)
	if err == pgx.ErrNoRows {
		return models.ErrNotFound
	}
	if err != nil {
		return database.MapPostgresError(err)
	}
	return json.Unmarshal(raw, dest)
}

// Set writes the named record, replacing any existing value.
func (r *OptionsRepository) Set(ctx context.Context, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO options (name, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET value = $2, updated_at = now()
	`
	_, err = r.db.Pool.Exec(ctx, query, name, raw)
	return database.MapPostgresError(err)
}

// GetSecurityOptions loads the security record, falling back to defaults
// when it has never been written.
func (r *OptionsRepository) GetSecurityOptions(ctx context.Context) (models.SecurityOptions, error) {
	var opts models.SecurityOptions
	err := r.Get(ctx, models.OptionSecurityOptions, &opts)
	if err == models.ErrNotFound {
		return models.DefaultSecurityOptions(), nil
	}
	if err != nil {
		return models.SecurityOptions{}, err
	}
	return opts, nil
}

// SetSecurityOptions writes the security record.
func (r *OptionsRepository) SetSecurityOptions(ctx context.Context, opts models.SecurityOptions) error {
	return r.Set(ctx, models.OptionSecurityOptions, opts)
}

// GetLoginOptions loads the login customization record, falling back to
// defaults when it has never been written.
func (r *OptionsRepository) GetLoginOptions(ctx context.Context) (models.LoginOptions, error) {
	var opts models.LoginOptions
	err := r.Get(ctx, models.OptionLoginOptions, &opts)
	if err == models.ErrNotFound {
		return models.DefaultLoginOptions(), nil
	}
	if err != nil {
		return models.LoginOptions{}, err
	}
	return opts, nil
}

// SetLoginOptions writes the login customization record.
func (r *OptionsRepository) SetLoginOptions(ctx context.Context, opts models.LoginOptions) error {
	return r.Set(ctx, models.OptionLoginOptions, opts)
}
