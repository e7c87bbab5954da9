package repositories

import (
	"context"

	"github.com/mhartsell/gatehouse/internal/database"
	"github.com/mhartsell/gatehouse/internal/models"
)

// UserRepository handles database operations for accounts
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByUsername fetches an account by its login name.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, roles, created_at, updated_at
		FROM users
		WHERE username = $1
	`

	var user models.User
	err := r.db.Pool.QueryRow(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.Roles, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &user, nil
}

// GetByID fetches an account by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, roles, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user models.User
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.Roles, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &user, nil
}

// Create inserts a new account and returns it with generated fields.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (username, password_hash, roles)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query, user.Username, user.PasswordHash, user.Roles).Scan(
		&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return user, nil
}
