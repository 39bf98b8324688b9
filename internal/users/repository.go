package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehub/coursehub/internal/auth"
	"github.com/coursehub/coursehub/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for account management.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, email, password_hash, first_name, last_name, role, is_approved, created_at, updated_at`

// List returns all accounts, newest first.
func (r *Repository) List(ctx context.Context) ([]auth.Principal, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	list := []auth.Principal{}
	for rows.Next() {
		var p auth.Principal
		var role string
		if err := rows.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.FirstName, &p.LastName, &role, &p.Approved, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("users: scan: %w", err)
		}
		p.Role = auth.Role(role)
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: rows: %w", err)
	}
	return list, nil
}

// FindByID fetches one account.
func (r *Repository) FindByID(ctx context.Context, id int64) (*auth.Principal, error) {
	var p auth.Principal
	var role string
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id).
		Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.FirstName, &p.LastName, &role, &p.Approved, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %d", httpx.ErrNotFound, id)
		}
		return nil, fmt.Errorf("users: find by id: %w", err)
	}
	p.Role = auth.Role(role)
	return &p, nil
}

// SetApproved flips the activation flag.
func (r *Repository) SetApproved(ctx context.Context, id int64, approved bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_approved = $2, updated_at = NOW() WHERE id = $1`, id, approved)
	if err != nil {
		return fmt.Errorf("users: set approved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %d", httpx.ErrNotFound, id)
	}
	return nil
}
