package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehub/coursehub/internal/shared"
)

// Repository defines credential-store operations for the auth module.
type Repository interface {
	FindByUsernameOrEmail(ctx context.Context, login string) (*Principal, error)
	Create(ctx context.Context, p Principal) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const principalColumns = `id, username, email, password_hash, first_name, last_name, role, is_approved, created_at, updated_at`

// FindByUsernameOrEmail fetches a principal matching either column exactly.
func (r *PGRepository) FindByUsernameOrEmail(ctx context.Context, login string) (*Principal, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM users WHERE username = $1 OR email = $1`, login)
	return scanPrincipal(row)
}

// Create inserts a new principal. Duplicate username or email surfaces as
// the matching taxonomy error without mutating the store.
func (r *PGRepository) Create(ctx context.Context, p Principal) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, first_name, last_name, role, is_approved)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		p.Username, p.Email, p.PasswordHash, p.FirstName, p.LastName, string(p.Role), p.Approved,
	).Scan(&id)
	if err != nil {
		return 0, mapUniqueViolation(err)
	}
	return id, nil
}

func scanPrincipal(row pgx.Row) (*Principal, error) {
	var p Principal
	var role string
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.FirstName, &p.LastName, &role, &p.Approved, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrUnknownPrincipal
		}
		return nil, fmt.Errorf("auth: scan principal: %w", err)
	}
	p.Role = Role(role)
	return &p, nil
}

// mapUniqueViolation translates a 23505 unique violation into the duplicate
// taxonomy, keyed by constraint name.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch {
		case strings.Contains(pgErr.ConstraintName, "username"):
			return shared.ErrDuplicateUsername
		case strings.Contains(pgErr.ConstraintName, "email"):
			return shared.ErrDuplicateEmail
		}
	}
	return fmt.Errorf("auth: create principal: %w", err)
}

var _ Repository = (*PGRepository)(nil)
