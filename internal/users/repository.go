package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicore/backend/internal/models"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when an insert hits the unique email index.
	ErrEmailTaken = errors.New("email already registered")
)

const userColumns = `id, tenant_id, email, password_hash, COALESCE(full_name,''), role, status, created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a users repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role, status string
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Password, &u.FullName, &role, &status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Role = models.Role(role)
	u.Status = models.UserStatus(status)
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (id, tenant_id, email, password_hash, full_name, role, status)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, $7)
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, u.ID, u.TenantID, u.Email, u.Password, u.FullName, string(u.Role), string(u.Status)).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// ListByTenant returns users of a tenant, newest last.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, email, COALESCE(full_name,''), role, status, created_at
		 FROM users WHERE tenant_id = $1 ORDER BY created_at ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserPublic
	for rows.Next() {
		var u models.UserPublic
		var role, status string
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Email, &u.FullName, &role, &status, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = models.Role(role)
		u.Status = models.UserStatus(status)
		list = append(list, u)
	}
	return list, rows.Err()
}

// UpdateProfile updates self-service fields.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, fullName string) (*models.User, error) {
	const q = `UPDATE users SET full_name = NULLIF($2,''), updated_at = now()
		WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, fullName))
}

// UpdateStatus performs the soft lifecycle change; users are never
// hard-deleted while sessions or grants reference them.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.UserStatus) (*models.User, error) {
	const q = `UPDATE users SET status = $2, updated_at = now()
		WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, string(status)))
}

// UpdateRole changes a user's role.
func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	const q = `UPDATE users SET role = $2, updated_at = now()
		WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, string(role)))
}
