package tenants

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
	// ErrNotFound is returned when no tenant matches the lookup.
	ErrNotFound = errors.New("tenant not found")
	// ErrCodeTaken is returned when an insert hits the unique code index.
	ErrCodeTaken = errors.New("tenant code already exists")
)

// Repository handles tenant persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tenants repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	var status string
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.Plan, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.Status = models.TenantStatus(status)
	return &t, nil
}

// Create inserts a tenant.
func (r *Repository) Create(ctx context.Context, t *models.Tenant) error {
	const q = `INSERT INTO tenants (id, code, name, plan, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, t.ID, t.Code, t.Name, t.Plan, string(t.Status)).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrCodeTaken
		}
		return err
	}
	return nil
}

// GetByID returns a tenant by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	const q = `SELECT id, code, name, plan, status, created_at, updated_at FROM tenants WHERE id = $1`
	return scanTenant(r.pool.QueryRow(ctx, q, id))
}

// GetByCode returns a tenant by its unique code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.Tenant, error) {
	const q = `SELECT id, code, name, plan, status, created_at, updated_at FROM tenants WHERE code = $1`
	return scanTenant(r.pool.QueryRow(ctx, q, code))
}

// List returns all tenants ordered by name.
func (r *Repository) List(ctx context.Context) ([]*models.Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, code, name, plan, status, created_at, updated_at FROM tenants ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Tenant
	for rows.Next() {
		var t models.Tenant
		var status string
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.Plan, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Status = models.TenantStatus(status)
		list = append(list, &t)
	}
	return list, rows.Err()
}

// UpdateStatus performs the tenant lifecycle change.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) (*models.Tenant, error) {
	const q = `UPDATE tenants SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, code, name, plan, status, created_at, updated_at`
	return scanTenant(r.pool.QueryRow(ctx, q, id, string(status)))
}
