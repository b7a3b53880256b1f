package rbac

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicore/backend/internal/models"
)

// Repository persists permission grants in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an rbac repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GrantCodes returns the permission codes explicitly granted to a user.
func (r *Repository) GrantCodes(ctx context.Context, userID uuid.UUID) ([]string, error) {
	const q = `SELECT p.code FROM user_permissions up
		INNER JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// Grant inserts a grant row. ON CONFLICT DO NOTHING makes concurrent
// identical grants collapse to a single row.
func (r *Repository) Grant(ctx context.Context, userID uuid.UUID, code string, grantedBy uuid.UUID) error {
	const q = `INSERT INTO user_permissions (user_id, permission_id, granted_by)
		SELECT $1, p.id, $3 FROM permissions p WHERE p.code = $2
		ON CONFLICT (user_id, permission_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, userID, code, grantedBy)
	return err
}

// Revoke deletes a grant row if present.
func (r *Repository) Revoke(ctx context.Context, userID uuid.UUID, code string) error {
	const q = `DELETE FROM user_permissions up
		USING permissions p
		WHERE up.permission_id = p.id AND up.user_id = $1 AND p.code = $2`
	_, err := r.pool.Exec(ctx, q, userID, code)
	return err
}

// ListGrants returns grant details for a user.
func (r *Repository) ListGrants(ctx context.Context, userID uuid.UUID) ([]models.GrantDetail, error) {
	const q = `SELECT p.code, up.granted_by, up.granted_at
		FROM user_permissions up
		INNER JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1
		ORDER BY up.granted_at ASC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.GrantDetail
	for rows.Next() {
		var g models.GrantDetail
		if err := rows.Scan(&g.Code, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

// ListCatalog returns the seeded permission catalog.
func (r *Repository) ListCatalog(ctx context.Context) ([]models.Permission, error) {
	const q = `SELECT id, code, resource, action, COALESCE(description, ''), created_at
		FROM permissions ORDER BY code`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Resource, &p.Action, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
