package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicore/backend/internal/models"
)

// Repository persists sessions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a session row.
func (r *Repository) Create(ctx context.Context, s *models.Session) error {
	const q = `INSERT INTO sessions (id, user_id, token_hash, created_at, expires_at, revoked, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, false, NULLIF($6,''), NULLIF($7,''))`
	_, err := r.pool.Exec(ctx, q, s.ID, s.UserID, s.TokenHash, s.CreatedAt, s.ExpiresAt, s.IP, s.UserAgent)
	return err
}

// GetByID returns a session by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const q = `SELECT id, user_id, token_hash, created_at, expires_at, revoked,
		COALESCE(ip,''), COALESCE(user_agent,'') FROM sessions WHERE id = $1`
	var s models.Session
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.UserID, &s.TokenHash,
		&s.CreatedAt, &s.ExpiresAt, &s.Revoked, &s.IP, &s.UserAgent)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Rotate performs the compare-and-swap on the token hash. The WHERE
// clause is the whole concurrency story: a lost race, a revoked session
// or an expired one all match zero rows.
func (r *Repository) Rotate(ctx context.Context, sessionID uuid.UUID, oldHash, newHash string, expiresAt time.Time) error {
	const q = `UPDATE sessions SET token_hash = $3, expires_at = $4
		WHERE id = $1 AND token_hash = $2 AND revoked = false AND expires_at > now()`
	tag, err := r.pool.Exec(ctx, q, sessionID, oldHash, newHash, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionInvalid
	}
	return nil
}

// Revoke marks a session revoked; already-revoked rows are left as-is.
func (r *Repository) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET revoked = true WHERE id = $1`, sessionID)
	return err
}

// RevokeAll marks every session of a user revoked.
func (r *Repository) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET revoked = true WHERE user_id = $1 AND revoked = false`, userID)
	return err
}

// DeleteExpired removes sessions past their expiry by more than the
// retention window; run periodically from the bootstrap.
func (r *Repository) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at < now() - make_interval(secs => $1)`,
		retention.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
