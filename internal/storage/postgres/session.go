package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strhma/ukm-catalog/internal/domain/auth"
)

const getSessionByTokenHashSQL = `SELECT id, token_hash, user_id, is_admin, expires_at
	FROM sessions WHERE token_hash = $1`

var _ auth.Repository = (*SessionRepository)(nil)

// SessionRepository provides session lookups backed by PostgreSQL.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a SessionRepository that uses the given pool.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// FindByTokenHash looks up a session by the HMAC-SHA256 hash of its bearer
// token. Returns an error wrapping pgx.ErrNoRows when no session exists.
func (r *SessionRepository) FindByTokenHash(ctx context.Context, hash string) (*auth.Session, error) {
	var s auth.Session
	err := r.pool.QueryRow(ctx, getSessionByTokenHashSQL, hash).Scan(
		&s.ID, &s.TokenHash, &s.UserID, &s.IsAdmin, &s.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrap(err, "session not found")
		}
		return nil, errors.Wrap(err, "find session by token hash")
	}
	return &s, nil
}
