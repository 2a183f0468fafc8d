package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/christianyoga13/vego/internal/domain/auth"
)

const (
	getSessionByHashSQL = `SELECT id, user_id, admin
		FROM sessions WHERE token_hash = $1 AND (expires_at IS NULL OR expires_at > now())`

	insertSessionSQL = `INSERT INTO sessions (id, token_hash, user_id, admin)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_hash) DO NOTHING`
)

var _ auth.Repository = (*SessionRepository)(nil)

// SessionRepository provides session lookups backed by PostgreSQL.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a SessionRepository that uses the given pool.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// FindByTokenHash looks up an unexpired session by its HMAC-SHA256 token
// hash. Unknown hashes yield auth.ErrNotAuthenticated.
func (r *SessionRepository) FindByTokenHash(ctx context.Context, hash string) (*auth.Session, error) {
	var s auth.Session
	err := r.pool.QueryRow(ctx, getSessionByHashSQL, hash).Scan(&s.ID, &s.UserID, &s.Admin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("finding session by hash: %w", err)
	}
	return &s, nil
}

// Create stores a session for the given token hash. Existing hashes are
// left untouched.
func (r *SessionRepository) Create(ctx context.Context, s auth.Session, hash string) error {
	if _, err := r.pool.Exec(ctx, insertSessionSQL, s.ID, hash, s.UserID, s.Admin); err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}
