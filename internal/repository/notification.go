package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/christianyoga13/vego/internal/domain/notification"
)

const (
	insertNotificationSQL = `INSERT INTO notifications (id, user_id, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	listNotificationsSQL = `SELECT id, user_id, title, body, created_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2`
)

var _ notification.Repository = (*NotificationRepository)(nil)

// NotificationRepository implements notification.Repository backed by PostgreSQL.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository returns a NotificationRepository that uses the given pool.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create stores n, ignoring duplicates.
func (r *NotificationRepository) Create(ctx context.Context, n notification.Notification) error {
	if _, err := r.pool.Exec(ctx, insertNotificationSQL, n.ID, n.UserID, n.Title, n.Body, n.CreatedAt); err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

// List returns the user's notifications newest first.
func (r *NotificationRepository) List(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	rows, err := r.pool.Query(ctx, listNotificationsSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[notification.Notification])
}
