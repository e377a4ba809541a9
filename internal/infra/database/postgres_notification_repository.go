// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"agri_rental/internal/domain/notification"
)

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	query := `INSERT INTO notifications (user_id, type, title, message, link)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, is_read, created_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, n.UserID, n.Type, n.Title, n.Message, n.Link).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating notification: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID).Scan(&count)
	if err != nil {
		// COUNT(*) always returns a row, so any error here is a real failure.
		return 0, fmt.Errorf("error counting unread notifications: %w", err)
	}
	return count, nil
}

func (r *PostgresNotificationRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*notification.Notification, error) {
	query := `SELECT id, user_id, type, title, message, link, is_read, read_at, created_at
               FROM notifications
               WHERE user_id = $1
               ORDER BY created_at DESC, id DESC
               LIMIT $2 OFFSET $3`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error querying notifications by user: %w", err)
	}
	defer rows.Close()

	notifications := make([]*notification.Notification, 0)
	for rows.Next() {
		n := &notification.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Link, &n.IsRead, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning notification row: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return notifications, nil
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id, userID int64) (bool, error) {
	query := `UPDATE notifications SET is_read = TRUE, read_at = NOW() WHERE id = $1 AND user_id = $2 AND is_read = FALSE`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("error marking notification read: %w", err)
	}
	return affectedOne(res)
}

func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE notifications SET is_read = TRUE, read_at = NOW() WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("error marking all notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading affected rows: %w", err)
	}
	return n, nil
}
