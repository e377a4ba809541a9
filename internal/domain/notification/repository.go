// internal/domain/notification/repository.go
package notification

import "context"

// Repository defines operations on notification rows. Reads and updates are
// always scoped by the owning user.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	CountUnread(ctx context.Context, userID int64) (int, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Notification, error)
	// MarkRead reports false when the notification does not exist or belongs to someone else.
	MarkRead(ctx context.Context, id, userID int64) (bool, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}
