package payment

import (
	"context"
	"time"
)

// Repository defines operations on payment rows.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id int64) (*Payment, error)
	// GetForUpdate reads the payment and holds its row lock until the enclosing
	// transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Payment, error)
	// MarkVerified and MarkRejected only touch a payment that is still pending and
	// report false otherwise.
	MarkVerified(ctx context.Context, id, adminID int64, at time.Time) (bool, error)
	MarkRejected(ctx context.Context, id, adminID int64, reason string, at time.Time) (bool, error)
	ListPending(ctx context.Context, limit int) ([]*Payment, error)
}

// ScheduleRepository defines operations on monthly payment schedules.
type ScheduleRepository interface {
	BulkCreate(ctx context.Context, schedules []*Schedule) error
	ListByContract(ctx context.Context, contractID int64) ([]*Schedule, error)
	// ListDue returns pending schedules with from <= due_date <= to, earliest first.
	ListDue(ctx context.Context, from, to time.Time) ([]*Schedule, error)
}
