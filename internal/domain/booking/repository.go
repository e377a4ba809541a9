package booking

import (
	"context"
	"time"
)

// Repository defines the operations for persisting and retrieving Booking entities.
// Implementations join the unit of work carried by ctx, if any.
type Repository interface {
	// LockProperty serialises allocations for one property until the enclosing
	// transaction ends.
	LockProperty(ctx context.Context, propertyID int64) error
	// ListActiveOverlapping returns non-cancelled bookings of the property whose
	// range intersects [from, to].
	ListActiveOverlapping(ctx context.Context, propertyID int64, from, to time.Time) ([]*Booking, error)
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id int64) (*Booking, error)
	// MarkDepositSuccess moves payment_status waiting -> deposit_success.
	// It reports false when the booking was not in 'waiting'.
	MarkDepositSuccess(ctx context.Context, id int64) (bool, error)
	// Cancel moves status active -> cancelled for the given tenant while the
	// deposit is still waiting. It reports false when no such booking matched.
	Cancel(ctx context.Context, id, userID int64) (bool, error)
}
