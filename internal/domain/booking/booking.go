// internal/domain/booking/booking.go
package booking

import "time"

// Status is the reservation lifecycle of a booking row. Rows are never deleted.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus tracks how far the deposit for a booking has progressed.
type PaymentStatus string

const (
	PaymentWaiting        PaymentStatus = "waiting"
	PaymentDepositSuccess PaymentStatus = "deposit_success"
)

// Booking is a reservation of a property by a tenant for an inclusive date range.
// Corresponds to the 'bookings' table.
type Booking struct {
	ID            int64
	PropertyID    int64
	UserID        int64 // Tenant
	FromDate      time.Time
	ToDate        time.Time
	Status        Status
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
}

// Range returns the booked date range.
func (b *Booking) Range() DateRange {
	return DateRange{From: b.FromDate, To: b.ToDate}
}
