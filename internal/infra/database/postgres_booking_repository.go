package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agri_rental/internal/domain/booking"
)

type PostgresBookingRepository struct {
	db *sql.DB
}

func NewPostgresBookingRepository(db *sql.DB) *PostgresBookingRepository {
	return &PostgresBookingRepository{db: db}
}

const bookingColumns = `id, property_id, user_id, from_date, to_date, status, payment_status, created_at`

func scanBooking(row interface{ Scan(...any) error }, b *booking.Booking) error {
	return row.Scan(&b.ID, &b.PropertyID, &b.UserID, &b.FromDate, &b.ToDate, &b.Status, &b.PaymentStatus, &b.CreatedAt)
}

// LockProperty takes a transaction-scoped advisory lock on the property id.
// Outside a transaction the lock would be released immediately, so it is refused.
func (r *PostgresBookingRepository) LockProperty(ctx context.Context, propertyID int64) error {
	if !InTransaction(ctx) {
		return fmt.Errorf("property lock requires an active transaction")
	}
	if _, err := conn(ctx, r.db).ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, propertyID); err != nil {
		return fmt.Errorf("error locking property %d: %w", propertyID, err)
	}
	return nil
}

func (r *PostgresBookingRepository) ListActiveOverlapping(ctx context.Context, propertyID int64, from, to time.Time) ([]*booking.Booking, error) {
	query := `SELECT ` + bookingColumns + `
               FROM bookings
               WHERE property_id = $1
                 AND status <> $2
                 AND from_date <= $3
                 AND to_date >= $4
               ORDER BY from_date`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, propertyID, booking.StatusCancelled, to, from)
	if err != nil {
		return nil, fmt.Errorf("error querying overlapping bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]*booking.Booking, 0)
	for rows.Next() {
		b := &booking.Booking{}
		if err := scanBooking(rows, b); err != nil {
			return nil, fmt.Errorf("error scanning booking row: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating booking rows: %w", err)
	}
	return bookings, nil
}

func (r *PostgresBookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	query := `INSERT INTO bookings (property_id, user_id, from_date, to_date, status, payment_status)
               VALUES ($1, $2, $3, $4, $5, $6)
               RETURNING id, created_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, b.PropertyID, b.UserID, b.FromDate, b.ToDate, b.Status, b.PaymentStatus).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if pqErrorCode(err) == pqExclusionViolation {
			return ErrBookingOverlap
		}
		return fmt.Errorf("error creating booking: %w", err)
	}
	return nil
}

func (r *PostgresBookingRepository) GetByID(ctx context.Context, id int64) (*booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b := &booking.Booking{}
	if err := scanBooking(conn(ctx, r.db).QueryRowContext(ctx, query, id), b); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("error getting booking by ID: %w", err)
	}
	return b, nil
}

func (r *PostgresBookingRepository) MarkDepositSuccess(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE bookings SET payment_status = $1 WHERE id = $2 AND payment_status = $3`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, booking.PaymentDepositSuccess, id, booking.PaymentWaiting)
	if err != nil {
		return false, fmt.Errorf("error updating booking payment status: %w", err)
	}
	return affectedOne(res)
}

func (r *PostgresBookingRepository) Cancel(ctx context.Context, id, userID int64) (bool, error) {
	query := `UPDATE bookings SET status = $1
               WHERE id = $2 AND user_id = $3 AND status = $4 AND payment_status = $5`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, booking.StatusCancelled, id, userID, booking.StatusActive, booking.PaymentWaiting)
	if err != nil {
		return false, fmt.Errorf("error cancelling booking: %w", err)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading affected rows: %w", err)
	}
	return n == 1, nil
}
