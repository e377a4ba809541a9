package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agri_rental/internal/domain/payment"
)

type PostgresPaymentRepository struct {
	db *sql.DB
}

func NewPostgresPaymentRepository(db *sql.DB) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db}
}

const paymentColumns = `id, booking_id, user_id, property_id, payment_type, amount, payment_status,
               verified_by, verified_at, rejection_reason, notes, created_at`

func scanPayment(row interface{ Scan(...any) error }, p *payment.Payment) error {
	return row.Scan(
		&p.ID, &p.BookingID, &p.UserID, &p.PropertyID, &p.Type, &p.Amount, &p.Status,
		&p.VerifiedBy, &p.VerifiedAt, &p.RejectionReason, &p.Notes, &p.CreatedAt,
	)
}

func (r *PostgresPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `INSERT INTO payments (booking_id, user_id, property_id, payment_type, amount, payment_status, notes)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               RETURNING id, created_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		p.BookingID, p.UserID, p.PropertyID, p.Type, p.Amount, p.Status, p.Notes,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating payment: %w", err)
	}
	return nil
}

func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id int64) (*payment.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

func (r *PostgresPaymentRepository) GetForUpdate(ctx context.Context, id int64) (*payment.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresPaymentRepository) get(ctx context.Context, query string, id int64) (*payment.Payment, error) {
	p := &payment.Payment{}
	if err := scanPayment(conn(ctx, r.db).QueryRowContext(ctx, query, id), p); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("error getting payment by ID: %w", err)
	}
	return p, nil
}

func (r *PostgresPaymentRepository) MarkVerified(ctx context.Context, id, adminID int64, at time.Time) (bool, error) {
	query := `UPDATE payments
               SET payment_status = $1, verified_by = $2, verified_at = $3, rejection_reason = NULL
               WHERE id = $4 AND payment_status = $5`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, payment.StatusVerified, adminID, at, id, payment.StatusPending)
	if err != nil {
		return false, fmt.Errorf("error marking payment verified: %w", err)
	}
	return affectedOne(res)
}

// MarkRejected stores the reason verbatim. The reviewing admin is stamped in
// verified_by so the audit trail covers both outcomes.
func (r *PostgresPaymentRepository) MarkRejected(ctx context.Context, id, adminID int64, reason string, at time.Time) (bool, error) {
	query := `UPDATE payments
               SET payment_status = $1, verified_by = $2, verified_at = $3, rejection_reason = $4
               WHERE id = $5 AND payment_status = $6`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, payment.StatusRejected, adminID, at, reason, id, payment.StatusPending)
	if err != nil {
		return false, fmt.Errorf("error marking payment rejected: %w", err)
	}
	return affectedOne(res)
}

func (r *PostgresPaymentRepository) ListPending(ctx context.Context, limit int) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + `
               FROM payments
               WHERE payment_status = $1 AND payment_type <> $2
               ORDER BY created_at ASC
               LIMIT $3` // Oldest first
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, payment.StatusPending, payment.TypeRefund, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying pending payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*payment.Payment, 0)
	for rows.Next() {
		p := &payment.Payment{}
		if err := scanPayment(rows, p); err != nil {
			return nil, fmt.Errorf("error scanning payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment rows: %w", err)
	}
	return payments, nil
}
