package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agri_rental/internal/domain/payment"
)

type PostgresScheduleRepository struct {
	db *sql.DB
}

func NewPostgresScheduleRepository(db *sql.DB) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{db: db}
}

const scheduleColumns = `id, contract_id, booking_id, user_id, property_id, due_date, amount, payment_status, created_at`

// BulkCreate inserts every schedule with one prepared statement. Callers wrap it
// in a unit of work so a failure part-way leaves no rows behind.
func (r *PostgresScheduleRepository) BulkCreate(ctx context.Context, schedules []*payment.Schedule) error {
	if len(schedules) == 0 {
		return nil
	}

	stmt, err := conn(ctx, r.db).PrepareContext(ctx, `INSERT INTO payment_schedules (contract_id, booking_id, user_id, property_id, due_date, amount, payment_status)
                                         VALUES ($1, $2, $3, $4, $5, $6, $7)
                                         RETURNING id, created_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for bulk create: %w", err)
	}
	defer stmt.Close()

	for _, s := range schedules {
		err := stmt.QueryRowContext(ctx, s.ContractID, s.BookingID, s.UserID, s.PropertyID, s.DueDate, s.Amount, s.Status).Scan(&s.ID, &s.CreatedAt)
		if err != nil {
			if pqErrorCode(err) == pqUniqueViolation {
				return ErrDuplicateSchedule
			}
			return fmt.Errorf("error executing statement for bulk create (schedule for C:%d, due %s): %w", s.ContractID, s.DueDate.Format("2006-01-02"), err)
		}
	}
	return nil
}

func (r *PostgresScheduleRepository) ListByContract(ctx context.Context, contractID int64) ([]*payment.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM payment_schedules WHERE contract_id = $1 ORDER BY due_date`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("error querying schedules by contract: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func (r *PostgresScheduleRepository) ListDue(ctx context.Context, from, to time.Time) ([]*payment.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `
               FROM payment_schedules
               WHERE payment_status = $1 AND due_date >= $2 AND due_date <= $3
               ORDER BY due_date ASC`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, payment.SchedulePending, from, to)
	if err != nil {
		return nil, fmt.Errorf("error querying due schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

// Helper to scan multiple rows
func scanSchedules(rows *sql.Rows) ([]*payment.Schedule, error) {
	schedules := make([]*payment.Schedule, 0)
	for rows.Next() {
		s := &payment.Schedule{}
		if err := rows.Scan(&s.ID, &s.ContractID, &s.BookingID, &s.UserID, &s.PropertyID, &s.DueDate, &s.Amount, &s.Status, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning schedule row: %w", err)
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule rows: %w", err)
	}
	return schedules, nil
}
