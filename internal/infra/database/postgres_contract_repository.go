package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agri_rental/internal/domain/contract"
)

type PostgresContractRepository struct {
	db *sql.DB
}

func NewPostgresContractRepository(db *sql.DB) *PostgresContractRepository {
	return &PostgresContractRepository{db: db}
}

const contractColumns = `id, booking_id, user_id, contract_number, status, start_date, end_date, signed_at, pdf_file_path, created_at`

func scanContract(row interface{ Scan(...any) error }, c *contract.Contract) error {
	return row.Scan(&c.ID, &c.BookingID, &c.UserID, &c.ContractNumber, &c.Status, &c.StartDate, &c.EndDate, &c.SignedAt, &c.PDFFilePath, &c.CreatedAt)
}

func (r *PostgresContractRepository) Create(ctx context.Context, c *contract.Contract) error {
	query := `INSERT INTO contracts (booking_id, user_id, contract_number, status, start_date, end_date)
               VALUES ($1, $2, $3, $4, $5, $6)
               RETURNING id, created_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, c.BookingID, c.UserID, c.ContractNumber, c.Status, c.StartDate, c.EndDate).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if pqErrorCode(err) == pqUniqueViolation {
			return ErrDuplicateContract
		}
		return fmt.Errorf("error creating contract: %w", err)
	}
	return nil
}

func (r *PostgresContractRepository) GetByID(ctx context.Context, id int64) (*contract.Contract, error) {
	return r.get(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
}

func (r *PostgresContractRepository) GetByBookingID(ctx context.Context, bookingID int64) (*contract.Contract, error) {
	return r.get(ctx, `SELECT `+contractColumns+` FROM contracts WHERE booking_id = $1`, bookingID)
}

func (r *PostgresContractRepository) GetForUpdate(ctx context.Context, id int64) (*contract.Contract, error) {
	return r.get(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresContractRepository) get(ctx context.Context, query string, arg int64) (*contract.Contract, error) {
	c := &contract.Contract{}
	if err := scanContract(conn(ctx, r.db).QueryRowContext(ctx, query, arg), c); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("error getting contract: %w", err)
	}
	return c, nil
}

func (r *PostgresContractRepository) Activate(ctx context.Context, id int64, signedAt time.Time) (bool, error) {
	query := `UPDATE contracts SET status = $1, signed_at = $2 WHERE id = $3 AND status = $4`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, contract.StatusActive, signedAt, id, contract.StatusWaitingSignature)
	if err != nil {
		return false, fmt.Errorf("error activating contract: %w", err)
	}
	return affectedOne(res)
}

func (r *PostgresContractRepository) SetDocumentPath(ctx context.Context, id int64, path string) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE contracts SET pdf_file_path = $1 WHERE id = $2`, path, id)
	if err != nil {
		return fmt.Errorf("error updating contract document path: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrContractNotFound
	}
	return nil
}
