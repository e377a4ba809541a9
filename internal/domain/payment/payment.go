// internal/domain/payment/payment.go
package payment

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the verification state of a payment. Verified and rejected are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// Type distinguishes what a payment row pays for.
type Type string

const (
	TypeDeposit Type = "deposit"
	TypeFull    Type = "full"
	TypeMonthly Type = "monthly"
	TypeRefund  Type = "refund"
)

// Payment is a submitted payment (e.g. a bank transfer slip) awaiting or past verification.
// Corresponds to the 'payments' table.
type Payment struct {
	ID              int64
	BookingID       int64
	UserID          int64
	PropertyID      sql.NullInt64
	Type            Type
	Amount          decimal.Decimal
	Status          Status
	VerifiedBy      sql.NullInt64
	VerifiedAt      sql.NullTime
	RejectionReason sql.NullString
	Notes           sql.NullString
	CreatedAt       time.Time
}
