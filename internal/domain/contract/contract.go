// internal/domain/contract/contract.go
package contract

import (
	"database/sql"
	"time"
)

// Status is the approval state of a contract. Active is terminal.
type Status string

const (
	StatusWaitingSignature Status = "waiting_signature"
	StatusActive           Status = "active"
)

// Contract is the lease issued for a booking once its deposit is confirmed.
// Corresponds to the 'contracts' table.
type Contract struct {
	ID             int64
	BookingID      int64
	UserID         int64 // Tenant
	ContractNumber string
	Status         Status
	StartDate      time.Time
	EndDate        time.Time
	SignedAt       sql.NullTime
	PDFFilePath    sql.NullString
	CreatedAt      time.Time
}
