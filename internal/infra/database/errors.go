package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Custom errors returned by the repositories
var ErrBookingNotFound = fmt.Errorf("booking not found")
var ErrBookingOverlap = fmt.Errorf("booking overlaps an active booking of the same property")
var ErrPaymentNotFound = fmt.Errorf("payment not found")
var ErrContractNotFound = fmt.Errorf("contract not found")
var ErrDuplicateContract = fmt.Errorf("contract already exists (booking_id or contract_number)")
var ErrDuplicateSchedule = fmt.Errorf("payment schedule already has a row for this due date")

// SQLSTATE codes mapped to the errors above.
const (
	pqUniqueViolation    pq.ErrorCode = "23505"
	pqExclusionViolation pq.ErrorCode = "23P01"
)

func pqErrorCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}
