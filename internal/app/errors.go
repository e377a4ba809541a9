package app

import (
	"errors"
	"fmt"
	"strings"

	"agri_rental/internal/domain/booking"
	idb "agri_rental/internal/infra/database"
)

// Error kinds. Every error returned by the services matches exactly one of
// these with errors.Is, or is an infrastructure failure.
var ErrValidation = fmt.Errorf("invalid request")
var ErrConflict = fmt.Errorf("conflicts with current state")
var ErrNotFound = fmt.Errorf("not found")

// Conflicts with a specific user-facing meaning
var ErrAlreadyProcessed = fmt.Errorf("already processed: %w", ErrConflict)
var ErrBookingCancelled = fmt.Errorf("booking is cancelled: %w", ErrConflict)
var ErrBookingNotSignable = fmt.Errorf("booking deposit is not confirmed: %w", ErrConflict)
var ErrBookingNotCancellable = fmt.Errorf("booking with a confirmed deposit cannot be cancelled: %w", ErrConflict)
var ErrContractExists = fmt.Errorf("booking already has a contract: %w", ErrConflict)
var ErrScheduleExists = fmt.Errorf("contract already has a payment schedule: %w", ErrConflict)

// DateConflictError reports that a requested range overlaps active bookings.
// Conflicts is empty when the overlap was caught by the database constraint
// rather than by the pre-check.
type DateConflictError struct {
	PropertyID int64
	Requested  booking.DateRange
	Conflicts  []booking.DateRange
}

func (e *DateConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return fmt.Sprintf("property %d: dates %s unavailable", e.PropertyID, e.Requested)
	}
	ranges := make([]string, len(e.Conflicts))
	for i, r := range e.Conflicts {
		ranges[i] = r.String()
	}
	return fmt.Sprintf("property %d: dates %s unavailable, booked %s", e.PropertyID, e.Requested, strings.Join(ranges, ", "))
}

func (e *DateConflictError) Is(target error) bool { return target == ErrConflict }

// Kind classifies an error for callers, logs and metrics.
type Kind string

const (
	KindOK          Kind = "ok"
	KindValidation  Kind = "validation"
	KindConflict    Kind = "conflict"
	KindNotFound    Kind = "not_found"
	KindTransaction Kind = "transaction"
	KindInternal    Kind = "internal"
)

// KindOf returns the kind of err. Business kinds win over the transaction
// wrapper that carries them out of a unit of work.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	var txErr *idb.TransactionError
	if errors.As(err, &txErr) {
		return KindTransaction
	}
	return KindInternal
}

// Succeeded is the boolean view of an operation result for callers that only
// report success or failure, such as admin batch screens.
func Succeeded(err error) bool {
	return err == nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}
