package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScheduleStatus is the collection state of a monthly due row.
type ScheduleStatus string

const (
	SchedulePending ScheduleStatus = "pending"
	SchedulePaid    ScheduleStatus = "paid"
	ScheduleOverdue ScheduleStatus = "overdue"
)

// Schedule is one monthly rent instalment of a contract.
// Corresponds to the 'payment_schedules' table.
type Schedule struct {
	ID         int64
	ContractID int64
	BookingID  int64
	UserID     int64
	PropertyID int64
	DueDate    time.Time
	Amount     decimal.Decimal
	Status     ScheduleStatus
	CreatedAt  time.Time
}
