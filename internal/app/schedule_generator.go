package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"agri_rental/internal/domain/booking"
	"agri_rental/internal/domain/contract"
	"agri_rental/internal/domain/payment"
	idb "agri_rental/internal/infra/database"
	"agri_rental/internal/infra/metrics"
)

const maxScheduleMonths = 120

// ScheduleGenerator creates the monthly rent rows of a contract.
type ScheduleGenerator struct {
	uow       UnitOfWork
	contracts contract.Repository
	bookings  booking.Repository
	schedules payment.ScheduleRepository
	logger    *logrus.Entry
}

func NewScheduleGenerator(uow UnitOfWork, contracts contract.Repository, bookings booking.Repository, schedules payment.ScheduleRepository, logger *logrus.Entry) *ScheduleGenerator {
	return &ScheduleGenerator{
		uow:       uow,
		contracts: contracts,
		bookings:  bookings,
		schedules: schedules,
		logger:    logger.WithField("component", "schedule_generator"),
	}
}

// CreateMonthlySchedule inserts months pending rows, the i-th due i calendar
// months after the contract's start date. Either every row is written or none.
func (g *ScheduleGenerator) CreateMonthlySchedule(ctx context.Context, contractID int64, amount decimal.Decimal, months int) ([]*payment.Schedule, error) {
	log := g.logger.WithFields(logrus.Fields{"contract_id": contractID, "months": months})

	var err error
	switch {
	case contractID <= 0:
		err = invalid("contract id must be positive")
	case months < 1 || months > maxScheduleMonths:
		err = invalid("months must be between 1 and %d", maxScheduleMonths)
	case !amount.IsPositive():
		err = invalid("monthly amount must be positive")
	}
	if err != nil {
		log.WithError(err).Warn("Rejected schedule request")
		metrics.ObserveTransition("create_schedule", string(KindValidation))
		return nil, err
	}

	var created []*payment.Schedule
	err = g.uow.Do(ctx, func(ctx context.Context) error {
		// The row lock serialises schedule creation per contract.
		c, err := g.contracts.GetForUpdate(ctx, contractID)
		if err != nil {
			if errors.Is(err, idb.ErrContractNotFound) {
				return notFound("contract", contractID)
			}
			return err
		}
		b, err := g.bookings.GetByID(ctx, c.BookingID)
		if err != nil {
			if errors.Is(err, idb.ErrBookingNotFound) {
				return notFound("booking", c.BookingID)
			}
			return err
		}

		existing, err := g.schedules.ListByContract(ctx, c.ID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrScheduleExists
		}

		rows := make([]*payment.Schedule, 0, months)
		for _, due := range MonthlyDueDates(c.StartDate, months) {
			rows = append(rows, &payment.Schedule{
				ContractID: c.ID,
				BookingID:  b.ID,
				UserID:     c.UserID,
				PropertyID: b.PropertyID,
				DueDate:    due,
				Amount:     amount,
				Status:     payment.SchedulePending,
			})
		}
		if err := g.schedules.BulkCreate(ctx, rows); err != nil {
			if errors.Is(err, idb.ErrDuplicateSchedule) {
				return ErrScheduleExists
			}
			return err
		}
		created = rows
		return nil
	})

	metrics.ObserveTransition("create_schedule", string(KindOf(err)))
	if err != nil {
		log.WithError(err).Error("Failed to create payment schedule")
		return nil, err
	}
	log.Info("Payment schedule created")
	return created, nil
}

// MonthlyDueDates returns the dates start+1 month .. start+months months. A day
// of month that does not exist in the target month is clamped to its last day,
// so Jan 31 is followed by Feb 28 (or 29) and then Mar 31.
func MonthlyDueDates(start time.Time, months int) []time.Time {
	dates := make([]time.Time, 0, months)
	for i := 1; i <= months; i++ {
		dates = append(dates, addMonthsClamped(start, i))
	}
	return dates
}

func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.UTC().Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}
