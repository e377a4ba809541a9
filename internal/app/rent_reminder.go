package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"agri_rental/internal/domain/payment"
)

// RentReminder notifies tenants about monthly rent that falls due soon.
type RentReminder struct {
	schedules  payment.ScheduleRepository
	dispatcher *NotificationDispatcher
	now        func() time.Time
	logger     *logrus.Entry
}

func NewRentReminder(schedules payment.ScheduleRepository, dispatcher *NotificationDispatcher, logger *logrus.Entry) *RentReminder {
	return &RentReminder{
		schedules:  schedules,
		dispatcher: dispatcher,
		now:        time.Now,
		logger:     logger.WithField("component", "rent_reminder"),
	}
}

// SendDueReminders sends one rent-due notification per pending schedule due
// between today and today+daysAhead, inclusive. It returns the number of
// reminders actually stored. A reminder that still fails after the
// dispatcher's retries is logged and skipped.
func (r *RentReminder) SendDueReminders(ctx context.Context, daysAhead int) (int, error) {
	if daysAhead < 0 {
		return 0, invalid("days ahead must not be negative")
	}

	from := today(r.now())
	to := from.AddDate(0, 0, daysAhead)
	log := r.logger.WithFields(logrus.Fields{
		"from": from.Format("2006-01-02"),
		"to":   to.Format("2006-01-02"),
	})

	due, err := r.schedules.ListDue(ctx, from, to)
	if err != nil {
		log.WithError(err).Error("Failed to list due payment schedules")
		return 0, err
	}

	sent := 0
	for _, s := range due {
		if ctx.Err() != nil {
			log.WithError(ctx.Err()).Warn("Rent reminder run interrupted")
			return sent, ctx.Err()
		}
		// A reminder belongs to no transition, so it is written directly.
		if err := r.dispatcher.Send(ctx, rentDueDraft(s.UserID, s.ContractID, s.DueDate, s.Amount)); err != nil {
			log.WithError(err).WithField("schedule_id", s.ID).Error("Failed to send rent reminder")
			continue
		}
		sent++
	}

	log.WithFields(logrus.Fields{"due": len(due), "sent": sent}).Info("Rent reminders sent")
	return sent, nil
}
