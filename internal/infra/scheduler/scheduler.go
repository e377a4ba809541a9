package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RentReminder is the job the scheduler drives. *app.RentReminder implements it.
type RentReminder interface {
	SendDueReminders(ctx context.Context, daysAhead int) (int, error)
}

const reminderJobTimeout = 5 * time.Minute

type RentDueScheduler struct {
	cronEngine      *cron.Cron
	reminder        RentReminder
	logger          *logrus.Entry
	cronSpecRentDue string // e.g., "0 9 * * *" (9 AM daily)
	daysAhead       int
}

func NewRentDueScheduler(reminder RentReminder, logger *logrus.Entry, cronSpecRentDue string, daysAhead int) *RentDueScheduler {
	return &RentDueScheduler{
		cronEngine:      cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		reminder:        reminder,
		logger:          logger.WithField("component", "scheduler"),
		cronSpecRentDue: cronSpecRentDue,
		daysAhead:       daysAhead,
	}
}

// Start registers the jobs and starts the cron engine. An invalid cron spec is
// reported instead of starting with a partial job set.
func (s *RentDueScheduler) Start() error {
	s.logger.Info("Starting rent due scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecRentDue, func() {
		s.logger.Info("Cron job triggered for rent due reminders.")
		s.RunOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("could not add rent due cron job %q: %w", s.cronSpecRentDue, err)
	}

	s.cronEngine.Start()
	s.logger.WithField("spec", s.cronSpecRentDue).Info("Rent due scheduler started.")
	return nil
}

// RunOnce executes the reminder job immediately with its own timeout.
func (s *RentDueScheduler) RunOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, reminderJobTimeout)
	defer cancel()

	sent, err := s.reminder.SendDueReminders(ctx, s.daysAhead)
	if err != nil {
		s.logger.WithError(err).Error("Error during rent due reminder processing")
		return
	}
	s.logger.WithField("sent", sent).Info("Rent due reminder processing finished.")
}

func (s *RentDueScheduler) Stop() {
	s.logger.Info("Stopping rent due scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Rent due scheduler gracefully stopped.")
}
