package telegram

import (
	"context"
	"fmt"

	domaintg "agri_rental/internal/domain/telegram"
	"agri_rental/internal/infra/scheduler"

	"github.com/sirupsen/logrus"
)

// ReportingReminder runs the rent reminder job and posts a summary to the
// admin chat. A failed report is logged and does not change the job result.
type ReportingReminder struct {
	inner       scheduler.RentReminder
	client      domaintg.Client
	adminChatID int64
	logger      *logrus.Entry
}

func NewReportingReminder(inner scheduler.RentReminder, client domaintg.Client, adminChatID int64, logger *logrus.Entry) *ReportingReminder {
	return &ReportingReminder{
		inner:       inner,
		client:      client,
		adminChatID: adminChatID,
		logger:      logger.WithField("component", "telegram_report"),
	}
}

func (r *ReportingReminder) SendDueReminders(ctx context.Context, daysAhead int) (int, error) {
	sent, err := r.inner.SendDueReminders(ctx, daysAhead)

	text := fmt.Sprintf("Rent reminders: %d sent for the next %d days.", sent, daysAhead)
	if err != nil {
		text = fmt.Sprintf("Rent reminders failed after %d sent. Check the server log.", sent)
	}
	if sendErr := r.client.SendMessage(r.adminChatID, text, nil); sendErr != nil {
		r.logger.WithError(sendErr).Warn("Failed to send rent reminder report to admin")
	}
	return sent, err
}
