// Package bootstrap builds the rental services on top of PostgreSQL for the
// command-line entry points.
package bootstrap

import (
	"database/sql"

	"agri_rental/internal/app"
	"agri_rental/internal/infra/config"
	idb "agri_rental/internal/infra/database"
	"agri_rental/internal/infra/documents"

	"github.com/sirupsen/logrus"
)

// Services wires the Postgres repositories, the transaction coordinator and
// the document renderer into app.Services.
func Services(db *sql.DB, cfg *config.AppConfig, logger *logrus.Logger) (*app.Services, error) {
	mode, err := app.ParseDeliveryMode(cfg.NotificationMode)
	if err != nil {
		return nil, err
	}

	return app.NewServices(
		idb.NewCoordinator(db, logger.WithField("component", "database")),
		app.Repositories{
			Bookings:      idb.NewPostgresBookingRepository(db),
			Payments:      idb.NewPostgresPaymentRepository(db),
			Schedules:     idb.NewPostgresScheduleRepository(db),
			Contracts:     idb.NewPostgresContractRepository(db),
			Notifications: idb.NewPostgresNotificationRepository(db),
		},
		documents.NewTextRenderer(cfg.ContractDocsDir),
		app.DispatcherConfig{
			Mode:          mode,
			MaxRetries:    cfg.NotifyMaxRetries,
			RetryInterval: cfg.NotifyRetryInterval,
		},
		logrus.NewEntry(logger),
	), nil
}
