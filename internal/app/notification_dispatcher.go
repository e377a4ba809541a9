package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"agri_rental/internal/domain/notification"
	"agri_rental/internal/infra/metrics"
)

// DeliveryMode decides how notifications relate to the transition that caused them.
type DeliveryMode string

const (
	// DeliveryDecoupled writes the notification after the transition has
	// committed, retrying on failure. A failed write never reverts the transition.
	DeliveryDecoupled DeliveryMode = "decoupled"
	// DeliveryCoupled writes the notification inside the transition's
	// transaction, so a failed write rolls the transition back.
	DeliveryCoupled DeliveryMode = "coupled"
)

// ParseDeliveryMode validates a configured mode name.
func ParseDeliveryMode(s string) (DeliveryMode, error) {
	switch m := DeliveryMode(strings.ToLower(strings.TrimSpace(s))); m {
	case DeliveryDecoupled, DeliveryCoupled:
		return m, nil
	default:
		return "", fmt.Errorf("unknown notification delivery mode %q", s)
	}
}

type DispatcherConfig struct {
	Mode          DeliveryMode
	MaxRetries    uint64        // Retries after the first decoupled attempt
	RetryInterval time.Duration // Initial backoff; zero retries without waiting
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// NotificationDispatcher creates notification rows and answers read/unread queries.
type NotificationDispatcher struct {
	repo   notification.Repository
	uow    UnitOfWork
	cfg    DispatcherConfig
	logger *logrus.Entry
}

func NewNotificationDispatcher(repo notification.Repository, uow UnitOfWork, cfg DispatcherConfig, logger *logrus.Entry) *NotificationDispatcher {
	if cfg.Mode == "" {
		cfg.Mode = DeliveryDecoupled
	}
	return &NotificationDispatcher{
		repo:   repo,
		uow:    uow,
		cfg:    cfg,
		logger: logger.WithField("component", "notification_dispatcher"),
	}
}

// Create stores one notification. It joins the unit of work on ctx, if any.
func (d *NotificationDispatcher) Create(ctx context.Context, draft notification.Draft) (*notification.Notification, error) {
	if draft.UserID <= 0 {
		return nil, invalid("notification user id must be positive")
	}
	if draft.Type == "" || strings.TrimSpace(draft.Title) == "" {
		return nil, invalid("notification type and title are required")
	}

	n := draft.Build()
	if err := d.repo.Create(ctx, n); err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": draft.UserID,
			"type":    draft.Type,
		}).Error("Failed to create notification")
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return n, nil
}

// Emit attaches a notification to the transition running on ctx, according to
// the configured delivery mode. In decoupled mode it never fails.
func (d *NotificationDispatcher) Emit(ctx context.Context, draft notification.Draft) error {
	if d.cfg.Mode == DeliveryCoupled {
		_, err := d.Create(ctx, draft)
		metrics.ObserveDelivery(string(d.cfg.Mode), string(KindOf(err)))
		return err
	}

	d.uow.AfterCommit(ctx, func(ctx context.Context) {
		_ = d.deliver(ctx, draft)
	})
	return nil
}

// Send writes a notification that belongs to no transition, retrying like a
// decoupled delivery. It reports whether the row was finally written.
func (d *NotificationDispatcher) Send(ctx context.Context, draft notification.Draft) error {
	return d.deliver(ctx, draft)
}

// deliver writes draft with bounded exponential retry and logs a final failure.
func (d *NotificationDispatcher) deliver(ctx context.Context, draft notification.Draft) error {
	log := d.logger.WithFields(logrus.Fields{"user_id": draft.UserID, "type": draft.Type})

	attempt := func() error {
		_, err := d.Create(ctx, draft)
		if err != nil && KindOf(err) == KindValidation {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(d.newBackOff(), d.cfg.MaxRetries), ctx)

	err := backoff.RetryNotify(attempt, policy, func(err error, wait time.Duration) {
		log.WithError(err).WithField("retry_in", wait).Warn("Notification delivery failed, retrying")
	})
	metrics.ObserveDelivery(string(d.cfg.Mode), string(KindOf(err)))
	if err != nil {
		log.WithError(err).Error("Notification dropped after retries")
	}
	return err
}

func (d *NotificationDispatcher) newBackOff() backoff.BackOff {
	if d.cfg.RetryInterval <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.RetryInterval
	b.MaxElapsedTime = time.Minute
	return b
}

// UnreadCount returns the number of unread notifications of the user.
func (d *NotificationDispatcher) UnreadCount(ctx context.Context, userID int64) (int, error) {
	count, err := d.repo.CountUnread(ctx, userID)
	if err != nil {
		d.logger.WithError(err).WithField("user_id", userID).Error("Failed to count unread notifications")
		return 0, err
	}
	return count, nil
}

// List returns the user's notifications, newest first. A non-positive limit
// selects the default page size.
func (d *NotificationDispatcher) List(ctx context.Context, userID int64, limit, offset int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	list, err := d.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		d.logger.WithError(err).WithField("user_id", userID).Error("Failed to list notifications")
		return nil, err
	}
	return list, nil
}

// MarkAsRead marks one notification read. A notification that is missing,
// already read, or owned by someone else is left alone without error.
func (d *NotificationDispatcher) MarkAsRead(ctx context.Context, notificationID, userID int64) error {
	updated, err := d.repo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"notification_id": notificationID,
			"user_id":         userID,
		}).Error("Failed to mark notification read")
		return err
	}
	if !updated {
		d.logger.WithFields(logrus.Fields{
			"notification_id": notificationID,
			"user_id":         userID,
		}).Debug("Mark as read matched no unread notification of this user")
	}
	return nil
}

// MarkAllAsRead marks every unread notification of the user and returns how many changed.
func (d *NotificationDispatcher) MarkAllAsRead(ctx context.Context, userID int64) (int64, error) {
	n, err := d.repo.MarkAllRead(ctx, userID)
	if err != nil {
		d.logger.WithError(err).WithField("user_id", userID).Error("Failed to mark all notifications read")
		return 0, err
	}
	return n, nil
}

// NotifyNewBooking tells a property owner about a fresh booking.
func (d *NotificationDispatcher) NotifyNewBooking(ctx context.Context, ownerID, bookingID int64, propertyTitle string) error {
	return d.Emit(ctx, newBookingDraft(ownerID, bookingID, propertyTitle))
}

// NotifyPaymentReceived tells a property owner a payment slip was submitted.
func (d *NotificationDispatcher) NotifyPaymentReceived(ctx context.Context, ownerID, paymentID int64, amount decimal.Decimal) error {
	return d.Emit(ctx, paymentReceivedDraft(ownerID, paymentID, amount))
}
