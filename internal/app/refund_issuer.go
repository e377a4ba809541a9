package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"agri_rental/internal/domain/booking"
	"agri_rental/internal/domain/payment"
	idb "agri_rental/internal/infra/database"
	"agri_rental/internal/infra/metrics"
)

// RefundRequest asks to return money to the tenant of a booking.
type RefundRequest struct {
	BookingID int64
	Amount    decimal.Decimal
	Reason    string
}

// RefundIssuer records refunds as refund-typed payment rows.
type RefundIssuer struct {
	uow        UnitOfWork
	payments   payment.Repository
	bookings   booking.Repository
	dispatcher *NotificationDispatcher
	logger     *logrus.Entry
}

func NewRefundIssuer(uow UnitOfWork, payments payment.Repository, bookings booking.Repository, dispatcher *NotificationDispatcher, logger *logrus.Entry) *RefundIssuer {
	return &RefundIssuer{
		uow:        uow,
		payments:   payments,
		bookings:   bookings,
		dispatcher: dispatcher,
		logger:     logger.WithField("component", "refund_issuer"),
	}
}

// CreateRefund inserts a pending refund payment for the booking's tenant and
// notifies them, in one unit of work.
func (r *RefundIssuer) CreateRefund(ctx context.Context, req RefundRequest) (*payment.Payment, error) {
	log := r.logger.WithFields(logrus.Fields{"booking_id": req.BookingID, "amount": req.Amount.StringFixed(2)})

	reason := strings.TrimSpace(req.Reason)
	var err error
	switch {
	case req.BookingID <= 0:
		err = invalid("booking id must be positive")
	case !req.Amount.IsPositive():
		err = invalid("refund amount must be positive")
	case req.Amount.Exponent() < -2:
		err = invalid("refund amount has more than two decimal places")
	case reason == "":
		err = invalid("a refund reason is required")
	}
	if err != nil {
		log.WithError(err).Warn("Rejected refund request")
		metrics.ObserveTransition("create_refund", string(KindValidation))
		return nil, err
	}

	var refund *payment.Payment
	err = r.uow.Do(ctx, func(ctx context.Context) error {
		b, err := r.bookings.GetByID(ctx, req.BookingID)
		if err != nil {
			if errors.Is(err, idb.ErrBookingNotFound) {
				return notFound("booking", req.BookingID)
			}
			return err
		}

		p := &payment.Payment{
			BookingID:  b.ID,
			UserID:     b.UserID,
			PropertyID: sql.NullInt64{Int64: b.PropertyID, Valid: true},
			Type:       payment.TypeRefund,
			Amount:     req.Amount,
			Status:     payment.StatusPending,
			Notes:      sql.NullString{String: reason, Valid: true},
		}
		if err := r.payments.Create(ctx, p); err != nil {
			return err
		}
		refund = p

		return r.dispatcher.Emit(ctx, refundDraft(b.UserID, req.Amount, reason))
	})

	metrics.ObserveTransition("create_refund", string(KindOf(err)))
	if err != nil {
		log.WithError(err).Error("Failed to create refund")
		return nil, err
	}
	log.WithField("payment_id", refund.ID).Info("Refund created")
	return refund, nil
}
