package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"agri_rental/internal/domain/booking"
	"agri_rental/internal/domain/payment"
	idb "agri_rental/internal/infra/database"
	"agri_rental/internal/infra/metrics"
)

// VerifyRequest is one admin decision on a submitted payment.
type VerifyRequest struct {
	PaymentID int64
	AdminID   int64
	Approved  bool
	Reason    string // Stored verbatim on rejection
}

// SubmitRequest records a payment a tenant made for one of their bookings.
type SubmitRequest struct {
	BookingID int64
	TenantID  int64
	Type      payment.Type
	Amount    decimal.Decimal
	Notes     string
	OwnerID   int64 // Notified about the submission when set
}

func (r SubmitRequest) validate() error {
	switch {
	case r.BookingID <= 0 || r.TenantID <= 0:
		return invalid("booking and tenant ids must be positive")
	case r.Type != payment.TypeDeposit && r.Type != payment.TypeFull && r.Type != payment.TypeMonthly:
		return invalid("payment type must be deposit, full or monthly")
	case !r.Amount.IsPositive():
		return invalid("payment amount must be positive")
	case r.Amount.Exponent() < -2:
		return invalid("payment amount has more than two decimal places")
	case r.OwnerID < 0:
		return invalid("owner id must not be negative")
	}
	return nil
}

// VerifyResult is the outcome of one item of a batch.
type VerifyResult struct {
	PaymentID int64
	Err       error
}

const (
	defaultPendingLimit = 50
	maxPendingLimit     = 500
)

// PaymentVerifier moves payments out of 'pending' and cascades approval to the
// booking's deposit state.
type PaymentVerifier struct {
	uow        UnitOfWork
	payments   payment.Repository
	bookings   booking.Repository
	dispatcher *NotificationDispatcher
	now        func() time.Time
	logger     *logrus.Entry
}

func NewPaymentVerifier(uow UnitOfWork, payments payment.Repository, bookings booking.Repository, dispatcher *NotificationDispatcher, logger *logrus.Entry) *PaymentVerifier {
	return &PaymentVerifier{
		uow:        uow,
		payments:   payments,
		bookings:   bookings,
		dispatcher: dispatcher,
		now:        time.Now,
		logger:     logger.WithField("component", "payment_verifier"),
	}
}

// Verify applies an admin decision to a pending payment.
//
// Approval marks the payment verified and, when the booking is still waiting
// for its deposit, moves the booking to deposit_success. Rejection stores the
// reason and leaves the booking alone. A payment that is not pending any more
// yields ErrAlreadyProcessed and no row is written.
func (v *PaymentVerifier) Verify(ctx context.Context, req VerifyRequest) error {
	log := v.logger.WithFields(logrus.Fields{
		"payment_id": req.PaymentID,
		"admin_id":   req.AdminID,
		"approved":   req.Approved,
	})

	if req.PaymentID <= 0 || req.AdminID <= 0 {
		err := invalid("payment and admin ids must be positive")
		log.WithError(err).Warn("Rejected payment verification request")
		metrics.ObserveTransition("verify_payment", string(KindValidation))
		return err
	}

	err := v.uow.Do(ctx, func(ctx context.Context) error {
		p, err := v.payments.GetForUpdate(ctx, req.PaymentID)
		if err != nil {
			if errors.Is(err, idb.ErrPaymentNotFound) {
				return notFound("payment", req.PaymentID)
			}
			return err
		}
		if p.Status != payment.StatusPending {
			return ErrAlreadyProcessed
		}

		at := v.now().UTC()
		var updated bool
		if req.Approved {
			updated, err = v.payments.MarkVerified(ctx, p.ID, req.AdminID, at)
		} else {
			updated, err = v.payments.MarkRejected(ctx, p.ID, req.AdminID, req.Reason, at)
		}
		if err != nil {
			return err
		}
		if !updated {
			return ErrAlreadyProcessed
		}

		// A refund is money going out, it says nothing about the deposit.
		if req.Approved && p.Type != payment.TypeRefund {
			moved, err := v.bookings.MarkDepositSuccess(ctx, p.BookingID)
			if err != nil {
				return err
			}
			if !moved {
				log.WithField("booking_id", p.BookingID).Debug("Booking deposit already past waiting, left unchanged")
			}
		}

		return v.dispatcher.Emit(ctx, paymentVerifiedDraft(p.UserID, p.Amount, req.Approved))
	})

	kind := KindOf(err)
	metrics.ObserveTransition("verify_payment", string(kind))
	switch kind {
	case KindOK:
		log.Info("Payment verification recorded")
	case KindConflict, KindNotFound:
		log.WithError(err).Warn("Payment verification skipped")
	default:
		log.WithError(err).Error("Payment verification failed")
	}
	return err
}

// Submit stores a pending payment for review. Only the booking's tenant can
// submit, and not for a cancelled booking.
func (v *PaymentVerifier) Submit(ctx context.Context, req SubmitRequest) (*payment.Payment, error) {
	log := v.logger.WithFields(logrus.Fields{
		"booking_id": req.BookingID,
		"tenant_id":  req.TenantID,
		"type":       req.Type,
	})

	if err := req.validate(); err != nil {
		log.WithError(err).Warn("Rejected payment submission")
		metrics.ObserveTransition("submit_payment", string(KindValidation))
		return nil, err
	}

	var submitted *payment.Payment
	err := v.uow.Do(ctx, func(ctx context.Context) error {
		b, err := v.bookings.GetByID(ctx, req.BookingID)
		if err != nil {
			if errors.Is(err, idb.ErrBookingNotFound) {
				return notFound("booking", req.BookingID)
			}
			return err
		}
		if b.UserID != req.TenantID {
			return notFound("booking", req.BookingID)
		}
		if b.Status == booking.StatusCancelled {
			return ErrBookingCancelled
		}

		p := &payment.Payment{
			BookingID:  b.ID,
			UserID:     b.UserID,
			PropertyID: sql.NullInt64{Int64: b.PropertyID, Valid: true},
			Type:       req.Type,
			Amount:     req.Amount,
			Status:     payment.StatusPending,
		}
		if notes := strings.TrimSpace(req.Notes); notes != "" {
			p.Notes = sql.NullString{String: notes, Valid: true}
		}
		if err := v.payments.Create(ctx, p); err != nil {
			return err
		}
		submitted = p

		if req.OwnerID > 0 {
			return v.dispatcher.NotifyPaymentReceived(ctx, req.OwnerID, p.ID, p.Amount)
		}
		return nil
	})

	metrics.ObserveTransition("submit_payment", string(KindOf(err)))
	if err != nil {
		log.WithError(err).Warn("Failed to submit payment")
		return nil, err
	}
	log.WithField("payment_id", submitted.ID).Info("Payment submitted for review")
	return submitted, nil
}

// VerifyBatch applies each request in its own unit of work. One failing item
// does not stop the rest; every item reports its own outcome in input order.
func (v *PaymentVerifier) VerifyBatch(ctx context.Context, reqs []VerifyRequest) []VerifyResult {
	results := make([]VerifyResult, 0, len(reqs))
	failed := 0
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			results = append(results, VerifyResult{PaymentID: req.PaymentID, Err: err})
			failed++
			continue
		}
		err := v.Verify(ctx, req)
		if !Succeeded(err) {
			failed++
		}
		results = append(results, VerifyResult{PaymentID: req.PaymentID, Err: err})
	}

	v.logger.WithFields(logrus.Fields{"total": len(reqs), "failed": failed}).Info("Batch verification finished")
	return results
}

// Pending lists payments awaiting review, oldest first. Refund rows are
// excluded since they are issued by admins rather than submitted for review.
func (v *PaymentVerifier) Pending(ctx context.Context, limit int) ([]*payment.Payment, error) {
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	if limit > maxPendingLimit {
		limit = maxPendingLimit
	}
	list, err := v.payments.ListPending(ctx, limit)
	if err != nil {
		v.logger.WithError(err).Error("Failed to list pending payments")
		return nil, err
	}
	return list, nil
}
