package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"agri_rental/internal/domain/booking"
	"agri_rental/internal/domain/contract"
	idb "agri_rental/internal/infra/database"
	"agri_rental/internal/infra/metrics"
)

// IssueRequest asks for a contract on a booking whose deposit is confirmed.
type IssueRequest struct {
	BookingID int64
	StartDate time.Time
	EndDate   time.Time
}

// ContractApprover issues contracts and moves them from waiting_signature to active.
type ContractApprover struct {
	uow        UnitOfWork
	contracts  contract.Repository
	bookings   booking.Repository
	dispatcher *NotificationDispatcher
	now        func() time.Time
	logger     *logrus.Entry
}

func NewContractApprover(uow UnitOfWork, contracts contract.Repository, bookings booking.Repository, dispatcher *NotificationDispatcher, logger *logrus.Entry) *ContractApprover {
	return &ContractApprover{
		uow:        uow,
		contracts:  contracts,
		bookings:   bookings,
		dispatcher: dispatcher,
		now:        time.Now,
		logger:     logger.WithField("component", "contract_approver"),
	}
}

// Approve activates a contract that is waiting for signature and notifies the
// tenant. Any other state yields ErrAlreadyProcessed and nothing is written.
func (a *ContractApprover) Approve(ctx context.Context, contractID, adminID int64) error {
	log := a.logger.WithFields(logrus.Fields{"contract_id": contractID, "admin_id": adminID})

	if contractID <= 0 || adminID <= 0 {
		err := invalid("contract and admin ids must be positive")
		log.WithError(err).Warn("Rejected contract approval request")
		metrics.ObserveTransition("approve_contract", string(KindValidation))
		return err
	}

	err := a.uow.Do(ctx, func(ctx context.Context) error {
		c, err := a.contracts.GetForUpdate(ctx, contractID)
		if err != nil {
			if errors.Is(err, idb.ErrContractNotFound) {
				return notFound("contract", contractID)
			}
			return err
		}
		if c.Status != contract.StatusWaitingSignature {
			return ErrAlreadyProcessed
		}

		activated, err := a.contracts.Activate(ctx, c.ID, a.now().UTC())
		if err != nil {
			return err
		}
		if !activated {
			return ErrAlreadyProcessed
		}

		return a.dispatcher.Emit(ctx, contractApprovedDraft(c.UserID, c.ContractNumber))
	})

	kind := KindOf(err)
	metrics.ObserveTransition("approve_contract", string(kind))
	switch kind {
	case KindOK:
		log.Info("Contract approved")
	case KindConflict, KindNotFound:
		log.WithError(err).Warn("Contract approval skipped")
	default:
		log.WithError(err).Error("Contract approval failed")
	}
	return err
}

// Issue creates the waiting_signature contract of a booking. A booking gets at
// most one contract, and only after its deposit has been verified.
func (a *ContractApprover) Issue(ctx context.Context, req IssueRequest) (*contract.Contract, error) {
	log := a.logger.WithField("booking_id", req.BookingID)

	if req.BookingID <= 0 {
		return nil, invalid("booking id must be positive")
	}
	if !booking.IsCalendarDate(req.StartDate) || !booking.IsCalendarDate(req.EndDate) {
		return nil, invalid("contract dates must be calendar dates")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, invalid("contract start date must be before its end date")
	}

	var issued *contract.Contract
	err := a.uow.Do(ctx, func(ctx context.Context) error {
		b, err := a.bookings.GetByID(ctx, req.BookingID)
		if err != nil {
			if errors.Is(err, idb.ErrBookingNotFound) {
				return notFound("booking", req.BookingID)
			}
			return err
		}
		if b.Status == booking.StatusCancelled {
			return ErrBookingCancelled
		}
		if b.PaymentStatus != booking.PaymentDepositSuccess {
			return ErrBookingNotSignable
		}

		c := &contract.Contract{
			BookingID:      b.ID,
			UserID:         b.UserID,
			ContractNumber: newContractNumber(a.now()),
			Status:         contract.StatusWaitingSignature,
			StartDate:      req.StartDate,
			EndDate:        req.EndDate,
		}
		if err := a.contracts.Create(ctx, c); err != nil {
			if errors.Is(err, idb.ErrDuplicateContract) {
				return ErrContractExists
			}
			return err
		}
		issued = c
		return nil
	})

	metrics.ObserveTransition("issue_contract", string(KindOf(err)))
	if err != nil {
		log.WithError(err).Warn("Failed to issue contract")
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"contract_id":     issued.ID,
		"contract_number": issued.ContractNumber,
	}).Info("Contract issued")
	return issued, nil
}

// newContractNumber formats AGR-YYYYMMDD-XXXXXX with a random upper-case hex suffix.
func newContractNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("AGR-%s-%s", at.UTC().Format("20060102"), suffix)
}
