package app

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"agri_rental/internal/domain/booking"
	idb "agri_rental/internal/infra/database"
	"agri_rental/internal/infra/metrics"
)

// AllocateRequest asks for a property over an inclusive range of calendar days.
type AllocateRequest struct {
	PropertyID int64
	TenantID   int64
	From       time.Time
	To         time.Time

	// OwnerID, when set, is notified about the new booking.
	OwnerID       int64
	PropertyTitle string
}

func (r AllocateRequest) validate() error {
	if r.PropertyID <= 0 || r.TenantID <= 0 {
		return invalid("property and tenant ids must be positive")
	}
	if !booking.IsCalendarDate(r.From) || !booking.IsCalendarDate(r.To) {
		return invalid("booking dates must be calendar dates without a time of day")
	}
	if r.From.After(r.To) {
		return invalid("from date %s is after to date %s", r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))
	}
	if r.OwnerID < 0 {
		return invalid("owner id must not be negative")
	}
	return nil
}

// BookingAllocator admits or rejects booking requests against the bookings
// already held on a property.
//
// Check-and-insert runs under a per-property transaction lock, so two
// concurrent requests for the same property are decided one after the other.
// The bookings_no_overlap exclusion constraint backs this up in storage.
type BookingAllocator struct {
	uow        UnitOfWork
	bookings   booking.Repository
	dispatcher *NotificationDispatcher
	logger     *logrus.Entry
}

func NewBookingAllocator(uow UnitOfWork, bookings booking.Repository, dispatcher *NotificationDispatcher, logger *logrus.Entry) *BookingAllocator {
	return &BookingAllocator{
		uow:        uow,
		bookings:   bookings,
		dispatcher: dispatcher,
		logger:     logger.WithField("component", "booking_allocator"),
	}
}

// Allocate creates a booking with payment_status 'waiting' if no active booking
// of the property shares a day with the requested range. On overlap it returns
// a *DateConflictError listing the booked ranges.
func (a *BookingAllocator) Allocate(ctx context.Context, req AllocateRequest) (*booking.Booking, error) {
	log := a.logger.WithFields(logrus.Fields{
		"property_id": req.PropertyID,
		"tenant_id":   req.TenantID,
		"from":        req.From.Format("2006-01-02"),
		"to":          req.To.Format("2006-01-02"),
	})

	if err := req.validate(); err != nil {
		log.WithError(err).Warn("Rejected booking request")
		metrics.ObserveTransition("allocate_booking", string(KindValidation))
		return nil, err
	}

	requested := booking.DateRange{From: req.From, To: req.To}
	var created *booking.Booking

	err := a.uow.Do(ctx, func(ctx context.Context) error {
		if err := a.bookings.LockProperty(ctx, req.PropertyID); err != nil {
			return err
		}

		existing, err := a.bookings.ListActiveOverlapping(ctx, req.PropertyID, req.From, req.To)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			conflict := &DateConflictError{PropertyID: req.PropertyID, Requested: requested}
			for _, b := range existing {
				conflict.Conflicts = append(conflict.Conflicts, b.Range())
			}
			return conflict
		}

		b := &booking.Booking{
			PropertyID:    req.PropertyID,
			UserID:        req.TenantID,
			FromDate:      req.From,
			ToDate:        req.To,
			Status:        booking.StatusActive,
			PaymentStatus: booking.PaymentWaiting,
		}
		if err := a.bookings.Create(ctx, b); err != nil {
			if errors.Is(err, idb.ErrBookingOverlap) {
				return &DateConflictError{PropertyID: req.PropertyID, Requested: requested}
			}
			return err
		}
		created = b

		if req.OwnerID > 0 {
			return a.dispatcher.NotifyNewBooking(ctx, req.OwnerID, b.ID, req.PropertyTitle)
		}
		return nil
	})

	kind := KindOf(err)
	metrics.ObserveTransition("allocate_booking", string(kind))
	if err != nil {
		if kind == KindConflict {
			log.WithError(err).Info("Booking request conflicts with existing bookings")
		} else {
			log.WithError(err).Error("Failed to allocate booking")
		}
		return nil, err
	}

	log.WithField("booking_id", created.ID).Info("Booking allocated")
	return created, nil
}

// Cancel releases a tenant's booking so its dates can be booked again. Only
// bookings still waiting for their deposit can be cancelled this way.
func (a *BookingAllocator) Cancel(ctx context.Context, bookingID, tenantID int64) error {
	log := a.logger.WithFields(logrus.Fields{"booking_id": bookingID, "tenant_id": tenantID})

	err := a.uow.Do(ctx, func(ctx context.Context) error {
		b, err := a.bookings.GetByID(ctx, bookingID)
		if err != nil {
			if errors.Is(err, idb.ErrBookingNotFound) {
				return notFound("booking", bookingID)
			}
			return err
		}
		// Someone else's booking is reported as missing.
		if b.UserID != tenantID {
			return notFound("booking", bookingID)
		}
		if b.Status == booking.StatusCancelled {
			return ErrBookingCancelled
		}
		if b.PaymentStatus != booking.PaymentWaiting {
			return ErrBookingNotCancellable
		}

		ok, err := a.bookings.Cancel(ctx, bookingID, tenantID)
		if err != nil {
			return err
		}
		if !ok {
			// The booking changed after it was read. Report what it is now.
			return a.cancelRefusal(ctx, bookingID)
		}
		return nil
	})

	metrics.ObserveTransition("cancel_booking", string(KindOf(err)))
	if err != nil {
		log.WithError(err).Warn("Failed to cancel booking")
		return err
	}
	log.Info("Booking cancelled")
	return nil
}

// cancelRefusal classifies a cancellation whose guarded update matched nothing.
func (a *BookingAllocator) cancelRefusal(ctx context.Context, bookingID int64) error {
	b, err := a.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Status == booking.StatusCancelled {
		return ErrBookingCancelled
	}
	return ErrBookingNotCancellable
}

// Unavailable returns the booked ranges of a property that intersect [from, to].
func (a *BookingAllocator) Unavailable(ctx context.Context, propertyID int64, from, to time.Time) ([]booking.DateRange, error) {
	if propertyID <= 0 {
		return nil, invalid("property id must be positive")
	}
	if from.After(to) {
		return nil, invalid("from date is after to date")
	}

	existing, err := a.bookings.ListActiveOverlapping(ctx, propertyID, from, to)
	if err != nil {
		a.logger.WithError(err).WithField("property_id", propertyID).Error("Failed to list booked ranges")
		return nil, err
	}

	ranges := make([]booking.DateRange, 0, len(existing))
	for _, b := range existing {
		ranges = append(ranges, b.Range())
	}
	return ranges, nil
}
