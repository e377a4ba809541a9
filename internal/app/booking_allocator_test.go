package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agri_rental/internal/domain/booking"
)

func nov(day int) time.Time { return booking.Date(2025, time.November, day) }

func TestAllocate_SharedBoundaryDayConflicts(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)
	existing := h.seedBooking(7, 100, nov(7), nov(10), booking.PaymentWaiting)

	b, err := h.allocator.Allocate(context.Background(), AllocateRequest{PropertyID: 7, TenantID: 200, From: nov(5), To: nov(7)})

	require.Error(t, err)
	assert.Nil(t, b)
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, KindConflict, KindOf(err))

	var conflict *DateConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []booking.DateRange{existing.Range()}, conflict.Conflicts)
	assert.Len(t, h.store.bookings, 1)
	assert.Equal(t, []int64{7}, h.store.lockedProperty)
}

func TestAllocate_AdjacentRangeSucceeds(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)
	h.seedBooking(7, 100, nov(5), nov(10), booking.PaymentWaiting)

	b, err := h.allocator.Allocate(context.Background(), AllocateRequest{PropertyID: 7, TenantID: 200, From: nov(1), To: nov(4)})

	require.NoError(t, err)
	require.NotNil(t, b)
	assert.NotZero(t, b.ID)
	assert.Equal(t, booking.PaymentWaiting, b.PaymentStatus)
	assert.Equal(t, booking.StatusActive, b.Status)
	assert.Len(t, h.store.bookings, 2)
}

func TestAllocate_ConflictRules(t *testing.T) {
	tests := []struct {
		name     string
		from, to time.Time
		conflict bool
	}{
		{"inside existing", nov(6), nov(8), true},
		{"covers existing", nov(1), nov(20), true},
		{"starts on last day", nov(10), nov(12), true},
		{"single day on first day", nov(5), nov(5), true},
		{"day after", nov(11), nov(15), false},
		{"day before", nov(4), nov(4), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, DeliveryDecoupled)
			h.seedBooking(7, 100, nov(5), nov(10), booking.PaymentWaiting)

			_, err := h.allocator.Allocate(context.Background(), AllocateRequest{PropertyID: 7, TenantID: 200, From: tt.from, To: tt.to})
			if tt.conflict {
				assert.Equal(t, KindConflict, KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAllocate_IgnoresOtherPropertiesAndCancelledBookings(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)
	h.seedBooking(8, 100, nov(5), nov(10), booking.PaymentWaiting)
	cancelled := h.seedBooking(7, 100, nov(5), nov(10), booking.PaymentWaiting)
	cancelled.Status = booking.StatusCancelled
	h.store.bookings[cancelled.ID] = cancelled

	_, err := h.allocator.Allocate(context.Background(), AllocateRequest{PropertyID: 7, TenantID: 200, From: nov(5), To: nov(10)})
	assert.NoError(t, err)
}

func TestAllocate_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  AllocateRequest
	}{
		{"from after to", AllocateRequest{PropertyID: 7, TenantID: 1, From: nov(10), To: nov(5)}},
		{"missing property", AllocateRequest{TenantID: 1, From: nov(1), To: nov(2)}},
		{"missing tenant", AllocateRequest{PropertyID: 7, From: nov(1), To: nov(2)}},
		{"time of day", AllocateRequest{PropertyID: 7, TenantID: 1, From: nov(1).Add(9 * time.Hour), To: nov(2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, DeliveryDecoupled)

			_, err := h.allocator.Allocate(context.Background(), tt.req)

			assert.True(t, errors.Is(err, ErrValidation))
			assert.Zero(t, h.uow.commits+h.uow.rollbacks, "validation happens before any transaction")
		})
	}
}

func TestAllocate_ConstraintBackstopMapsToConflict(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)
	h.seedBooking(7, 100, nov(5), nov(10), booking.PaymentWaiting)
	allocator := NewBookingAllocator(h.uow, racingBookings{memBookings{h.store}}, h.dispatcher, newTestLogger())

	_, err := allocator.Allocate(context.Background(), AllocateRequest{PropertyID: 7, TenantID: 200, From: nov(6), To: nov(7)})

	var conflict *DateConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Empty(t, conflict.Conflicts)
	assert.Equal(t, booking.DateRange{From: nov(6), To: nov(7)}, conflict.Requested)
	assert.Equal(t, 1, h.uow.rollbacks)
}

func TestCancel(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)
	ctx := context.Background()
	b := h.seedBooking(7, 100, nov(5), nov(10), booking.PaymentWaiting)

	assert.Equal(t, KindNotFound, KindOf(h.allocator.Cancel(ctx, b.ID, 999)), "other tenants cannot see the booking")
	require.NoError(t, h.allocator.Cancel(ctx, b.ID, 100))
	assert.Equal(t, booking.StatusCancelled, h.store.bookings[b.ID].Status)
	assert.True(t, errors.Is(h.allocator.Cancel(ctx, b.ID, 100), ErrBookingCancelled))

	// The freed range can be booked again.
	_, err := h.allocator.Allocate(ctx, AllocateRequest{PropertyID: 7, TenantID: 200, From: nov(5), To: nov(10)})
	assert.NoError(t, err)
}

func TestCancel_RefusedAfterDeposit(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)
	b := h.seedBooking(7, 100, nov(5), nov(10), booking.PaymentDepositSuccess)

	err := h.allocator.Cancel(context.Background(), b.ID, 100)

	assert.True(t, errors.Is(err, ErrBookingNotCancellable))
	assert.Equal(t, booking.StatusActive, h.store.bookings[b.ID].Status)
}

func TestUnavailable(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)
	h.seedBooking(7, 100, nov(12), nov(14), booking.PaymentWaiting)
	h.seedBooking(7, 101, nov(2), nov(3), booking.PaymentWaiting)
	h.seedBooking(7, 102, nov(25), nov(28), booking.PaymentWaiting)

	ranges, err := h.allocator.Unavailable(context.Background(), 7, nov(1), nov(20))

	require.NoError(t, err)
	assert.Equal(t, []booking.DateRange{{From: nov(2), To: nov(3)}, {From: nov(12), To: nov(14)}}, ranges)

	_, err = h.allocator.Unavailable(context.Background(), 7, nov(20), nov(1))
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestCancel_DepositVerifiedAfterRead(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)
	b := h.seedBooking(7, 100, nov(5), nov(10), booking.PaymentWaiting)

	bookings := &interleavedBookings{memBookings: memBookings{h.store}}
	bookings.between = func() {
		// An admin verifies the deposit and commits while the cancel is in flight.
		h.store.mu.Lock()
		defer h.store.mu.Unlock()
		moved := h.store.bookings[b.ID]
		moved.PaymentStatus = booking.PaymentDepositSuccess
		h.store.bookings[b.ID] = moved
	}
	allocator := NewBookingAllocator(h.uow, bookings, h.dispatcher, newTestLogger())

	err := allocator.Cancel(context.Background(), b.ID, 100)

	assert.True(t, errors.Is(err, ErrBookingNotCancellable))
	assert.Equal(t, booking.StatusActive, h.store.bookings[b.ID].Status, "a booking with a verified deposit keeps its dates")
}

func TestAllocate_NotifiesOwner(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)

	b, err := h.allocator.Allocate(context.Background(), AllocateRequest{
		PropertyID: 7, TenantID: 200, From: nov(5), To: nov(10),
		OwnerID: 10, PropertyTitle: "Rice field, Chiang Mai",
	})

	require.NoError(t, err)
	owner := h.notificationsFor(10)
	require.Len(t, owner, 1)
	assert.Contains(t, owner[0].Message, "Rice field, Chiang Mai")
	assert.Contains(t, owner[0].Link.String, fmt.Sprint(b.ID))
	assert.Empty(t, h.notificationsFor(200))
}

func TestAllocate_CoupledOwnerNotificationFailureRollsBack(t *testing.T) {
	h := newHarness(t, DeliveryCoupled)
	h.failNotifications(1)

	_, err := h.allocator.Allocate(context.Background(), AllocateRequest{PropertyID: 7, TenantID: 200, From: nov(5), To: nov(10), OwnerID: 10})

	require.Error(t, err)
	assert.Empty(t, h.store.bookings)
}
