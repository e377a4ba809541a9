package app

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agri_rental/internal/domain/booking"
	"agri_rental/internal/domain/contract"
)

func TestApprove_ActivatesAndNotifiesTenant(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)
	b := h.seedBooking(7, 100, nov(5), nov(10), booking.PaymentDepositSuccess)
	c := h.seedContract(b, contract.StatusWaitingSignature, nov(5))

	require.NoError(t, h.approver.Approve(context.Background(), c.ID, adminID))

	stored := h.store.contracts[c.ID]
	assert.Equal(t, contract.StatusActive, stored.Status)
	assert.True(t, stored.SignedAt.Valid)
	assert.Equal(t, fixedNow, stored.SignedAt.Time)

	sent := h.notificationsFor(100)
	require.Len(t, sent, 1)
	assert.Equal(t, "Contract approved", sent[0].Title)
	assert.Contains(t, sent[0].Message, c.ContractNumber)
}

func TestApprove_ActiveContractIsNoOp(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)
	b := h.seedBooking(7, 100, nov(5), nov(10), booking.PaymentDepositSuccess)
	c := h.seedContract(b, contract.StatusActive, nov(5))

	err := h.approver.Approve(context.Background(), c.ID, adminID)

	assert.True(t, errors.Is(err, ErrAlreadyProcessed))
	assert.Zero(t, h.store.writeCount())
	assert.Empty(t, h.notificationsFor(100))
}

func TestApprove_MissingContract(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)

	err := h.approver.Approve(context.Background(), 404, adminID)

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Zero(t, h.store.writeCount())
}

func TestApprove_CoupledNotificationFailureRollsBackContract(t *testing.T) {
	h := newHarness(t, DeliveryCoupled)
	b := h.seedBooking(7, 100, nov(5), nov(10), booking.PaymentDepositSuccess)
	c := h.seedContract(b, contract.StatusWaitingSignature, nov(5))
	h.failNotifications(-1)

	err := h.approver.Approve(context.Background(), c.ID, adminID)

	require.Error(t, err)
	assert.Equal(t, contract.StatusWaitingSignature, h.store.contracts[c.ID].Status)
	assert.False(t, h.store.contracts[c.ID].SignedAt.Valid)
	assert.Equal(t, 1, h.uow.rollbacks)
}

func TestApprove_DecoupledNotificationFailureKeepsContractActive(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)
	b := h.seedBooking(7, 100, nov(5), nov(10), booking.PaymentDepositSuccess)
	c := h.seedContract(b, contract.StatusWaitingSignature, nov(5))
	h.failNotifications(-1)

	err := h.approver.Approve(context.Background(), c.ID, adminID)

	require.NoError(t, err)
	assert.Equal(t, contract.StatusActive, h.store.contracts[c.ID].Status)
	assert.Empty(t, h.notificationsFor(100))
	assert.Equal(t, 1, h.uow.commits)
}

func TestApprove_NestedInsideOuterUnitOfWork(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)
	b := h.seedBooking(7, 100, nov(5), nov(10), booking.PaymentDepositSuccess)
	c := h.seedContract(b, contract.StatusWaitingSignature, nov(5))

	err := h.uow.Do(context.Background(), func(ctx context.Context) error {
		require.NoError(t, h.approver.Approve(ctx, c.ID, adminID))
		assert.Empty(t, h.notificationsFor(100), "delivery waits for the outer commit")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, h.uow.commits)
	assert.Len(t, h.notificationsFor(100), 1)
}

func TestIssue(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)
	ctx := context.Background()
	b := h.seedBooking(7, 100, nov(5), nov(10), booking.PaymentDepositSuccess)

	c, err := h.approver.Issue(ctx, IssueRequest{BookingID: b.ID, StartDate: nov(5), EndDate: nov(5).AddDate(1, 0, 0)})

	require.NoError(t, err)
	assert.Equal(t, contract.StatusWaitingSignature, c.Status)
	assert.Equal(t, int64(100), c.UserID)
	assert.Regexp(t, regexp.MustCompile(`^AGR-20251103-[0-9A-F]{6}$`), c.ContractNumber)

	_, err = h.approver.Issue(ctx, IssueRequest{BookingID: b.ID, StartDate: nov(5), EndDate: nov(5).AddDate(1, 0, 0)})
	assert.True(t, errors.Is(err, ErrContractExists))
	assert.Len(t, h.store.contracts, 1)
}

func TestIssue_RequiresConfirmedDeposit(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)
	b := h.seedBooking(7, 100, nov(5), nov(10), booking.PaymentWaiting)

	_, err := h.approver.Issue(context.Background(), IssueRequest{BookingID: b.ID, StartDate: nov(5), EndDate: nov(20)})

	assert.True(t, errors.Is(err, ErrBookingNotSignable))
	assert.Empty(t, h.store.contracts)
}

func TestIssue_Validation(t *testing.T) {
	h := newHarness(t, DeliveryDecoupled)

	_, err := h.approver.Issue(context.Background(), IssueRequest{BookingID: 1, StartDate: nov(20), EndDate: nov(5)})

	assert.Equal(t, KindValidation, KindOf(err))
}
