package app

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"agri_rental/internal/domain/booking"
	"agri_rental/internal/domain/contract"
	"agri_rental/internal/domain/notification"
	"agri_rental/internal/domain/payment"
	idb "agri_rental/internal/infra/database"
)

var errStoreDown = errors.New("store unavailable")

var fixedNow = time.Date(2025, 11, 3, 10, 30, 0, 0, time.UTC)

func newTestLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// memStore keeps every table in memory. Rows are stored by value so callers
// never alias stored state.
type memStore struct {
	mu sync.Mutex

	nextID        int64
	bookings      map[int64]booking.Booking
	payments      map[int64]payment.Payment
	contracts     map[int64]contract.Contract
	schedules     map[int64]payment.Schedule
	notifications map[int64]notification.Notification

	writes         int
	lockedProperty []int64
	lockedContract []int64

	// notifyErr is returned by the next notifyFailures notification inserts;
	// a negative count fails every insert.
	notifyErr      error
	notifyFailures int
	// scheduleErrAfter fails BulkCreate once that many rows were inserted.
	scheduleErrAfter int
}

type memSnapshot struct {
	nextID        int64
	bookings      map[int64]booking.Booking
	payments      map[int64]payment.Payment
	contracts     map[int64]contract.Contract
	schedules     map[int64]payment.Schedule
	notifications map[int64]notification.Notification
}

func newMemStore() *memStore {
	return &memStore{
		bookings:         map[int64]booking.Booking{},
		payments:         map[int64]payment.Payment{},
		contracts:        map[int64]contract.Contract{},
		schedules:        map[int64]payment.Schedule{},
		notifications:    map[int64]notification.Notification{},
		scheduleErrAfter: -1,
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		nextID:        s.nextID,
		bookings:      copyMap(s.bookings),
		payments:      copyMap(s.payments),
		contracts:     copyMap(s.contracts),
		schedules:     copyMap(s.schedules),
		notifications: copyMap(s.notifications),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.bookings = snap.bookings
	s.payments = snap.payments
	s.contracts = snap.contracts
	s.schedules = snap.schedules
	s.notifications = snap.notifications
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// fakeUoW mirrors database.Coordinator: the outermost Do commits or restores
// the store, nested calls restore only their own changes, and hooks run after
// the outermost success.
type fakeUoW struct {
	store     *memStore
	depth     int
	hooks     []func(ctx context.Context)
	commits   int
	rollbacks int
}

func (u *fakeUoW) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := u.store.snapshot()
	mark := len(u.hooks)

	u.depth++
	err := fn(ctx)
	u.depth--

	if err != nil {
		u.store.restore(snap)
		u.hooks = u.hooks[:mark]
		if u.depth == 0 {
			u.rollbacks++
			return &idb.TransactionError{Op: "unit of work", Err: err}
		}
		return err
	}
	if u.depth > 0 {
		return nil
	}

	u.commits++
	hooks := u.hooks
	u.hooks = nil
	for _, h := range hooks {
		h(ctx)
	}
	return nil
}

func (u *fakeUoW) AfterCommit(ctx context.Context, hook func(ctx context.Context)) {
	if u.depth == 0 {
		hook(ctx)
		return
	}
	u.hooks = append(u.hooks, hook)
}

type memBookings struct{ s *memStore }

func (r memBookings) LockProperty(_ context.Context, propertyID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lockedProperty = append(r.s.lockedProperty, propertyID)
	return nil
}

func (r memBookings) ListActiveOverlapping(_ context.Context, propertyID int64, from, to time.Time) ([]*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.overlapping(propertyID, from, to), nil
}

func (r memBookings) overlapping(propertyID int64, from, to time.Time) []*booking.Booking {
	want := booking.DateRange{From: from, To: to}
	out := make([]*booking.Booking, 0)
	for _, b := range r.s.bookings {
		if b.PropertyID == propertyID && b.Status != booking.StatusCancelled && b.Range().Overlaps(want) {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FromDate.Before(out[j].FromDate) })
	return out
}

// Create enforces the exclusion constraint of the bookings table.
func (r memBookings) Create(_ context.Context, b *booking.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if len(r.overlapping(b.PropertyID, b.FromDate, b.ToDate)) > 0 {
		return idb.ErrBookingOverlap
	}
	b.ID = r.s.id()
	b.CreatedAt = fixedNow
	r.s.bookings[b.ID] = *b
	r.s.writes++
	return nil
}

func (r memBookings) GetByID(_ context.Context, id int64) (*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, idb.ErrBookingNotFound
	}
	return &b, nil
}

func (r memBookings) MarkDepositSuccess(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok || b.PaymentStatus != booking.PaymentWaiting {
		return false, nil
	}
	b.PaymentStatus = booking.PaymentDepositSuccess
	r.s.bookings[id] = b
	r.s.writes++
	return true, nil
}

func (r memBookings) Cancel(_ context.Context, id, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok || b.UserID != userID || b.Status != booking.StatusActive || b.PaymentStatus != booking.PaymentWaiting {
		return false, nil
	}
	b.Status = booking.StatusCancelled
	r.s.bookings[id] = b
	r.s.writes++
	return true, nil
}

// racingBookings hides existing bookings from the pre-check, as a concurrent
// transaction that has not committed yet would.
type racingBookings struct{ memBookings }

func (racingBookings) ListActiveOverlapping(context.Context, int64, time.Time, time.Time) ([]*booking.Booking, error) {
	return nil, nil
}

// interleavedBookings runs between once after the first GetByID returns, as a
// transaction committing between the read and the guarded update would.
type interleavedBookings struct {
	memBookings
	between func()
}

func (r *interleavedBookings) GetByID(ctx context.Context, id int64) (*booking.Booking, error) {
	b, err := r.memBookings.GetByID(ctx, id)
	if r.between != nil {
		r.between()
		r.between = nil
	}
	return b, err
}

type memPayments struct{ s *memStore }

func (r memPayments) Create(_ context.Context, p *payment.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = r.s.id()
	p.CreatedAt = fixedNow
	r.s.payments[p.ID] = *p
	r.s.writes++
	return nil
}

func (r memPayments) GetByID(_ context.Context, id int64) (*payment.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, idb.ErrPaymentNotFound
	}
	return &p, nil
}

func (r memPayments) GetForUpdate(ctx context.Context, id int64) (*payment.Payment, error) {
	return r.GetByID(ctx, id)
}

func (r memPayments) MarkVerified(_ context.Context, id, adminID int64, at time.Time) (bool, error) {
	return r.transition(id, func(p *payment.Payment) {
		p.Status = payment.StatusVerified
		p.VerifiedBy.Int64, p.VerifiedBy.Valid = adminID, true
		p.VerifiedAt.Time, p.VerifiedAt.Valid = at, true
	})
}

func (r memPayments) MarkRejected(_ context.Context, id, adminID int64, reason string, at time.Time) (bool, error) {
	return r.transition(id, func(p *payment.Payment) {
		p.Status = payment.StatusRejected
		p.VerifiedBy.Int64, p.VerifiedBy.Valid = adminID, true
		p.VerifiedAt.Time, p.VerifiedAt.Valid = at, true
		p.RejectionReason.String, p.RejectionReason.Valid = reason, true
	})
}

func (r memPayments) transition(id int64, apply func(p *payment.Payment)) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok || p.Status != payment.StatusPending {
		return false, nil
	}
	apply(&p)
	r.s.payments[id] = p
	r.s.writes++
	return true, nil
}

func (r memPayments) ListPending(_ context.Context, limit int) ([]*payment.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*payment.Payment, 0)
	for _, p := range r.s.payments {
		if p.Status == payment.StatusPending && p.Type != payment.TypeRefund {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memContracts struct{ s *memStore }

func (r memContracts) Create(_ context.Context, c *contract.Contract) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.contracts {
		if existing.BookingID == c.BookingID || existing.ContractNumber == c.ContractNumber {
			return idb.ErrDuplicateContract
		}
	}
	c.ID = r.s.id()
	c.CreatedAt = fixedNow
	r.s.contracts[c.ID] = *c
	r.s.writes++
	return nil
}

func (r memContracts) GetByID(_ context.Context, id int64) (*contract.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contracts[id]
	if !ok {
		return nil, idb.ErrContractNotFound
	}
	return &c, nil
}

func (r memContracts) GetByBookingID(_ context.Context, bookingID int64) (*contract.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.contracts {
		if c.BookingID == bookingID {
			return &c, nil
		}
	}
	return nil, idb.ErrContractNotFound
}

func (r memContracts) GetForUpdate(ctx context.Context, id int64) (*contract.Contract, error) {
	r.s.mu.Lock()
	r.s.lockedContract = append(r.s.lockedContract, id)
	r.s.mu.Unlock()
	return r.GetByID(ctx, id)
}

func (r memContracts) Activate(_ context.Context, id int64, signedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contracts[id]
	if !ok || c.Status != contract.StatusWaitingSignature {
		return false, nil
	}
	c.Status = contract.StatusActive
	c.SignedAt.Time, c.SignedAt.Valid = signedAt, true
	r.s.contracts[id] = c
	r.s.writes++
	return true, nil
}

func (r memContracts) SetDocumentPath(_ context.Context, id int64, path string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contracts[id]
	if !ok {
		return idb.ErrContractNotFound
	}
	c.PDFFilePath.String, c.PDFFilePath.Valid = path, true
	r.s.contracts[id] = c
	r.s.writes++
	return nil
}

type memSchedules struct{ s *memStore }

func (r memSchedules) BulkCreate(_ context.Context, schedules []*payment.Schedule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, sc := range schedules {
		if r.s.scheduleErrAfter >= 0 && i >= r.s.scheduleErrAfter {
			return errStoreDown
		}
		for _, existing := range r.s.schedules {
			if existing.ContractID == sc.ContractID && existing.DueDate.Equal(sc.DueDate) {
				return idb.ErrDuplicateSchedule
			}
		}
		sc.ID = r.s.id()
		sc.CreatedAt = fixedNow
		r.s.schedules[sc.ID] = *sc
		r.s.writes++
	}
	return nil
}

func (r memSchedules) ListByContract(_ context.Context, contractID int64) ([]*payment.Schedule, error) {
	return r.list(func(sc payment.Schedule) bool { return sc.ContractID == contractID }), nil
}

func (r memSchedules) ListDue(_ context.Context, from, to time.Time) ([]*payment.Schedule, error) {
	return r.list(func(sc payment.Schedule) bool {
		return sc.Status == payment.SchedulePending && !sc.DueDate.Before(from) && !sc.DueDate.After(to)
	}), nil
}

func (r memSchedules) list(keep func(payment.Schedule) bool) []*payment.Schedule {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*payment.Schedule, 0)
	for _, sc := range r.s.schedules {
		if keep(sc) {
			sc := sc
			out = append(out, &sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out
}

// racingSchedules hides existing rows from the pre-check, as a concurrent
// transaction that has not committed yet would.
type racingSchedules struct{ memSchedules }

func (racingSchedules) ListByContract(context.Context, int64) ([]*payment.Schedule, error) {
	return nil, nil
}

type memNotifications struct{ s *memStore }

func (r memNotifications) Create(_ context.Context, n *notification.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.notifyErr != nil && r.s.notifyFailures != 0 {
		if r.s.notifyFailures > 0 {
			r.s.notifyFailures--
		}
		return r.s.notifyErr
	}
	n.ID = r.s.id()
	n.CreatedAt = fixedNow
	r.s.notifications[n.ID] = *n
	r.s.writes++
	return nil
}

func (r memNotifications) CountUnread(_ context.Context, userID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r memNotifications) ListByUser(_ context.Context, userID int64, limit, offset int) ([]*notification.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*notification.Notification, 0)
	for _, n := range r.s.notifications {
		if n.UserID == userID {
			n := n
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset >= len(out) {
		return []*notification.Notification{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memNotifications) MarkRead(_ context.Context, id, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.UserID != userID || n.IsRead {
		return false, nil
	}
	n.IsRead = true
	n.ReadAt.Time, n.ReadAt.Valid = fixedNow, true
	r.s.notifications[id] = n
	r.s.writes++
	return true, nil
}

func (r memNotifications) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var changed int64
	for id, n := range r.s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt.Time, n.ReadAt.Valid = fixedNow, true
			r.s.notifications[id] = n
			changed++
		}
	}
	r.s.writes += int(changed)
	return changed, nil
}

// harness wires every service to one memStore.
type harness struct {
	store      *memStore
	uow        *fakeUoW
	dispatcher *NotificationDispatcher
	allocator  *BookingAllocator
	verifier   *PaymentVerifier
	approver   *ContractApprover
	refunds    *RefundIssuer
	schedules  *ScheduleGenerator
	reminder   *RentReminder
}

func newHarness(t *testing.T, mode DeliveryMode) *harness {
	t.Helper()
	store := newMemStore()
	uow := &fakeUoW{store: store}
	log := newTestLogger()

	dispatcher := NewNotificationDispatcher(memNotifications{store}, uow, DispatcherConfig{Mode: mode, MaxRetries: 2}, log)
	h := &harness{
		store:      store,
		uow:        uow,
		dispatcher: dispatcher,
		allocator:  NewBookingAllocator(uow, memBookings{store}, dispatcher, log),
		verifier:   NewPaymentVerifier(uow, memPayments{store}, memBookings{store}, dispatcher, log),
		approver:   NewContractApprover(uow, memContracts{store}, memBookings{store}, dispatcher, log),
		refunds:    NewRefundIssuer(uow, memPayments{store}, memBookings{store}, dispatcher, log),
		schedules:  NewScheduleGenerator(uow, memContracts{store}, memBookings{store}, memSchedules{store}, log),
		reminder:   NewRentReminder(memSchedules{store}, dispatcher, log),
	}
	clock := func() time.Time { return fixedNow }
	h.verifier.now = clock
	h.approver.now = clock
	h.reminder.now = clock
	return h
}

// Seed helpers write straight into the store, bypassing the services.

func (h *harness) seedBooking(propertyID, tenantID int64, from, to time.Time, ps booking.PaymentStatus) booking.Booking {
	h.store.nextID++
	b := booking.Booking{
		ID:            h.store.nextID,
		PropertyID:    propertyID,
		UserID:        tenantID,
		FromDate:      from,
		ToDate:        to,
		Status:        booking.StatusActive,
		PaymentStatus: ps,
		CreatedAt:     fixedNow,
	}
	h.store.bookings[b.ID] = b
	return b
}

func (h *harness) seedPayment(b booking.Booking, typ payment.Type, amount string) payment.Payment {
	h.store.nextID++
	p := payment.Payment{
		ID:        h.store.nextID,
		BookingID: b.ID,
		UserID:    b.UserID,
		Type:      typ,
		Amount:    decimal.RequireFromString(amount),
		Status:    payment.StatusPending,
		CreatedAt: fixedNow,
	}
	h.store.payments[p.ID] = p
	return p
}

func (h *harness) seedContract(b booking.Booking, status contract.Status, start time.Time) contract.Contract {
	h.store.nextID++
	c := contract.Contract{
		ID:             h.store.nextID,
		BookingID:      b.ID,
		UserID:         b.UserID,
		ContractNumber: "AGR-20251103-SEED01",
		Status:         status,
		StartDate:      start,
		EndDate:        start.AddDate(1, 0, 0),
		CreatedAt:      fixedNow,
	}
	h.store.contracts[c.ID] = c
	return c
}

func (h *harness) notificationsFor(userID int64) []notification.Notification {
	out := make([]notification.Notification, 0)
	for _, n := range h.store.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (h *harness) failNotifications(times int) {
	h.store.notifyErr = errStoreDown
	h.store.notifyFailures = times
}
