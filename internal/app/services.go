package app

import (
	"github.com/sirupsen/logrus"

	"agri_rental/internal/domain/booking"
	"agri_rental/internal/domain/contract"
	"agri_rental/internal/domain/notification"
	"agri_rental/internal/domain/payment"
)

// Repositories groups the persistence ports the services are built on.
type Repositories struct {
	Bookings      booking.Repository
	Payments      payment.Repository
	Schedules     payment.ScheduleRepository
	Contracts     contract.Repository
	Notifications notification.Repository
}

// Services is the full set of lifecycle services sharing one unit of work and
// one notification dispatcher.
type Services struct {
	Dispatcher *NotificationDispatcher
	Bookings   *BookingAllocator
	Payments   *PaymentVerifier
	Contracts  *ContractApprover
	Documents  *ContractDocuments
	Refunds    *RefundIssuer
	Schedules  *ScheduleGenerator
	Reminders  *RentReminder
}

func NewServices(uow UnitOfWork, repos Repositories, renderer DocumentRenderer, cfg DispatcherConfig, logger *logrus.Entry) *Services {
	dispatcher := NewNotificationDispatcher(repos.Notifications, uow, cfg, logger)
	return &Services{
		Dispatcher: dispatcher,
		Bookings:   NewBookingAllocator(uow, repos.Bookings, dispatcher, logger),
		Payments:   NewPaymentVerifier(uow, repos.Payments, repos.Bookings, dispatcher, logger),
		Contracts:  NewContractApprover(uow, repos.Contracts, repos.Bookings, dispatcher, logger),
		Documents:  NewContractDocuments(repos.Contracts, renderer, logger),
		Refunds:    NewRefundIssuer(uow, repos.Payments, repos.Bookings, dispatcher, logger),
		Schedules:  NewScheduleGenerator(uow, repos.Contracts, repos.Bookings, repos.Schedules, logger),
		Reminders:  NewRentReminder(repos.Schedules, dispatcher, logger),
	}
}
