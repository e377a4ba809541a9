package app

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"agri_rental/internal/domain/notification"
)

const historyLink = "/history"

func formatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2) + " THB"
}

func newBookingDraft(ownerID, bookingID int64, propertyTitle string) notification.Draft {
	return notification.Draft{
		UserID:  ownerID,
		Type:    notification.TypeBooking,
		Title:   "New booking",
		Message: fmt.Sprintf("A tenant booked your property: %s", propertyTitle),
		Link:    fmt.Sprintf("/property-bookings/%d", bookingID),
	}
}

func paymentReceivedDraft(ownerID, paymentID int64, amount decimal.Decimal) notification.Draft {
	return notification.Draft{
		UserID:  ownerID,
		Type:    notification.TypePayment,
		Title:   "Payment received",
		Message: fmt.Sprintf("Payment #%d of %s was submitted", paymentID, formatAmount(amount)),
		Link:    "/admin/dashboard",
	}
}

func paymentVerifiedDraft(userID int64, amount decimal.Decimal, approved bool) notification.Draft {
	d := notification.Draft{
		UserID: userID,
		Type:   notification.TypePayment,
		Link:   historyLink,
	}
	if approved {
		d.Title = "Payment approved"
		d.Message = fmt.Sprintf("Your payment of %s has been approved", formatAmount(amount))
	} else {
		d.Title = "Payment rejected"
		d.Message = fmt.Sprintf("Your payment of %s has been rejected", formatAmount(amount))
	}
	return d
}

func contractApprovedDraft(userID int64, contractNumber string) notification.Draft {
	return notification.Draft{
		UserID:  userID,
		Type:    notification.TypeContract,
		Title:   "Contract approved",
		Message: fmt.Sprintf("Contract %s has been approved", contractNumber),
		Link:    historyLink,
	}
}

func rentDueDraft(userID, contractID int64, dueDate time.Time, amount decimal.Decimal) notification.Draft {
	return notification.Draft{
		UserID:  userID,
		Type:    notification.TypePayment,
		Title:   "Rent due",
		Message: fmt.Sprintf("Rent for contract #%d is due on %s\nAmount: %s", contractID, dueDate.Format("2006-01-02"), formatAmount(amount)),
		Link:    historyLink,
	}
}

func refundDraft(userID int64, amount decimal.Decimal, reason string) notification.Draft {
	return notification.Draft{
		UserID:  userID,
		Type:    notification.TypePayment,
		Title:   "Refund issued",
		Message: fmt.Sprintf("A refund of %s has been issued\nReason: %s", formatAmount(amount), reason),
		Link:    historyLink,
	}
}
