package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"agri_rental/internal/app"
	"agri_rental/internal/domain/payment"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Services used by the admin commands. The app services implement them.
type PaymentReviewer interface {
	Pending(ctx context.Context, limit int) ([]*payment.Payment, error)
	Verify(ctx context.Context, req app.VerifyRequest) error
}

type ContractActivator interface {
	Approve(ctx context.Context, contractID, adminID int64) error
}

type ScheduleCreator interface {
	CreateMonthlySchedule(ctx context.Context, contractID int64, amount decimal.Decimal, months int) ([]*payment.Schedule, error)
}

type RefundCreator interface {
	CreateRefund(ctx context.Context, req app.RefundRequest) (*payment.Payment, error)
}

const (
	msgUnauthorized      = "Error: you are not allowed to run this command."
	pendingPaymentsShown = 20
	buttonRejectReason   = "Rejected by administrator"
)

var (
	btnApprovePayment = telebot.Btn{Unique: "pay_ok"}
	btnRejectPayment  = telebot.Btn{Unique: "pay_no"}
)

// AdminCommands turns admin chat commands into service calls. Every reply is
// plain text built from app.UserMessage, so the bot never leaks internals
// unless debug is on.
type AdminCommands struct {
	payments  PaymentReviewer
	contracts ContractActivator
	schedules ScheduleCreator
	refunds   RefundCreator

	adminTelegramID int64
	adminUserID     int64 // Stamped as verified_by
	debug           bool
	logger          *logrus.Entry
}

func NewAdminCommands(payments PaymentReviewer, contracts ContractActivator, schedules ScheduleCreator, refunds RefundCreator, adminTelegramID, adminUserID int64, debug bool, logger *logrus.Entry) *AdminCommands {
	return &AdminCommands{
		payments:        payments,
		contracts:       contracts,
		schedules:       schedules,
		refunds:         refunds,
		adminTelegramID: adminTelegramID,
		adminUserID:     adminUserID,
		debug:           debug,
		logger:          logger.WithField("component", "telegram_admin"),
	}
}

// RegisterAdminHandlers registers handlers for admin commands and payment review buttons.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, cmds *AdminCommands) {
	text := func(name string, run func(ctx context.Context, args []string) string) {
		b.Handle(name, func(c telebot.Context) error {
			handlerLogger := cmds.logger.WithFields(logrus.Fields{
				"handler":   name,
				"sender_id": c.Sender().ID,
			})
			handlerLogger.Info("Command received")

			if !cmds.authorized(c.Sender().ID) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(msgUnauthorized)
			}
			return c.Send(run(ctx, c.Args()))
		})
	}

	text("/verify_payment", cmds.VerifyPayment)
	text("/reject_payment", cmds.RejectPayment)
	text("/approve_contract", cmds.ApproveContract)
	text("/schedule", cmds.Schedule)
	text("/refund", cmds.Refund)
	text("/help", func(context.Context, []string) string { return cmds.Help() })

	b.Handle("/start", func(c telebot.Context) error {
		if cmds.authorized(c.Sender().ID) {
			return c.Send(fmt.Sprintf("Hello, %s! Rental administration is ready. Use /help for the list of commands.", c.Sender().FirstName))
		}
		return c.Send("This bot is reserved for rental administrators.")
	})

	b.Handle("/pending_payments", func(c telebot.Context) error {
		if !cmds.authorized(c.Sender().ID) {
			cmds.logger.WithField("sender_id", c.Sender().ID).Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}
		messages, err := cmds.PendingPayments(ctx)
		if err != nil {
			return c.Send(app.UserMessage(err, cmds.debug))
		}
		for _, m := range messages {
			if err := c.Send(m.Text, &telebot.SendOptions{ReplyMarkup: m.Markup}); err != nil {
				return err
			}
		}
		return nil
	})

	button := func(btn *telebot.Btn, approved bool) {
		b.Handle(btn, func(c telebot.Context) error {
			if !cmds.authorized(c.Sender().ID) {
				return c.Respond(&telebot.CallbackResponse{Text: msgUnauthorized})
			}
			reply := cmds.ReviewButton(ctx, c.Callback().Data, approved)
			if err := c.Respond(&telebot.CallbackResponse{Text: reply}); err != nil {
				return err
			}
			// Drop the buttons so the decision cannot be clicked twice.
			return c.Edit(c.Message().Text+"\n\n"+reply, &telebot.SendOptions{})
		})
	}
	button(&btnApprovePayment, true)
	button(&btnRejectPayment, false)
}

func (a *AdminCommands) authorized(senderID int64) bool {
	return senderID == a.adminTelegramID
}

// OutgoingMessage is one chat message with optional inline buttons.
type OutgoingMessage struct {
	Text   string
	Markup *telebot.ReplyMarkup
}

// PendingPayments lists payments waiting for review, one message per payment
// with approve and reject buttons.
func (a *AdminCommands) PendingPayments(ctx context.Context) ([]OutgoingMessage, error) {
	list, err := a.payments.Pending(ctx, pendingPaymentsShown)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return []OutgoingMessage{{Text: "No payments are waiting for review."}}, nil
	}

	messages := make([]OutgoingMessage, 0, len(list))
	for _, p := range list {
		id := strconv.FormatInt(p.ID, 10)
		markup := &telebot.ReplyMarkup{}
		markup.Inline(markup.Row(
			markup.Data("Approve", btnApprovePayment.Unique, id),
			markup.Data("Reject", btnRejectPayment.Unique, id),
		))
		messages = append(messages, OutgoingMessage{
			Text: fmt.Sprintf("Payment #%d (%s)\nBooking: %d\nUser: %d\nAmount: %s THB\nSubmitted: %s",
				p.ID, p.Type, p.BookingID, p.UserID, p.Amount.StringFixed(2), p.CreatedAt.Format("2006-01-02 15:04")),
			Markup: markup,
		})
	}
	return messages, nil
}

// ReviewButton handles a press of an approve or reject button.
func (a *AdminCommands) ReviewButton(ctx context.Context, data string, approved bool) string {
	paymentID, err := strconv.ParseInt(strings.TrimSpace(data), 10, 64)
	if err != nil {
		a.logger.WithField("data", data).Warn("Invalid payment id in callback")
		return "Error: invalid payment id."
	}
	req := app.VerifyRequest{PaymentID: paymentID, AdminID: a.adminUserID, Approved: approved}
	if !approved {
		req.Reason = buttonRejectReason
	}
	return a.verifyReply(ctx, req)
}

// VerifyPayment handles /verify_payment <PaymentID>.
func (a *AdminCommands) VerifyPayment(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /verify_payment <PaymentID>"
	}
	paymentID, err := parseID(args[0])
	if err != nil {
		return "Error: payment id must be a positive number."
	}
	return a.verifyReply(ctx, app.VerifyRequest{PaymentID: paymentID, AdminID: a.adminUserID, Approved: true})
}

// RejectPayment handles /reject_payment <PaymentID> <reason...>.
func (a *AdminCommands) RejectPayment(ctx context.Context, args []string) string {
	if len(args) < 2 {
		return "Usage: /reject_payment <PaymentID> <reason>"
	}
	paymentID, err := parseID(args[0])
	if err != nil {
		return "Error: payment id must be a positive number."
	}
	reason := strings.Join(args[1:], " ")
	return a.verifyReply(ctx, app.VerifyRequest{PaymentID: paymentID, AdminID: a.adminUserID, Reason: reason})
}

func (a *AdminCommands) verifyReply(ctx context.Context, req app.VerifyRequest) string {
	if err := a.payments.Verify(ctx, req); err != nil {
		return app.UserMessage(err, a.debug)
	}
	if req.Approved {
		return fmt.Sprintf("Payment #%d approved.", req.PaymentID)
	}
	return fmt.Sprintf("Payment #%d rejected.", req.PaymentID)
}

// ApproveContract handles /approve_contract <ContractID>.
func (a *AdminCommands) ApproveContract(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /approve_contract <ContractID>"
	}
	contractID, err := parseID(args[0])
	if err != nil {
		return "Error: contract id must be a positive number."
	}
	if err := a.contracts.Approve(ctx, contractID, a.adminUserID); err != nil {
		return app.UserMessage(err, a.debug)
	}
	return fmt.Sprintf("Contract #%d approved.", contractID)
}

// Schedule handles /schedule <ContractID> <MonthlyAmount> <Months>.
func (a *AdminCommands) Schedule(ctx context.Context, args []string) string {
	if len(args) != 3 {
		return "Usage: /schedule <ContractID> <MonthlyAmount> <Months>"
	}
	contractID, err := parseID(args[0])
	if err != nil {
		return "Error: contract id must be a positive number."
	}
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return "Error: amount must be a number, e.g. 2500.00"
	}
	months, err := strconv.Atoi(args[2])
	if err != nil {
		return "Error: months must be a whole number."
	}

	rows, err := a.schedules.CreateMonthlySchedule(ctx, contractID, amount, months)
	if err != nil {
		return app.UserMessage(err, a.debug)
	}
	first, last := rows[0].DueDate, rows[len(rows)-1].DueDate
	return fmt.Sprintf("Created %d monthly payments for contract #%d, due %s to %s.",
		len(rows), contractID, first.Format("2006-01-02"), last.Format("2006-01-02"))
}

// Refund handles /refund <BookingID> <Amount> <reason...>.
func (a *AdminCommands) Refund(ctx context.Context, args []string) string {
	if len(args) < 3 {
		return "Usage: /refund <BookingID> <Amount> <reason>"
	}
	bookingID, err := parseID(args[0])
	if err != nil {
		return "Error: booking id must be a positive number."
	}
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return "Error: amount must be a number, e.g. 500.00"
	}

	p, err := a.refunds.CreateRefund(ctx, app.RefundRequest{BookingID: bookingID, Amount: amount, Reason: strings.Join(args[2:], " ")})
	if err != nil {
		return app.UserMessage(err, a.debug)
	}
	return fmt.Sprintf("Refund #%d of %s THB created for booking #%d.", p.ID, p.Amount.StringFixed(2), bookingID)
}

func (a *AdminCommands) Help() string {
	var helpText strings.Builder
	helpText.WriteString("Admin commands:\n\n")
	helpText.WriteString("/pending_payments\n - List payments waiting for review with approve/reject buttons.\n\n")
	helpText.WriteString("/verify_payment <PaymentID>\n - Approve a payment.\n\n")
	helpText.WriteString("/reject_payment <PaymentID> <reason>\n - Reject a payment with a reason shown to the tenant.\n\n")
	helpText.WriteString("/approve_contract <ContractID>\n - Activate a contract waiting for signature.\n\n")
	helpText.WriteString("/schedule <ContractID> <MonthlyAmount> <Months>\n - Create the monthly payment schedule of a contract.\n\n")
	helpText.WriteString("/refund <BookingID> <Amount> <reason>\n - Issue a refund to the tenant of a booking.\n\n")
	helpText.WriteString("/help\n - Show this message.")
	return helpText.String()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("id must be positive")
	}
	return id, nil
}
