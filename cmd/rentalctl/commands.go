package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"agri_rental/internal/app"
	"agri_rental/internal/domain/booking"
	"agri_rental/internal/domain/payment"
	idb "agri_rental/internal/infra/database"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// runtime is what a command needs once the environment is loaded.
type runtime struct {
	db       *sql.DB
	services *app.Services
	debug    bool
}

type opener func(ctx context.Context) (*runtime, error)

func newRootCmd(open opener, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "rentalctl",
		Short:         "Administer agricultural land rentals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.AddCommand(
		migrateCmd(open),
		bookCmd(open),
		cancelBookingCmd(open),
		availabilityCmd(open),
		submitPaymentCmd(open),
		pendingCmd(open),
		verifyPaymentCmd(open),
		rejectPaymentCmd(open),
		approveContractCmd(open),
		documentCmd(open),
		scheduleCmd(open),
		refundCmd(open),
		remindCmd(open),
	)
	return root
}

// withRuntime opens the environment, runs fn and turns service errors into
// the same user-facing text the bot shows.
func withRuntime(cmd *cobra.Command, open opener, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := open(ctx)
	if err != nil {
		return err
	}
	if rt.db != nil {
		defer rt.db.Close()
	}

	if err := fn(ctx, rt); err != nil {
		if app.KindOf(err) == app.KindInternal {
			return fmt.Errorf("%s: %w", app.UserMessage(err, false), err)
		}
		return errors.New(app.UserMessage(err, rt.debug))
	}
	return nil
}

func idArg(name, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", name, s)
	}
	return id, nil
}

func migrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the rental tables, constraints and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				if err := idb.ApplySchema(ctx, rt.db); err != nil {
					return err
				}
				cmd.Println("Schema applied.")
				return nil
			})
		},
	}
}

func dateArgs(from, to string) (time.Time, time.Time, error) {
	f, err := booking.ParseDate(from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("from date must be YYYY-MM-DD, got %q", from)
	}
	t, err := booking.ParseDate(to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("to date must be YYYY-MM-DD, got %q", to)
	}
	return f, t, nil
}

func bookCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book <property-id> <tenant-id> <from> <to>",
		Short: "Book a property for a tenant over an inclusive range of days",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			propertyID, err := idArg("property id", args[0])
			if err != nil {
				return err
			}
			tenantID, err := idArg("tenant id", args[1])
			if err != nil {
				return err
			}
			from, to, err := dateArgs(args[2], args[3])
			if err != nil {
				return err
			}
			ownerID, _ := cmd.Flags().GetInt64("owner-id")
			title, _ := cmd.Flags().GetString("title")
			req := app.AllocateRequest{PropertyID: propertyID, TenantID: tenantID, From: from, To: to, OwnerID: ownerID, PropertyTitle: title}
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				b, err := rt.services.Bookings.Allocate(ctx, req)
				if err != nil {
					return err
				}
				cmd.Printf("Booking #%d created for %s.\n", b.ID, b.Range())
				return nil
			})
		},
	}
	cmd.Flags().Int64("owner-id", 0, "Property owner to notify about the booking")
	cmd.Flags().String("title", "", "Property title shown in the owner notification")
	return cmd
}

func cancelBookingCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-booking <booking-id> <tenant-id>",
		Short: "Cancel a booking whose deposit is still waiting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookingID, err := idArg("booking id", args[0])
			if err != nil {
				return err
			}
			tenantID, err := idArg("tenant id", args[1])
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				if err := rt.services.Bookings.Cancel(ctx, bookingID, tenantID); err != nil {
					return err
				}
				cmd.Printf("Booking #%d cancelled.\n", bookingID)
				return nil
			})
		},
	}
}

func availabilityCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "availability <property-id> <from> <to>",
		Short: "List the booked ranges of a property",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			propertyID, err := idArg("property id", args[0])
			if err != nil {
				return err
			}
			from, to, err := dateArgs(args[1], args[2])
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				ranges, err := rt.services.Bookings.Unavailable(ctx, propertyID, from, to)
				if err != nil {
					return err
				}
				if len(ranges) == 0 {
					cmd.Println("No bookings in this period.")
					return nil
				}
				for _, r := range ranges {
					cmd.Println(r.String())
				}
				return nil
			})
		},
	}
}

func submitPaymentCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit-payment <booking-id> <tenant-id> <amount>",
		Short: "Record a payment made by a tenant for review",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookingID, err := idArg("booking id", args[0])
			if err != nil {
				return err
			}
			tenantID, err := idArg("tenant id", args[1])
			if err != nil {
				return err
			}
			amount, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("amount must be a number, got %q", args[2])
			}
			typ, _ := cmd.Flags().GetString("type")
			ownerID, _ := cmd.Flags().GetInt64("owner-id")
			notes, _ := cmd.Flags().GetString("notes")
			req := app.SubmitRequest{
				BookingID: bookingID,
				TenantID:  tenantID,
				Type:      payment.Type(typ),
				Amount:    amount,
				Notes:     notes,
				OwnerID:   ownerID,
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				p, err := rt.services.Payments.Submit(ctx, req)
				if err != nil {
					return err
				}
				cmd.Printf("Payment #%d of %s submitted for review.\n", p.ID, p.Amount.StringFixed(2))
				return nil
			})
		},
	}
	cmd.Flags().String("type", string(payment.TypeDeposit), "Payment type: deposit, full or monthly")
	cmd.Flags().Int64("owner-id", 0, "Property owner to notify about the payment")
	cmd.Flags().String("notes", "", "Free-text note stored with the payment")
	return cmd
}

func pendingCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List payments waiting for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				list, err := rt.services.Payments.Pending(ctx, limit)
				if err != nil {
					return err
				}
				cmd.Printf("%-8s  %-8s  %-8s  %-8s  %12s\n", "ID", "Booking", "User", "Type", "Amount")
				for _, p := range list {
					cmd.Printf("%-8d  %-8d  %-8d  %-8s  %12s\n", p.ID, p.BookingID, p.UserID, p.Type, p.Amount.StringFixed(2))
				}
				return nil
			})
		},
	}
	cmd.Flags().Int("limit", 50, "Maximum number of payments to list")
	return cmd
}

func verifyPaymentCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-payment <payment-id>...",
		Short: "Approve one or more pending payments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adminID, _ := cmd.Flags().GetInt64("admin-id")
			reqs := make([]app.VerifyRequest, 0, len(args))
			for _, a := range args {
				id, err := idArg("payment id", a)
				if err != nil {
					return err
				}
				reqs = append(reqs, app.VerifyRequest{PaymentID: id, AdminID: adminID, Approved: true})
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				failed := 0
				for _, res := range rt.services.Payments.VerifyBatch(ctx, reqs) {
					if res.Err != nil {
						failed++
						cmd.Printf("Payment #%d: %s\n", res.PaymentID, app.UserMessage(res.Err, rt.debug))
						continue
					}
					cmd.Printf("Payment #%d approved.\n", res.PaymentID)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d payments were not approved", failed, len(reqs))
				}
				return nil
			})
		},
	}
	adminFlag(cmd)
	return cmd
}

func rejectPaymentCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject-payment <payment-id> [reason...]",
		Short: "Reject a pending payment",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adminID, _ := cmd.Flags().GetInt64("admin-id")
			id, err := idArg("payment id", args[0])
			if err != nil {
				return err
			}
			req := app.VerifyRequest{PaymentID: id, AdminID: adminID, Reason: strings.Join(args[1:], " ")}
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				if err := rt.services.Payments.Verify(ctx, req); err != nil {
					return err
				}
				cmd.Printf("Payment #%d rejected.\n", id)
				return nil
			})
		},
	}
	adminFlag(cmd)
	return cmd
}

func approveContractCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve-contract <contract-id>",
		Short: "Activate a contract waiting for signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adminID, _ := cmd.Flags().GetInt64("admin-id")
			id, err := idArg("contract id", args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				if err := rt.services.Contracts.Approve(ctx, id, adminID); err != nil {
					return err
				}
				cmd.Printf("Contract #%d approved.\n", id)
				return nil
			})
		},
	}
	adminFlag(cmd)
	return cmd
}

func documentCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "document <contract-id>",
		Short: "Render the contract document and print its path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg("contract id", args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				path, err := rt.services.Documents.Generate(ctx, id)
				if err != nil {
					return err
				}
				cmd.Println(path)
				return nil
			})
		},
	}
}

func scheduleCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <contract-id> <monthly-amount> <months>",
		Short: "Create the monthly payment schedule of a contract",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg("contract id", args[0])
			if err != nil {
				return err
			}
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("monthly amount must be a number, got %q", args[1])
			}
			months, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("months must be a whole number, got %q", args[2])
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				rows, err := rt.services.Schedules.CreateMonthlySchedule(ctx, id, amount, months)
				if err != nil {
					return err
				}
				for _, r := range rows {
					cmd.Printf("%s  %s\n", r.DueDate.Format("2006-01-02"), r.Amount.StringFixed(2))
				}
				return nil
			})
		},
	}
}

func refundCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "refund <booking-id> <amount> <reason...>",
		Short: "Issue a refund to the tenant of a booking",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg("booking id", args[0])
			if err != nil {
				return err
			}
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("amount must be a number, got %q", args[1])
			}
			req := app.RefundRequest{BookingID: id, Amount: amount, Reason: strings.Join(args[2:], " ")}
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				p, err := rt.services.Refunds.CreateRefund(ctx, req)
				if err != nil {
					return err
				}
				cmd.Printf("Refund #%d of %s created for booking #%d.\n", p.ID, p.Amount.StringFixed(2), id)
				return nil
			})
		},
	}
}

func remindCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Send rent-due reminders now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			days, _ := cmd.Flags().GetInt("days")
			return withRuntime(cmd, open, func(ctx context.Context, rt *runtime) error {
				sent, err := rt.services.Reminders.SendDueReminders(ctx, days)
				if err != nil {
					return err
				}
				cmd.Printf("%d reminders sent.\n", sent)
				return nil
			})
		},
	}
	cmd.Flags().Int("days", 7, "Remind about rent due within this many days")
	return cmd
}

func adminFlag(cmd *cobra.Command) {
	cmd.Flags().Int64("admin-id", 0, "Platform user id of the acting administrator")
	_ = cmd.MarkFlagRequired("admin-id")
}
