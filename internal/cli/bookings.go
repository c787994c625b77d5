package cli

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/armada-rental/rental-service/internal/api/dto"
	"github.com/armada-rental/rental-service/internal/domain"
)

func runBookings(ctx context.Context, env *Env, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: bookings list|show|create|cancel|delete", ErrUsage)
	}
	switch args[0] {
	case "list":
		return listBookings(ctx, env, args[1:])
	case "show":
		return showBooking(ctx, env, args[1:])
	case "create":
		return createBooking(ctx, env, args[1:])
	case "cancel":
		return cancelBooking(ctx, env, args[1:])
	case "delete":
		return deleteBooking(ctx, env, args[1:])
	default:
		return fmt.Errorf("%w: unknown bookings subcommand %q", ErrUsage, args[0])
	}
}

func listBookings(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("bookings list", env)
	status := fs.String("status", "", "Comma separated statuses")
	payment := fs.String("payment-status", "", "Comma separated payment statuses")
	vehicle := fs.String("vehicle", "", "Vehicle id")
	order := fs.String("order", "", "created_at|updated_at|start_at|total_amount")
	desc := fs.Bool("desc", false, "Sort descending")
	page := fs.Int("page", 1, "Page number")
	pageSize := fs.Int("page-size", 20, "Page size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := url.Values{}
	for key, v := range map[string]string{"status": *status, "payment_status": *payment, "vehicle_id": *vehicle, "order": *order} {
		if v != "" {
			q.Set(key, v)
		}
	}
	if *desc {
		q.Set("desc", "true")
	}
	q.Set("page", strconv.Itoa(*page))
	q.Set("page_size", strconv.Itoa(*pageSize))

	var out envelope[[]dto.BookingResponse]
	if err := env.API.Call(ctx, http.MethodGet, "/bookings", q, nil, &out); err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
	if err := writef(tw, "CODE\tVEHICLE\tSTART\tDAYS\tSTATUS\tPAYMENT\tTOTAL\tID\n"); err != nil {
		return err
	}
	for _, b := range out.Data {
		if err := writef(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%d\t%s\n",
			b.Code, b.VehicleID, b.StartAt.Format(time.DateTime), b.Days, b.Status, b.PaymentStatus, b.TotalAmount, b.ID); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func showBooking(ctx context.Context, env *Env, args []string) error {
	id, err := bookingID(args)
	if err != nil {
		return err
	}
	var out envelope[dto.BookingResponse]
	if err := env.API.Call(ctx, http.MethodGet, "/bookings/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return fmt.Errorf("get booking: %w", err)
	}
	return printBooking(env, out.Data)
}

// createBooking starts a paid booking, so it insists on a settled session
// rather than the guard's single check.
func createBooking(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("bookings create", env)
	var req dto.CreateBookingRequest
	var start, end, forUser string
	fs.StringVar(&req.VehicleID, "vehicle", "", "Vehicle id")
	fs.StringVar(&req.PickupAddress, "pickup", "", "Pickup address")
	fs.StringVar(&req.DropoffAddress, "dropoff", "", "Drop-off address")
	fs.StringVar(&start, "start", "", "Start time, RFC3339")
	fs.StringVar(&end, "end", "", "End time, RFC3339")
	fs.BoolVar(&req.WithDriver, "with-driver", false, "Book a driver")
	rate := fs.Int64("rate", 0, "Daily rate quote (staff only; default tariff otherwise)")
	driverFee := fs.Int64("driver-fee", 0, "Driver daily fee quote (staff only)")
	fs.StringVar(&req.Notes, "notes", "", "Notes")
	fs.StringVar(&forUser, "for", "", "Book on behalf of a user id (staff only)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var err error
	if req.StartAt, err = time.Parse(time.RFC3339, start); err != nil {
		return fmt.Errorf("%w: -start must be RFC3339", ErrUsage)
	}
	if req.EndAt, err = time.Parse(time.RFC3339, end); err != nil {
		return fmt.Errorf("%w: -end must be RFC3339", ErrUsage)
	}
	if forUser != "" {
		req.UserID = &forUser
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rate":
			req.DailyRate = rate
		case "driver-fee":
			req.DriverDailyFee = driverFee
		}
	})

	if !env.Auth.EnsureSessionReady(ctx) {
		return ErrSessionNotReady
	}
	var out envelope[dto.BookingResponse]
	if err := env.API.Call(ctx, http.MethodPost, "/bookings", nil, req, &out); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return printBooking(env, out.Data)
}

func cancelBooking(ctx context.Context, env *Env, args []string) error {
	id, err := bookingID(args)
	if err != nil {
		return err
	}
	status := domain.BookingStatusCancelled
	var out envelope[dto.BookingResponse]
	if err := env.API.Call(ctx, http.MethodPatch, "/bookings/"+url.PathEscape(id), nil, dto.UpdateBookingRequest{Status: &status}, &out); err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	return writef(env.Out, "booking %s %s\n", out.Data.Code, out.Data.Status)
}

func deleteBooking(ctx context.Context, env *Env, args []string) error {
	id, err := bookingID(args)
	if err != nil {
		return err
	}
	if err := env.API.Call(ctx, http.MethodDelete, "/bookings/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return writef(env.Out, "booking %s deleted\n", id)
}

func bookingID(args []string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("%w: booking id required", ErrUsage)
	}
	return args[0], nil
}

func printBooking(env *Env, b dto.BookingResponse) error {
	tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Code", b.Code},
		{"ID", b.ID},
		{"Vehicle", b.VehicleID},
		{"Pickup", b.PickupAddress},
		{"Drop-off", b.DropoffAddress},
		{"Start", b.StartAt.Format(time.RFC3339)},
		{"End", b.EndAt.Format(time.RFC3339)},
		{"Days", strconv.Itoa(b.Days)},
		{"With driver", strconv.FormatBool(b.WithDriver)},
		{"Total", strconv.FormatInt(b.TotalAmount, 10)},
		{"Status", string(b.Status)},
		{"Payment", string(b.PaymentStatus)},
	}
	for _, r := range rows {
		if err := writef(tw, "%s\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}
