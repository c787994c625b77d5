package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/armada-rental/rental-service/internal/domain"
)

// ErrVehicleOverlap is returned when the bookings_vehicle_no_overlap constraint
// rejects a write: another active booking holds the vehicle for that period.
var ErrVehicleOverlap = errors.New("vehicle already booked for this period")

// BookingOrder is a sortable bookings column.
type BookingOrder string

const (
	OrderByCreatedAt BookingOrder = "created_at"
	OrderByUpdatedAt BookingOrder = "updated_at"
	OrderByStartAt   BookingOrder = "start_at"
	OrderByTotal     BookingOrder = "total_amount"
)

// ParseBookingOrder validates an order column name.
func ParseBookingOrder(raw string) (BookingOrder, bool) {
	switch BookingOrder(strings.ToLower(strings.TrimSpace(raw))) {
	case OrderByCreatedAt:
		return OrderByCreatedAt, true
	case OrderByUpdatedAt:
		return OrderByUpdatedAt, true
	case OrderByStartAt:
		return OrderByStartAt, true
	case OrderByTotal:
		return OrderByTotal, true
	}
	return "", false
}

// BookingFilter captures equality filters and ordering for listing.
type BookingFilter struct {
	UserID          *string
	VehicleID       *string
	DriverID        *string
	Statuses        []domain.BookingStatus
	PaymentStatuses []domain.PaymentStatus
	StartFrom       *time.Time
	StartTo         *time.Time
	OrderBy         BookingOrder
	Ascending       bool
	Limit           int
	Offset          int
}

// BookingRepository encapsulates booking persistence.
type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	Update(ctx context.Context, booking *domain.Booking) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	List(ctx context.Context, filter BookingFilter) ([]domain.Booking, error)
	HasOverlap(ctx context.Context, vehicleID string, start, end time.Time, excludeID string) (bool, error)
}

type bookingRepository struct {
	pool *pgxpool.Pool
}

// NewBookingRepository instantiates repository.
func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &bookingRepository{pool: pool}
}

const bookingColumns = `id, code, user_id, vehicle_id, driver_id, pickup_address, dropoff_address,
               start_at, end_at, with_driver, total_amount, status, payment_status, notes, created_at, updated_at`

func (r *bookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	const query = `
        INSERT INTO bookings (code, user_id, vehicle_id, driver_id, pickup_address, dropoff_address,
            start_at, end_at, with_driver, total_amount, status, payment_status, notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		booking.Code,
		booking.UserID,
		booking.VehicleID,
		booking.DriverID,
		booking.PickupAddress,
		booking.DropoffAddress,
		booking.StartAt,
		booking.EndAt,
		booking.WithDriver,
		booking.TotalAmount,
		booking.Status,
		booking.PaymentStatus,
		booking.Notes,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	return overlapError(err)
}

func (r *bookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	const query = `
        UPDATE bookings SET driver_id=$1, pickup_address=$2, dropoff_address=$3, start_at=$4, end_at=$5,
            with_driver=$6, total_amount=$7, status=$8, payment_status=$9, notes=$10, updated_at=NOW()
        WHERE id=$11
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		booking.DriverID,
		booking.PickupAddress,
		booking.DropoffAddress,
		booking.StartAt,
		booking.EndAt,
		booking.WithDriver,
		booking.TotalAmount,
		booking.Status,
		booking.PaymentStatus,
		booking.Notes,
		booking.ID,
	).Scan(&booking.UpdatedAt)
	return overlapError(err)
}

// overlapError translates an exclusion violation into ErrVehicleOverlap.
func overlapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ExclusionViolation {
		return fmt.Errorf("%w (%s)", ErrVehicleOverlap, pgErr.ConstraintName)
	}
	return err
}

func (r *bookingRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bookings, err := scanBookings(rows)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &bookings[0], nil
}

func (r *bookingRepository) HasOverlap(ctx context.Context, vehicleID string, start, end time.Time, excludeID string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM bookings
            WHERE vehicle_id=$1 AND start_at < $3 AND end_at > $2
              AND status IN ('PENDING','CONFIRMED','ONGOING')
              AND ($4 = '' OR id::text <> $4)
        )`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, vehicleID, start, end, excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *bookingRepository) List(ctx context.Context, filter BookingFilter) ([]domain.Booking, error) {
	query, args := buildBookingQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func buildBookingQuery(filter BookingFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.VehicleID != nil {
		args = append(args, *filter.VehicleID)
		clauses = append(clauses, fmt.Sprintf("vehicle_id=$%d", len(args)))
	}
	if filter.DriverID != nil {
		args = append(args, *filter.DriverID)
		clauses = append(clauses, fmt.Sprintf("driver_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.PaymentStatuses) > 0 {
		placeholders := make([]string, len(filter.PaymentStatuses))
		for i, ps := range filter.PaymentStatuses {
			args = append(args, ps)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("payment_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.StartFrom != nil {
		args = append(args, *filter.StartFrom)
		clauses = append(clauses, fmt.Sprintf("start_at >= $%d", len(args)))
	}
	if filter.StartTo != nil {
		args = append(args, *filter.StartTo)
		clauses = append(clauses, fmt.Sprintf("start_at <= $%d", len(args)))
	}

	order := filter.OrderBy
	if _, ok := ParseBookingOrder(string(order)); !ok {
		order = OrderByCreatedAt
	}
	direction := "DESC"
	if filter.Ascending {
		direction = "ASC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE %s ORDER BY %s %s, id LIMIT %d OFFSET %d`,
		bookingColumns, strings.Join(clauses, " AND "), order, direction, limit, offset)
	return query, args
}

func scanBookings(rows pgx.Rows) ([]domain.Booking, error) {
	var result []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID,
			&b.Code,
			&b.UserID,
			&b.VehicleID,
			&b.DriverID,
			&b.PickupAddress,
			&b.DropoffAddress,
			&b.StartAt,
			&b.EndAt,
			&b.WithDriver,
			&b.TotalAmount,
			&b.Status,
			&b.PaymentStatus,
			&b.Notes,
			&b.CreatedAt,
			&b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}
