package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/armada-rental/rental-service/internal/config"
	"github.com/armada-rental/rental-service/internal/domain"
	"github.com/armada-rental/rental-service/internal/events"
	"github.com/armada-rental/rental-service/internal/repository"
	apperrors "github.com/armada-rental/rental-service/pkg/util/errorutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// BookingService coordinates booking workflows.
type BookingService struct {
	bookings   repository.BookingRepository
	dispatcher events.Dispatcher
	tariff     config.BookingConfig
	logger     *zap.Logger
	now        func() time.Time
}

// BookingDependencies bundles requirements for the booking service.
type BookingDependencies struct {
	BookingRepo repository.BookingRepository
	Dispatcher  events.Dispatcher
	// Tariff prices bookings whose rates were not quoted by staff.
	Tariff config.BookingConfig
	Logger *zap.Logger
}

// BookingCreateInput describes a booking request.
type BookingCreateInput struct {
	VehicleID      string
	PickupAddress  string
	DropoffAddress string
	StartAt        time.Time
	EndAt          time.Time
	WithDriver     bool
	// DailyRate and DriverDailyFee override the tariff; staff only.
	DailyRate      *int64
	DriverDailyFee *int64
	Notes          string
	// UserID books on behalf of another user; staff only.
	UserID *string
}

// BookingUpdateInput lists booking changes. Nil fields are left untouched.
type BookingUpdateInput struct {
	Status        *domain.BookingStatus
	PaymentStatus *domain.PaymentStatus
	DriverID      *string
	Notes         *string
}

// BookingListFilter describes listing filters.
type BookingListFilter struct {
	UserID          *string
	VehicleID       *string
	Statuses        []domain.BookingStatus
	PaymentStatuses []domain.PaymentStatus
	OrderBy         string
	Descending      bool
	Page            int
	PageSize        int
}

// NewBookingService constructs the service.
func NewBookingService(deps BookingDependencies) *BookingService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		bookings:   deps.BookingRepo,
		dispatcher: deps.Dispatcher,
		tariff:     deps.Tariff,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateBooking reserves a vehicle for the actor.
func (s *BookingService) CreateBooking(ctx context.Context, actor *domain.User, input BookingCreateInput) (*domain.Booking, error) {
	ownerID := actor.ID
	if input.UserID != nil && *input.UserID != actor.ID {
		if !actor.Role.IsStaff() {
			return nil, apperrors.NewForbidden("only staff can book for another user")
		}
		ownerID = *input.UserID
	}

	vehicleID := strings.TrimSpace(input.VehicleID)
	if vehicleID == "" {
		return nil, apperrors.NewValidationError("vehicle_id is required", map[string]any{"field": "vehicle_id"})
	}
	if !input.EndAt.After(input.StartAt) {
		return nil, apperrors.NewValidationError("end_at must be after start_at", map[string]any{"field": "end_at"})
	}
	if input.StartAt.Before(s.now().Add(-time.Minute)) {
		return nil, apperrors.NewValidationError("start_at is in the past", map[string]any{"field": "start_at"})
	}
	dailyRate, driverFee, err := s.rates(actor, input)
	if err != nil {
		return nil, err
	}

	overlap, err := s.bookings.HasOverlap(ctx, vehicleID, input.StartAt, input.EndAt, "")
	if err != nil {
		return nil, err
	}
	if overlap {
		return nil, vehicleTaken(vehicleID)
	}

	booking := &domain.Booking{
		Code:           generateBookingCode(),
		UserID:         ownerID,
		VehicleID:      vehicleID,
		PickupAddress:  strings.TrimSpace(input.PickupAddress),
		DropoffAddress: strings.TrimSpace(input.DropoffAddress),
		StartAt:        input.StartAt.UTC(),
		EndAt:          input.EndAt.UTC(),
		WithDriver:     input.WithDriver,
		Status:         domain.BookingStatusPending,
		PaymentStatus:  domain.PaymentStatusUnpaid,
		Notes:          strings.TrimSpace(input.Notes),
	}
	booking.TotalAmount = price(booking, dailyRate, driverFee)

	// A concurrent request can win between HasOverlap and Create; the
	// exclusion constraint catches it.
	if err := s.bookings.Create(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrVehicleOverlap) {
			return nil, vehicleTaken(vehicleID)
		}
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventBookingCreated,
		Subject: booking.ID,
		Actor:   actorOf(actor),
		Payload: events.BookingCreatedPayload{
			Code:        booking.Code,
			UserID:      booking.UserID,
			VehicleID:   booking.VehicleID,
			StartAt:     booking.StartAt,
			EndAt:       booking.EndAt,
			WithDriver:  booking.WithDriver,
			TotalAmount: booking.TotalAmount,
		},
	})
	return booking, nil
}

// ListBookings returns bookings visible to the actor. Non-staff callers only see their own.
func (s *BookingService) ListBookings(ctx context.Context, actor *domain.User, filter BookingListFilter) ([]domain.Booking, error) {
	repoFilter := repository.BookingFilter{
		UserID:          filter.UserID,
		VehicleID:       filter.VehicleID,
		Statuses:        filter.Statuses,
		PaymentStatuses: filter.PaymentStatuses,
		Ascending:       !filter.Descending,
	}
	if !actor.Role.IsStaff() {
		if actor.Role.IsDriver() {
			repoFilter.UserID = nil
			repoFilter.DriverID = &actor.ID
		} else {
			repoFilter.UserID = &actor.ID
		}
	}
	if filter.OrderBy != "" {
		order, ok := repository.ParseBookingOrder(filter.OrderBy)
		if !ok {
			return nil, apperrors.NewValidationError("unsupported order column", map[string]any{"order": filter.OrderBy})
		}
		repoFilter.OrderBy = order
	}
	repoFilter.Limit, repoFilter.Offset = paginate(filter.Page, filter.PageSize)
	return s.bookings.List(ctx, repoFilter)
}

// GetBooking loads a booking the actor may see.
func (s *BookingService) GetBooking(ctx context.Context, actor *domain.User, id string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(actor, booking) {
		return nil, apperrors.NewNotFound("booking", map[string]any{"id": id})
	}
	return booking, nil
}

// UpdateBooking applies status, payment, driver or notes changes.
func (s *BookingService) UpdateBooking(ctx context.Context, actor *domain.User, id string, input BookingUpdateInput) (*domain.Booking, error) {
	booking, err := s.GetBooking(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	staff := actor.Role.IsStaff()
	oldStatus, oldPayment := booking.Status, booking.PaymentStatus

	if input.Status != nil && *input.Status != booking.Status {
		next := *input.Status
		if !staff && next != domain.BookingStatusCancelled {
			return nil, apperrors.NewForbidden("customers can only cancel bookings")
		}
		if !isValidTransition(booking.Status, next) {
			return nil, apperrors.NewValidationError("invalid status transition", map[string]any{
				"from": booking.Status,
				"to":   next,
			})
		}
		booking.Status = next
	}
	if input.PaymentStatus != nil && *input.PaymentStatus != booking.PaymentStatus {
		if !staff {
			return nil, apperrors.NewForbidden("payment status is managed by staff")
		}
		if !validPaymentStatus(*input.PaymentStatus) {
			return nil, apperrors.NewValidationError("unknown payment status", map[string]any{"payment_status": *input.PaymentStatus})
		}
		booking.PaymentStatus = *input.PaymentStatus
	}
	if input.DriverID != nil {
		if !staff {
			return nil, apperrors.NewForbidden("drivers are assigned by staff")
		}
		if *input.DriverID == "" {
			booking.DriverID = nil
		} else {
			driverID := *input.DriverID
			booking.DriverID = &driverID
		}
	}
	if input.Notes != nil {
		booking.Notes = strings.TrimSpace(*input.Notes)
	}

	if err := s.bookings.Update(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrVehicleOverlap) {
			return nil, vehicleTaken(booking.VehicleID)
		}
		return nil, err
	}
	if booking.Status != oldStatus || booking.PaymentStatus != oldPayment {
		s.publishEvent(ctx, events.Event{
			Type:    events.EventBookingStatusChanged,
			Subject: booking.ID,
			Actor:   actorOf(actor),
			Payload: events.BookingStatusChangedPayload{
				Code:             booking.Code,
				OldStatus:        oldStatus,
				NewStatus:        booking.Status,
				OldPaymentStatus: oldPayment,
				NewPaymentStatus: booking.PaymentStatus,
			},
		})
	}
	return booking, nil
}

// DeleteBooking removes a booking. Customers may only delete their own pending bookings.
func (s *BookingService) DeleteBooking(ctx context.Context, actor *domain.User, id string) error {
	booking, err := s.GetBooking(ctx, actor, id)
	if err != nil {
		return err
	}
	if !actor.Role.IsStaff() && booking.Status != domain.BookingStatusPending {
		return apperrors.NewForbidden("only pending bookings can be deleted")
	}
	if err := s.bookings.Delete(ctx, id); err != nil {
		return err
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventBookingDeleted,
		Subject: booking.ID,
		Actor:   actorOf(actor),
		Payload: events.BookingDeletedPayload{Code: booking.Code},
	})
	return nil
}

// rates returns the tariff unless a staff member quoted their own price.
func (s *BookingService) rates(actor *domain.User, input BookingCreateInput) (daily, driver int64, err error) {
	daily, driver = s.tariff.DailyRate, s.tariff.DriverDailyFee
	if input.DailyRate == nil && input.DriverDailyFee == nil {
		return daily, driver, nil
	}
	if !actor.Role.IsStaff() {
		return 0, 0, apperrors.NewForbidden("rates are set by staff")
	}
	if input.DailyRate != nil {
		daily = *input.DailyRate
	}
	if input.DriverDailyFee != nil {
		driver = *input.DriverDailyFee
	}
	if daily < 0 || driver < 0 {
		return 0, 0, apperrors.NewValidationError("rates cannot be negative", nil)
	}
	return daily, driver, nil
}

func (s *BookingService) publishEvent(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, s.logger, event)
}

var bookingTransitions = map[domain.BookingStatus][]domain.BookingStatus{
	domain.BookingStatusPending:   {domain.BookingStatusConfirmed, domain.BookingStatusCancelled},
	domain.BookingStatusConfirmed: {domain.BookingStatusOngoing, domain.BookingStatusCancelled},
	domain.BookingStatusOngoing:   {domain.BookingStatusCompleted},
}

func vehicleTaken(vehicleID string) error {
	return apperrors.NewConflict("vehicle already booked for this period", map[string]any{"vehicle_id": vehicleID})
}

func isValidTransition(from, to domain.BookingStatus) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func validPaymentStatus(p domain.PaymentStatus) bool {
	switch p {
	case domain.PaymentStatusUnpaid, domain.PaymentStatusPending, domain.PaymentStatusPaid, domain.PaymentStatusRefunded:
		return true
	}
	return false
}

func canAccess(actor *domain.User, booking *domain.Booking) bool {
	switch {
	case actor.Role.IsStaff():
		return true
	case booking.UserID == actor.ID:
		return true
	case booking.DriverID != nil && *booking.DriverID == actor.ID:
		return true
	}
	return false
}

func price(b *domain.Booking, dailyRate, driverFee int64) int64 {
	days := int64(b.Days())
	total := days * dailyRate
	if b.WithDriver {
		total += days * driverFee
	}
	return total
}

func paginate(page, size int) (limit, offset int) {
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return size, (page - 1) * size
}

func actorOf(user *domain.User) events.Actor {
	return events.Actor{UserID: user.ID, Role: user.Role}
}

func generateBookingCode() string {
	return "BK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
