package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/armada-rental/rental-service/internal/config"
	"github.com/armada-rental/rental-service/internal/domain"
	"github.com/armada-rental/rental-service/internal/events"
	"github.com/armada-rental/rental-service/internal/mocks"
	"github.com/armada-rental/rental-service/internal/repository"
	apperrors "github.com/armada-rental/rental-service/pkg/util/errorutil"
)

var (
	bookingNow   = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	customerUser = &domain.User{ID: "u-cust", Role: domain.RoleCustomer}
	otherUser    = &domain.User{ID: "u-other", Role: domain.RoleCustomer}
	tripsUser    = &domain.User{ID: "u-trips", Role: domain.RoleStaffTrips}
	driverUser   = &domain.User{ID: "u-driver", Role: domain.RoleDriverMitra}
)

type bookingFixture struct {
	repo      *mocks.MockBookingRepository
	svc       *BookingService
	published []events.Event
}

func newBookingFixture(t *testing.T) *bookingFixture {
	ctrl := gomock.NewController(t)
	f := &bookingFixture{repo: mocks.NewMockBookingRepository(ctrl)}
	dispatcher := events.NewInMemoryDispatcher(nil)
	dispatcher.SubscribeAll(func(_ context.Context, e events.Event) error {
		f.published = append(f.published, e)
		return nil
	})
	f.svc = NewBookingService(BookingDependencies{
		BookingRepo: f.repo,
		Dispatcher:  dispatcher,
		Tariff:      config.BookingConfig{DailyRate: 350000, DriverDailyFee: 150000},
	})
	f.svc.now = func() time.Time { return bookingNow }
	return f
}

func pendingBooking() *domain.Booking {
	return &domain.Booking{
		ID:            "b-1",
		Code:          "BK-1",
		UserID:        customerUser.ID,
		VehicleID:     "avanza-01",
		StartAt:       bookingNow.Add(24 * time.Hour),
		EndAt:         bookingNow.Add(72 * time.Hour),
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusUnpaid,
	}
}

func TestCreateBookingPricesAndPublishes(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	start := bookingNow.Add(24 * time.Hour)
	end := start.Add(50 * time.Hour)

	f.repo.EXPECT().HasOverlap(ctx, "avanza-01", start, end, "").Return(false, nil)
	f.repo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, b *domain.Booking) error {
		b.ID = "b-new"
		return nil
	})

	booking, err := f.svc.CreateBooking(ctx, customerUser, BookingCreateInput{
		VehicleID:  " avanza-01 ",
		StartAt:    start,
		EndAt:      end,
		WithDriver: true,
	})
	require.NoError(t, err)
	assert.Equal(t, customerUser.ID, booking.UserID)
	assert.Equal(t, int64(3*350000+3*150000), booking.TotalAmount)
	assert.Equal(t, domain.BookingStatusPending, booking.Status)
	assert.Regexp(t, `^BK-[0-9A-F]{8}$`, booking.Code)
	require.Len(t, f.published, 1)
	assert.Equal(t, events.EventBookingCreated, f.published[0].Type)
	assert.Equal(t, "b-new", f.published[0].Subject)
}

func TestCreateBookingRejects(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	start := bookingNow.Add(time.Hour)
	otherID := otherUser.ID

	_, err := f.svc.CreateBooking(ctx, customerUser, BookingCreateInput{VehicleID: "v", StartAt: start, EndAt: start})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(err))

	_, err = f.svc.CreateBooking(ctx, customerUser, BookingCreateInput{VehicleID: "v", StartAt: bookingNow.Add(-time.Hour), EndAt: start})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(err))

	_, err = f.svc.CreateBooking(ctx, customerUser, BookingCreateInput{StartAt: start, EndAt: start.Add(time.Hour)})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(err))

	_, err = f.svc.CreateBooking(ctx, customerUser, BookingCreateInput{VehicleID: "v", StartAt: start, EndAt: start.Add(time.Hour), UserID: &otherID})
	assert.Equal(t, "FORBIDDEN", errorCode(err))

	f.repo.EXPECT().HasOverlap(ctx, "v", start, start.Add(time.Hour), "").Return(true, nil)
	_, err = f.svc.CreateBooking(ctx, customerUser, BookingCreateInput{VehicleID: "v", StartAt: start, EndAt: start.Add(time.Hour)})
	assert.Equal(t, "CONFLICT", errorCode(err))
	assert.Empty(t, f.published)
}

func TestCreateBookingRateQuotes(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	start := bookingNow.Add(24 * time.Hour)
	end := start.Add(48 * time.Hour)
	free, fee, negative := int64(0), int64(100000), int64(-1)

	_, err := f.svc.CreateBooking(ctx, customerUser, BookingCreateInput{VehicleID: "v", StartAt: start, EndAt: end, DailyRate: &free})
	assert.Equal(t, "FORBIDDEN", errorCode(err))

	_, err = f.svc.CreateBooking(ctx, tripsUser, BookingCreateInput{VehicleID: "v", StartAt: start, EndAt: end, DailyRate: &negative})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(err))

	f.repo.EXPECT().HasOverlap(ctx, "v", start, end, "").Return(false, nil)
	f.repo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	b, err := f.svc.CreateBooking(ctx, tripsUser, BookingCreateInput{
		VehicleID: "v", StartAt: start, EndAt: end, WithDriver: true,
		DailyRate: &free, DriverDailyFee: &fee,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2*100000), b.TotalAmount)
}

func TestCreateBookingConcurrentOverlapIsConflict(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	start := bookingNow.Add(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	// Another request inserted the same slot after HasOverlap ran.
	f.repo.EXPECT().HasOverlap(ctx, "avanza-01", start, end, "").Return(false, nil)
	f.repo.EXPECT().Create(ctx, gomock.Any()).Return(fmt.Errorf("%w (bookings_vehicle_no_overlap)", repository.ErrVehicleOverlap))

	_, err := f.svc.CreateBooking(ctx, customerUser, BookingCreateInput{VehicleID: "avanza-01", StartAt: start, EndAt: end})
	assert.Equal(t, "CONFLICT", errorCode(err))
	assert.Equal(t, "avanza-01", apperrors.ToDomainError(err).Details["vehicle_id"])
	assert.Empty(t, f.published)

	confirmed := domain.BookingStatusConfirmed
	f.repo.EXPECT().GetByID(ctx, "b-1").Return(pendingBooking(), nil)
	f.repo.EXPECT().Update(ctx, gomock.Any()).Return(repository.ErrVehicleOverlap)
	_, err = f.svc.UpdateBooking(ctx, tripsUser, "b-1", BookingUpdateInput{Status: &confirmed})
	assert.Equal(t, "CONFLICT", errorCode(err))
	assert.Empty(t, f.published)
}

func TestStaffBooksForCustomer(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	start := bookingNow.Add(time.Hour)
	custID := customerUser.ID

	f.repo.EXPECT().HasOverlap(ctx, "v", start, start.Add(time.Hour), "").Return(false, nil)
	f.repo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	booking, err := f.svc.CreateBooking(ctx, tripsUser, BookingCreateInput{VehicleID: "v", StartAt: start, EndAt: start.Add(time.Hour), UserID: &custID})
	require.NoError(t, err)
	assert.Equal(t, custID, booking.UserID)
	assert.Equal(t, tripsUser.ID, f.published[0].Actor.UserID)
}

func TestListBookingsScopesByRole(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	otherID := otherUser.ID

	f.repo.EXPECT().List(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, filter repository.BookingFilter) ([]domain.Booking, error) {
		require.NotNil(t, filter.UserID)
		assert.Equal(t, customerUser.ID, *filter.UserID)
		assert.Equal(t, 20, filter.Limit)
		assert.Equal(t, 20, filter.Offset)
		assert.Equal(t, repository.OrderByStartAt, filter.OrderBy)
		assert.False(t, filter.Ascending)
		return nil, nil
	})
	_, err := f.svc.ListBookings(ctx, customerUser, BookingListFilter{UserID: &otherID, Page: 2, OrderBy: "start_at", Descending: true})
	require.NoError(t, err)

	f.repo.EXPECT().List(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, filter repository.BookingFilter) ([]domain.Booking, error) {
		assert.Nil(t, filter.UserID)
		require.NotNil(t, filter.DriverID)
		assert.Equal(t, driverUser.ID, *filter.DriverID)
		return nil, nil
	})
	_, err = f.svc.ListBookings(ctx, driverUser, BookingListFilter{})
	require.NoError(t, err)

	f.repo.EXPECT().List(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, filter repository.BookingFilter) ([]domain.Booking, error) {
		require.NotNil(t, filter.UserID)
		assert.Equal(t, otherID, *filter.UserID)
		assert.Equal(t, maxPageSize, filter.Limit)
		return nil, nil
	})
	_, err = f.svc.ListBookings(ctx, tripsUser, BookingListFilter{UserID: &otherID, PageSize: 1000})
	require.NoError(t, err)

	_, err = f.svc.ListBookings(ctx, tripsUser, BookingListFilter{OrderBy: "password"})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(err))
}

func TestGetBookingHidesOthers(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	f.repo.EXPECT().GetByID(ctx, "b-1").Return(pendingBooking(), nil).Times(2)
	_, err := f.svc.GetBooking(ctx, otherUser, "b-1")
	assert.Equal(t, "NOT_FOUND", errorCode(err))

	b, err := f.svc.GetBooking(ctx, tripsUser, "b-1")
	require.NoError(t, err)
	assert.Equal(t, "b-1", b.ID)
}

func TestUpdateBookingTransitions(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	confirmed := domain.BookingStatusConfirmed
	cancelled := domain.BookingStatusCancelled
	completed := domain.BookingStatusCompleted
	paid := domain.PaymentStatusPaid

	f.repo.EXPECT().GetByID(ctx, "b-1").Return(pendingBooking(), nil)
	_, err := f.svc.UpdateBooking(ctx, customerUser, "b-1", BookingUpdateInput{Status: &confirmed})
	assert.Equal(t, "FORBIDDEN", errorCode(err))

	f.repo.EXPECT().GetByID(ctx, "b-1").Return(pendingBooking(), nil)
	_, err = f.svc.UpdateBooking(ctx, customerUser, "b-1", BookingUpdateInput{PaymentStatus: &paid})
	assert.Equal(t, "FORBIDDEN", errorCode(err))

	f.repo.EXPECT().GetByID(ctx, "b-1").Return(pendingBooking(), nil)
	_, err = f.svc.UpdateBooking(ctx, tripsUser, "b-1", BookingUpdateInput{Status: &completed})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(err))

	f.repo.EXPECT().GetByID(ctx, "b-1").Return(pendingBooking(), nil)
	f.repo.EXPECT().Update(ctx, gomock.Any()).Return(nil)
	b, err := f.svc.UpdateBooking(ctx, tripsUser, "b-1", BookingUpdateInput{Status: &confirmed, PaymentStatus: &paid})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
	assert.Equal(t, domain.PaymentStatusPaid, b.PaymentStatus)

	f.repo.EXPECT().GetByID(ctx, "b-1").Return(pendingBooking(), nil)
	f.repo.EXPECT().Update(ctx, gomock.Any()).Return(nil)
	b, err = f.svc.UpdateBooking(ctx, customerUser, "b-1", BookingUpdateInput{Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, b.Status)

	require.Len(t, f.published, 2)
	payload := f.published[0].Payload.(events.BookingStatusChangedPayload)
	assert.Equal(t, domain.BookingStatusPending, payload.OldStatus)
	assert.Equal(t, domain.BookingStatusConfirmed, payload.NewStatus)

	notes := "child seat please"
	f.repo.EXPECT().GetByID(ctx, "b-1").Return(pendingBooking(), nil)
	f.repo.EXPECT().Update(ctx, gomock.Any()).Return(nil)
	b, err = f.svc.UpdateBooking(ctx, customerUser, "b-1", BookingUpdateInput{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, b.Notes)
	assert.Len(t, f.published, 2)
}

func TestDeleteBooking(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	confirmed := pendingBooking()
	confirmed.Status = domain.BookingStatusConfirmed
	f.repo.EXPECT().GetByID(ctx, "b-1").Return(confirmed, nil)
	err := f.svc.DeleteBooking(ctx, customerUser, "b-1")
	assert.Equal(t, "FORBIDDEN", errorCode(err))

	f.repo.EXPECT().GetByID(ctx, "b-1").Return(pendingBooking(), nil)
	f.repo.EXPECT().Delete(ctx, "b-1").Return(nil)
	require.NoError(t, f.svc.DeleteBooking(ctx, customerUser, "b-1"))
	require.Len(t, f.published, 1)
	assert.Equal(t, events.EventBookingDeleted, f.published[0].Type)
}
