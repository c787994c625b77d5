package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/armada-rental/rental-service/internal/api/dto"
	"github.com/armada-rental/rental-service/internal/auth"
	"github.com/armada-rental/rental-service/internal/domain"
	"github.com/armada-rental/rental-service/internal/service"
	apperrors "github.com/armada-rental/rental-service/pkg/util/errorutil"
)

// BookingsHandler manages booking endpoints.
type BookingsHandler struct {
	service *service.BookingService
}

// NewBookingsHandler constructs handler.
func NewBookingsHandler(bookingService *service.BookingService) *BookingsHandler {
	return &BookingsHandler{service: bookingService}
}

// CreateBooking POST /bookings.
func (h *BookingsHandler) CreateBooking(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	booking, err := h.service.CreateBooking(c.UserContext(), user, service.BookingCreateInput{
		VehicleID:      req.VehicleID,
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		StartAt:        req.StartAt,
		EndAt:          req.EndAt,
		WithDriver:     req.WithDriver,
		DailyRate:      req.DailyRate,
		DriverDailyFee: req.DriverDailyFee,
		Notes:          req.Notes,
		UserID:         req.UserID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewBookingResponse(booking)})
}

// ListBookings GET /bookings.
func (h *BookingsHandler) ListBookings(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	filter := parseBookingQuery(c)
	bookings, err := h.service.ListBookings(c.UserContext(), user, filter)
	if err != nil {
		return err
	}
	items := make([]dto.BookingResponse, 0, len(bookings))
	for i := range bookings {
		items = append(items, dto.NewBookingResponse(&bookings[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetBooking GET /bookings/:id.
func (h *BookingsHandler) GetBooking(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	booking, err := h.service.GetBooking(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewBookingResponse(booking)})
}

// UpdateBooking PATCH /bookings/:id.
func (h *BookingsHandler) UpdateBooking(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	booking, err := h.service.UpdateBooking(c.UserContext(), user, c.Params("id"), service.BookingUpdateInput{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		DriverID:      req.DriverID,
		Notes:         req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewBookingResponse(booking)})
}

// DeleteBooking DELETE /bookings/:id.
func (h *BookingsHandler) DeleteBooking(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteBooking(c.UserContext(), user, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseBookingQuery(c *fiber.Ctx) service.BookingListFilter {
	filter := service.BookingListFilter{
		OrderBy:    c.Query("order"),
		Descending: c.QueryBool("desc", false),
		Page:       parseInt(c.Query("page"), 1),
		PageSize:   parseInt(c.Query("page_size"), 20),
	}
	for _, part := range splitList(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.BookingStatus(strings.ToUpper(part)))
	}
	for _, part := range splitList(c.Query("payment_status")) {
		filter.PaymentStatuses = append(filter.PaymentStatuses, domain.PaymentStatus(strings.ToUpper(part)))
	}
	if v := strings.TrimSpace(c.Query("vehicle_id")); v != "" {
		filter.VehicleID = &v
	}
	if v := strings.TrimSpace(c.Query("user_id")); v != "" {
		filter.UserID = &v
	}
	return filter
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("user required")
	}
	return principal.User, nil
}
