package dto

import (
	"time"

	"github.com/armada-rental/rental-service/internal/domain"
)

// CreateBookingRequest payload.
type CreateBookingRequest struct {
	VehicleID      string    `json:"vehicle_id"`
	PickupAddress  string    `json:"pickup_address"`
	DropoffAddress string    `json:"dropoff_address"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
	WithDriver     bool      `json:"with_driver"`
	DailyRate      *int64    `json:"daily_rate,omitempty"`
	DriverDailyFee *int64    `json:"driver_daily_fee,omitempty"`
	Notes          string    `json:"notes"`
	UserID         *string   `json:"user_id"`
}

// UpdateBookingRequest payload. Omitted fields are left untouched.
type UpdateBookingRequest struct {
	Status        *domain.BookingStatus `json:"status"`
	PaymentStatus *domain.PaymentStatus `json:"payment_status"`
	DriverID      *string               `json:"driver_id"`
	Notes         *string               `json:"notes"`
}

// BookingResponse is the public view of a booking.
type BookingResponse struct {
	ID             string               `json:"id"`
	Code           string               `json:"code"`
	UserID         string               `json:"user_id"`
	VehicleID      string               `json:"vehicle_id"`
	DriverID       *string              `json:"driver_id"`
	PickupAddress  string               `json:"pickup_address"`
	DropoffAddress string               `json:"dropoff_address"`
	StartAt        time.Time            `json:"start_at"`
	EndAt          time.Time            `json:"end_at"`
	Days           int                  `json:"days"`
	WithDriver     bool                 `json:"with_driver"`
	TotalAmount    int64                `json:"total_amount"`
	Status         domain.BookingStatus `json:"status"`
	PaymentStatus  domain.PaymentStatus `json:"payment_status"`
	Notes          string               `json:"notes,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// NewBookingResponse maps a domain booking.
func NewBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:             b.ID,
		Code:           b.Code,
		UserID:         b.UserID,
		VehicleID:      b.VehicleID,
		DriverID:       b.DriverID,
		PickupAddress:  b.PickupAddress,
		DropoffAddress: b.DropoffAddress,
		StartAt:        b.StartAt,
		EndAt:          b.EndAt,
		Days:           b.Days(),
		WithDriver:     b.WithDriver,
		TotalAmount:    b.TotalAmount,
		Status:         b.Status,
		PaymentStatus:  b.PaymentStatus,
		Notes:          b.Notes,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}
