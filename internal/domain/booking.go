package domain

import "time"

// BookingStatus enumerates lifecycle states for bookings.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusOngoing   BookingStatus = "ONGOING"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// PaymentStatus enumerates payment states for bookings.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "UNPAID"
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// Booking is a vehicle rental reservation.
type Booking struct {
	ID             string
	Code           string
	UserID         string
	VehicleID      string
	DriverID       *string
	PickupAddress  string
	DropoffAddress string
	StartAt        time.Time
	EndAt          time.Time
	WithDriver     bool
	TotalAmount    int64
	Status         BookingStatus
	PaymentStatus  PaymentStatus
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Active reports whether the booking still holds its vehicle.
func (b *Booking) Active() bool {
	switch b.Status {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusOngoing:
		return true
	default:
		return false
	}
}

// Days returns the number of billable rental days, rounding partial days up.
func (b *Booking) Days() int {
	d := b.EndAt.Sub(b.StartAt)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}
