package events

import (
	"regexp"
	"time"

	"github.com/armada-rental/rental-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventBookingCreated       EventType = "booking.created"
	EventBookingStatusChanged EventType = "booking.status_changed"
	EventBookingDeleted       EventType = "booking.deleted"
	EventUserSignedUp         EventType = "user.signed_up"
	EventUserRoleAssigned     EventType = "user.role_assigned"
)

var customTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// ValidCustomType reports whether t is a well-formed dotted name that does not
// collide with a built-in event.
func ValidCustomType(t EventType) bool {
	if !customTypePattern.MatchString(string(t)) {
		return false
	}
	switch t {
	case EventBookingCreated, EventBookingStatusChanged, EventBookingDeleted, EventUserSignedUp, EventUserRoleAssigned:
		return false
	}
	return true
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Subject   string    `json:"subject,omitempty"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// BookingCreatedPayload payload.
type BookingCreatedPayload struct {
	Code        string    `json:"code"`
	UserID      string    `json:"user_id"`
	VehicleID   string    `json:"vehicle_id"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	WithDriver  bool      `json:"with_driver"`
	TotalAmount int64     `json:"total_amount"`
}

// BookingStatusChangedPayload payload.
type BookingStatusChangedPayload struct {
	Code             string               `json:"code"`
	OldStatus        domain.BookingStatus `json:"old_status"`
	NewStatus        domain.BookingStatus `json:"new_status"`
	OldPaymentStatus domain.PaymentStatus `json:"old_payment_status"`
	NewPaymentStatus domain.PaymentStatus `json:"new_payment_status"`
}

// BookingDeletedPayload payload.
type BookingDeletedPayload struct {
	Code string `json:"code"`
}

// UserSignedUpPayload payload.
type UserSignedUpPayload struct {
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  domain.Role `json:"role"`
}

// UserRoleAssignedPayload payload.
type UserRoleAssignedPayload struct {
	OldRole domain.Role `json:"old_role"`
	NewRole domain.Role `json:"new_role"`
}
