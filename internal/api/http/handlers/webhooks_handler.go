package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/armada-rental/rental-service/internal/api/dto"
	"github.com/armada-rental/rental-service/internal/service"
	apperrors "github.com/armada-rental/rental-service/pkg/util/errorutil"
)

// WebhooksHandler lets staff push custom events to the configured webhooks.
type WebhooksHandler struct {
	notifications *service.NotificationService
}

// NewWebhooksHandler constructs handler.
func NewWebhooksHandler(notifications *service.NotificationService) *WebhooksHandler {
	return &WebhooksHandler{notifications: notifications}
}

// Dispatch POST /webhooks/dispatch.
func (h *WebhooksHandler) Dispatch(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.DispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	event, err := h.notifications.DispatchCustom(c.UserContext(), actor, req.Event, req.Subject, req.Payload)
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{
		"id":        event.ID,
		"event":     event.Type,
		"timestamp": event.Timestamp,
	}})
}
