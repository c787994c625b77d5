package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/armada-rental/rental-service/internal/api/dto"
	"github.com/armada-rental/rental-service/internal/service"
	apperrors "github.com/armada-rental/rental-service/pkg/util/errorutil"
)

// MessagesHandler forwards staff messages to the WhatsApp/SMS gateway.
type MessagesHandler struct {
	messaging *service.MessagingService
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(messaging *service.MessagingService) *MessagesHandler {
	return &MessagesHandler{messaging: messaging}
}

// Send POST /messages/send.
func (h *MessagesHandler) Send(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	receipt, err := h.messaging.Send(c.UserContext(), actor, req.Target, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": receipt})
}
