package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/armada-rental/rental-service/internal/api/dto"
	"github.com/armada-rental/rental-service/internal/service"
	apperrors "github.com/armada-rental/rental-service/pkg/util/errorutil"
)

// AdminHandler exposes Admin-only user management.
type AdminHandler struct {
	roles *service.RoleService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(roles *service.RoleService) *AdminHandler {
	return &AdminHandler{roles: roles}
}

// AssignRole PUT /admin/users/:id/role.
func (h *AdminHandler) AssignRole(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AssignRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.roles.AssignRole(c.UserContext(), actor, c.Params("id"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}
