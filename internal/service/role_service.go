package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/armada-rental/rental-service/internal/domain"
	"github.com/armada-rental/rental-service/internal/events"
	"github.com/armada-rental/rental-service/internal/repository"
	apperrors "github.com/armada-rental/rental-service/pkg/util/errorutil"
)

// RoleService assigns roles to accounts.
type RoleService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewRoleService constructs the service.
func NewRoleService(users repository.UserRepository, dispatcher events.Dispatcher, logger *zap.Logger) *RoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{users: users, dispatcher: dispatcher, logger: logger}
}

// AssignRole sets the role of userID. Admins cannot change their own role.
func (s *RoleService) AssignRole(ctx context.Context, actor *domain.User, userID string, raw string) (*domain.User, error) {
	role, ok := domain.ParseRole(raw)
	if !ok {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": raw})
	}
	if actor.ID == userID {
		return nil, apperrors.NewForbidden("cannot change your own role")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}
	old := user.Role
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}
	user.Role = role

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:    events.EventUserRoleAssigned,
		Subject: user.ID,
		Actor:   events.Actor{UserID: actor.ID, Role: actor.Role},
		Payload: events.UserRoleAssignedPayload{OldRole: old, NewRole: role},
	})
	s.logger.Info("role assigned",
		zap.String("user_id", user.ID),
		zap.String("old_role", string(old)),
		zap.String("new_role", string(role)),
		zap.String("actor_id", actor.ID))
	return user, nil
}
