package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/armada-rental/rental-service/internal/domain"
	"github.com/armada-rental/rental-service/internal/events"
	"github.com/armada-rental/rental-service/internal/mocks"
)

func TestAssignRole(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	dispatcher := events.NewInMemoryDispatcher(nil)
	var published []events.Event
	dispatcher.Subscribe(events.EventUserRoleAssigned, func(_ context.Context, e events.Event) error {
		published = append(published, e)
		return nil
	})
	svc := NewRoleService(users, dispatcher, nil)
	ctx := context.Background()
	admin := &domain.User{ID: "u-admin", Role: domain.RoleAdmin}

	users.EXPECT().GetByID(ctx, "u-1").Return(&domain.User{ID: "u-1", Role: domain.RoleCustomer}, nil)
	users.EXPECT().UpdateRole(ctx, "u-1", domain.RoleStaffTrips).Return(nil)

	user, err := svc.AssignRole(ctx, admin, "u-1", "staff_trips")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStaffTrips, user.Role)
	require.Len(t, published, 1)
	assert.Equal(t, events.UserRoleAssignedPayload{OldRole: domain.RoleCustomer, NewRole: domain.RoleStaffTrips}, published[0].Payload)

	_, err = svc.AssignRole(ctx, admin, "u-1", "Pilot")
	assert.Equal(t, "VALIDATION_FAILED", errorCode(err))

	_, err = svc.AssignRole(ctx, admin, admin.ID, "Customer")
	assert.Equal(t, "FORBIDDEN", errorCode(err))

	users.EXPECT().GetByID(ctx, "u-2").Return(&domain.User{ID: "u-2", Role: domain.RoleHRD}, nil)
	user, err = svc.AssignRole(ctx, admin, "u-2", "HRD")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHRD, user.Role)
	assert.Len(t, published, 1)
}
