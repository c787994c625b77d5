package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"Admin", RoleAdmin, true},
		{"staff trips", RoleStaffTrips, true},
		{"STAFF_TRIPS", RoleStaffTrips, true},
		{"driver-perusahaan", RoleDriverPerusahaan, true},
		{"  Staff   Admin ", RoleStaffAdmin, true},
		{"hrd", RoleHRD, true},
		{"", "", false},
		{"root", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseRole(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRolePredicates(t *testing.T) {
	assert.True(t, RoleStaffTrips.Valid())
	assert.False(t, Role("staff_trips").Valid())
	assert.True(t, RoleDispatcher.IsStaff())
	assert.False(t, RoleCustomer.IsStaff())
	assert.False(t, RoleDriverMitra.IsStaff())
	assert.True(t, RoleDriverMitra.IsDriver())
	assert.Len(t, AllRoles(), 12)
}

func TestBookingDays(t *testing.T) {
	b := Booking{}
	b.StartAt = mustTime(t, "2026-03-01T08:00:00Z")
	b.EndAt = mustTime(t, "2026-03-03T09:00:00Z")
	assert.Equal(t, 3, b.Days())

	b.EndAt = b.StartAt
	assert.Equal(t, 0, b.Days())
}
