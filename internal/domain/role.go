package domain

import "strings"

// Role enumerates the access roles known to the rental platform.
// Values are the display strings stored in the users table and in client state.
type Role string

const (
	RoleAdmin            Role = "Admin"
	RoleStaff            Role = "Staff"
	RoleStaffTrips       Role = "Staff Trips"
	RoleManager          Role = "Manager"
	RoleSupervisor       Role = "Supervisor"
	RoleHRD              Role = "HRD"
	RoleCustomer         Role = "Customer"
	RoleDriverMitra      Role = "Driver Mitra"
	RoleDriverPerusahaan Role = "Driver Perusahaan"
	RoleStaffTraffic     Role = "Staff Traffic"
	RoleStaffAdmin       Role = "Staff Admin"
	RoleDispatcher       Role = "Dispatcher"
)

var allRoles = []Role{
	RoleAdmin,
	RoleStaff,
	RoleStaffTrips,
	RoleManager,
	RoleSupervisor,
	RoleHRD,
	RoleCustomer,
	RoleDriverMitra,
	RoleDriverPerusahaan,
	RoleStaffTraffic,
	RoleStaffAdmin,
	RoleDispatcher,
}

// AllRoles returns every known role.
func AllRoles() []Role {
	return append([]Role(nil), allRoles...)
}

// StaffRoles are the back-office roles allowed to see every booking.
func StaffRoles() []Role {
	return []Role{
		RoleAdmin,
		RoleStaff,
		RoleStaffTrips,
		RoleManager,
		RoleSupervisor,
		RoleHRD,
		RoleStaffTraffic,
		RoleStaffAdmin,
		RoleDispatcher,
	}
}

// ParseRole resolves a role from its display string. Matching ignores case and
// accepts underscores or hyphens in place of spaces ("staff_trips").
func ParseRole(raw string) (Role, bool) {
	norm := normalizeRole(raw)
	if norm == "" {
		return "", false
	}
	for _, r := range allRoles {
		if normalizeRole(string(r)) == norm {
			return r, true
		}
	}
	return "", false
}

// Valid reports whether r is exactly one of the known roles.
func (r Role) Valid() bool {
	for _, known := range allRoles {
		if known == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether r is a back-office role.
func (r Role) IsStaff() bool {
	for _, s := range StaffRoles() {
		if s == r {
			return true
		}
	}
	return false
}

// IsDriver reports whether r belongs to one of the driver roles.
func (r Role) IsDriver() bool {
	return r == RoleDriverMitra || r == RoleDriverPerusahaan
}

func normalizeRole(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	raw = strings.NewReplacer("_", " ", "-", " ").Replace(raw)
	return strings.Join(strings.Fields(raw), " ")
}
