package session

import (
	"errors"
	"fmt"

	"github.com/armada-rental/rental-service/internal/domain"
)

// ErrRoleDenied is returned when an authenticated role is outside the allow-list.
var ErrRoleDenied = errors.New("role not permitted")

// ErrTornDown is returned by operations on a reconciler after Teardown.
var ErrTornDown = errors.New("session torn down")

// RoleDeniedError carries the rejected role.
type RoleDeniedError struct {
	Role domain.Role
}

func (e *RoleDeniedError) Error() string {
	return fmt.Sprintf("%s: %q", ErrRoleDenied, e.Role)
}

func (e *RoleDeniedError) Unwrap() error {
	return ErrRoleDenied
}
