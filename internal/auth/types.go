package auth

import "errors"

// Role is the authorisation tier carried by a token.
type Role string

const (
	// RoleViewer reads status, history and metrics.
	RoleViewer Role = "viewer"

	// RoleOperator can also change device state.
	RoleOperator Role = "operator"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator}

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Domain errors.
var (
	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrInvalidRole  = errors.New("auth: invalid role")
	ErrNoSecret     = errors.New("auth: no signing secret configured")
)
