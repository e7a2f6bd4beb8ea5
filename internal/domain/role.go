package domain

import "strings"

// Role represents the capability a user holds in the cooperative.
type Role string

const (
	RoleConductor Role = "conductor"
	RoleDriver    Role = "driver"
	RoleOwner     Role = "owner"
	RoleSacco     Role = "sacco"
	RoleAdmin     Role = "admin"
)

// ParseRole normalizes an external role string. It is the only place
// role strings from requests or tokens are interpreted.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleConductor, RoleDriver, RoleOwner, RoleSacco, RoleAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether r administers the whole cooperative.
func (r Role) IsAdmin() bool {
	return r == RoleSacco || r == RoleAdmin
}

// IsPayee reports whether r is paid a share of trip revenue.
func (r Role) IsPayee() bool {
	return r == RoleOwner || r == RoleDriver || r == RoleConductor
}

// Principal is the authenticated caller of a core operation.
type Principal struct {
	UserID      string
	Role        Role
	PhoneNumber string
}
