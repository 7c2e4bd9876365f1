package entity

// Role represents the authority level of a user account.
type Role string

const (
	// RoleUser is a regular account.
	RoleUser Role = "USER"
	// RoleAdmin can see the operator dashboard.
	RoleAdmin Role = "ADMIN"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the Role is a known value.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}
