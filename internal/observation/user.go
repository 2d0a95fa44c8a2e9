package observation

// Role is the canonical account role.
type Role string

const (
	RoleVolunteer Role = "volunteer"
	RoleExpert    Role = "expert"
	RoleAdmin     Role = "admin"
)

// IsValid reports whether r is one of the defined roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleVolunteer, RoleExpert, RoleAdmin:
		return true
	}
	return false
}

// CanModerate reports whether the role may approve or discard recordings.
func (r Role) CanModerate() bool {
	return r == RoleExpert || r == RoleAdmin
}

// User is one account.
type User struct {
	ID              string
	Role            Role
	IsPendingExpert bool
}

// ResolveRole collapses the dual role representation into one canonical Role.
// The explicit enum wins when present; otherwise the legacy boolean flags
// decide, admin taking precedence over expert. This resolution happens once
// at the datastore boundary and is never re-derived deeper in the core.
func ResolveRole(explicit string, isAdmin, isExpert bool) Role {
	if r := Role(explicit); r.IsValid() {
		return r
	}
	switch {
	case isAdmin:
		return RoleAdmin
	case isExpert:
		return RoleExpert
	default:
		return RoleVolunteer
	}
}
