package models

// Role represents a user's place in the fixed authority hierarchy.
type Role string

const (
	RoleGuest       Role = "guest"
	RoleUser        Role = "user"
	RoleCoordinator Role = "coordinator"
	RoleManager     Role = "manager"
	RoleAdmin       Role = "admin"
	RoleSuperAdmin  Role = "super_admin"
)

// roleLevels orders the hierarchy; higher level means more authority.
var roleLevels = map[Role]int{
	RoleGuest:       0,
	RoleUser:        1,
	RoleCoordinator: 2,
	RoleManager:     3,
	RoleAdmin:       4,
	RoleSuperAdmin:  5,
}

// Level returns the role's position in the hierarchy, or -1 for unknown roles.
func (r Role) Level() int {
	if lvl, ok := roleLevels[r]; ok {
		return lvl
	}
	return -1
}

// Valid reports whether the role is one of the known hierarchy members.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// AtLeast reports whether the role has authority equal to or above min.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && min.Valid() && r.Level() >= min.Level()
}

// Outranks reports strictly higher authority; used for user management checks.
func (r Role) Outranks(other Role) bool {
	return r.Valid() && other.Valid() && r.Level() > other.Level()
}

// ParseRole converts a stored role string, rejecting unknown values.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// Roles lists the hierarchy from lowest to highest authority.
func Roles() []Role {
	return []Role{RoleGuest, RoleUser, RoleCoordinator, RoleManager, RoleAdmin, RoleSuperAdmin}
}
