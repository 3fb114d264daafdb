package model

import "strings"

// Role is the closed set of account roles. The wire values are the Spanish
// names used by the web client.
type Role string

const (
	RoleStudent Role = "alumno"
	RoleTeacher Role = "profesor"
	RoleAdmin   Role = "admin"
)

// Roles lists every known role in ascending privilege order.
var Roles = []Role{RoleStudent, RoleTeacher, RoleAdmin}

// Rank returns the ordinal privilege of the role. Unknown roles rank 0 and
// therefore never satisfy any requirement.
func (r Role) Rank() int {
	switch r {
	case RoleStudent:
		return 1
	case RoleTeacher:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r grants everything required grants.
func (r Role) AtLeast(required Role) bool {
	return r.Valid() && required.Valid() && r.Rank() >= required.Rank()
}

// ParseRole maps a wire value (case-insensitive) onto a Role. The English
// aliases are accepted for API clients.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "alumno", "student":
		return RoleStudent, true
	case "profesor", "teacher":
		return RoleTeacher, true
	case "admin":
		return RoleAdmin, true
	default:
		return "", false
	}
}

func (r Role) String() string { return string(r) }
