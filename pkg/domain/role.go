package domain

import dErrors "carecheck/pkg/domain-errors"

// Role is the capability carried by an authenticated principal.
type Role string

const (
	RoleCandidate  Role = "candidate"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole validates a role claim from a token.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCandidate, RoleAdmin, RoleSuperAdmin:
		return r, nil
	case "":
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported role")
	}
}

// CanOverride reports whether the role may perform manual verification transitions.
func (r Role) CanOverride() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

func (r Role) String() string { return string(r) }
