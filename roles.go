package users

import "strings"

// Role is one of the closed set of roles an account can hold. The set is
// known at build time; new variants require a migration and a new constant.
type Role string

const (
	// RoleUser is the default role every account holds.
	RoleUser Role = "user"
	// RoleAdmin grants access to role-restricted admin routes.
	RoleAdmin Role = "admin"
)

// AllRoles returns the closed role set.
func AllRoles() []Role {
	return []Role{RoleUser, RoleAdmin}
}

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// Authority returns the granted-authority name for this role as it appears
// in principals and tokens.
func (r Role) Authority() string {
	return "ROLE_" + strings.ToUpper(string(r))
}

// ParseRole safely parses a string into a Role. It accepts both the short
// form ("admin") and the authority form ("ROLE_ADMIN"), case-insensitively.
func ParseRole(s string) (Role, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "role_")
	role := Role(name)
	return role, role.IsValid()
}

// ResolveRoles maps requested role names to the closed role set. An empty
// request yields the default {user}. Unknown names either fail the whole
// resolution (strict) or fall back to the default role, reproducing the
// original lenient behavior.
func ResolveRoles(names []string, strict bool) ([]Role, error) {
	if len(names) == 0 {
		return []Role{RoleUser}, nil
	}

	seen := map[Role]bool{}
	roles := make([]Role, 0, len(names))

	for _, name := range names {
		role, ok := ParseRole(name)
		if !ok {
			if strict {
				return nil, ErrRoleNotConfigured.Clone().
					WithMetadata(map[string]any{"role": name})
			}
			role = RoleUser
		}
		if !seen[role] {
			seen[role] = true
			roles = append(roles, role)
		}
	}

	return roles, nil
}

// AuthoritiesFor derives the granted-authority names for a role set.
func AuthoritiesFor(roles []Role) []string {
	authorities := make([]string, 0, len(roles))
	for _, role := range roles {
		authorities = append(authorities, role.Authority())
	}
	return authorities
}

// HasAuthority reports whether the authority list contains the given role.
func HasAuthority(authorities []string, role Role) bool {
	want := role.Authority()
	for _, a := range authorities {
		if a == want || strings.EqualFold(a, string(role)) {
			return true
		}
	}
	return false
}
