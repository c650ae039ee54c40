package users

import "strings"

// Decision is the outcome of evaluating a route policy against the
// principal attached to the request, if any.
type Decision int

const (
	// Allow lets the request through to its handler.
	Allow Decision = iota
	// Unauthorized means the route needs a principal and none was attached.
	Unauthorized
	// Forbidden means the principal is valid but lacks the required role.
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// AccessClass is the protection level a route pattern maps to.
type AccessClass int

const (
	// Public routes never consult the principal.
	Public AccessClass = iota
	// Authenticated routes require any valid principal.
	Authenticated
	// RoleRestricted routes additionally require a role authority.
	RoleRestricted
)

// PolicyRule binds a route pattern to an access class. Pattern matches the
// request path exactly, or as a prefix when it ends with "/" or the path
// continues with "/". Method narrows the rule to one HTTP method; empty
// matches all.
type PolicyRule struct {
	Method  string
	Pattern string
	Class   AccessClass
	Role    Role
}

// AccessPolicy is the static route policy table. It is built once at
// startup and read-only afterwards; evaluation is a pure function of
// (method, path, principal).
type AccessPolicy struct {
	public []string
	rules  []PolicyRule
}

// NewAccessPolicy builds a policy from an allow-list of public patterns and
// an ordered rule list. Public patterns always win, bypassing principal
// checks entirely; the first matching rule decides the rest, and paths with
// no matching rule default to Authenticated.
func NewAccessPolicy(public []string, rules ...PolicyRule) *AccessPolicy {
	return &AccessPolicy{
		public: append([]string{}, public...),
		rules:  append([]PolicyRule{}, rules...),
	}
}

// DefaultPublicPatterns is the boundary allow-list: auth endpoints, API
// documentation, and health/ops endpoints.
func DefaultPublicPatterns() []string {
	return []string{
		"/api/auth",
		"/health",
		"/docs",
		"/api-docs",
	}
}

// Evaluate decides the outcome for one request. Absent principal on a
// non-public route yields Unauthorized; a principal missing the required
// role on a role-restricted route yields Forbidden.
func (p *AccessPolicy) Evaluate(method, path string, principal *Principal) Decision {
	for _, pattern := range p.public {
		if matchPattern(pattern, path) {
			return Allow
		}
	}

	if !principal.Authenticated() {
		return Unauthorized
	}

	for _, rule := range p.rules {
		if rule.Method != "" && !strings.EqualFold(rule.Method, method) {
			continue
		}
		if !matchPattern(rule.Pattern, path) {
			continue
		}

		switch rule.Class {
		case Public:
			return Allow
		case RoleRestricted:
			if principal.HasRole(rule.Role) {
				return Allow
			}
			return Forbidden
		default:
			return Allow
		}
	}

	return Allow
}

// matchPattern reports whether path matches pattern exactly or sits under
// it as a sub-path.
func matchPattern(pattern, path string) bool {
	pattern = strings.TrimSuffix(pattern, "/")
	if pattern == "" {
		return path == "/" || path == ""
	}
	if path == pattern {
		return true
	}
	return strings.HasPrefix(path, pattern+"/")
}
