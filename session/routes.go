package session

import (
	"net/url"
	"strings"

	"github.com/MrEthical07/dashAuth/permission"
)

// AccessRule restricts every path under Prefix to Roles.
type AccessRule struct {
	Prefix string
	Roles  []permission.Role
}

// RouteTable is an ordered rule list. The first matching rule wins, so more
// specific prefixes must come first.
type RouteTable []AccessRule

// DefaultRoutes returns the dashboard's route gating rules.
func DefaultRoutes() RouteTable {
	staff := []permission.Role{permission.RoleSuperAdmin, permission.RoleAdmin}
	return RouteTable{
		{Prefix: "/dashboard/settings", Roles: []permission.Role{permission.RoleSuperAdmin}},
		{Prefix: "/dashboard/employees", Roles: staff},
		{Prefix: "/dashboard/departments", Roles: staff},
		{Prefix: "/dashboard/designations", Roles: staff},
		{Prefix: "/dashboard/leave/approvals", Roles: staff},
		{Prefix: "/dashboard/attendance/manage", Roles: staff},
		{Prefix: "/dashboard/communications/compose", Roles: staff},
		{Prefix: "/dashboard", Roles: permission.AllRoles},
	}
}

// AllowedRoles returns the roles of the first rule matching path. The second
// result is false when no rule matches; such paths are unrestricted here.
func (t RouteTable) AllowedRoles(path string) ([]permission.Role, bool) {
	for _, rule := range t {
		if matchPrefix(path, rule.Prefix) {
			return rule.Roles, true
		}
	}
	return nil, false
}

func matchPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Decision is the outcome of [RouteTable.Authorize].
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionUnauthenticated
	DecisionForbidden
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionUnauthenticated:
		return "unauthenticated"
	case DecisionForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Authorize decides whether parsed may reach path. Unauthenticated sessions are
// never allowed, even on unrestricted paths.
func (t RouteTable) Authorize(parsed Parsed, path string) Decision {
	auth, ok := parsed.(Authenticated)
	if !ok {
		return DecisionUnauthenticated
	}
	allowed, restricted := t.AllowedRoles(path)
	if !restricted || permission.HasAnyRole(auth.Session.User.Roles, allowed) {
		return DecisionAllow
	}
	return DecisionForbidden
}

// SignInRedirect builds the sign-in URL carrying callback as callbackUrl.
func SignInRedirect(signInPath, callback string) string {
	if callback == "" {
		return signInPath
	}
	return signInPath + "?callbackUrl=" + url.QueryEscape(callback)
}

// IsSignInPath reports whether location (a path, optionally with a query)
// already points at signInPath.
func IsSignInPath(location, signInPath string) bool {
	path := location
	if u, err := url.Parse(location); err == nil {
		path = u.Path
	}
	return strings.TrimSuffix(path, "/") == strings.TrimSuffix(signInPath, "/")
}
