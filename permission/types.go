package permission

// Role is a coarse trust level used for permission derivation and route gating.
type Role string

const (
	RoleSuperAdmin Role = "super-admin"
	RoleAdmin      Role = "admin"
	RoleEmployee   Role = "employee"
)

// AllRoles lists every known role, most trusted first.
var AllRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleEmployee}

// Permission is a capability tag in resource:verb form.
type Permission string

const (
	PermDashboardView     Permission = "dashboard:view"
	PermEmployeeRead      Permission = "employee:read"
	PermEmployeeWrite     Permission = "employee:write"
	PermDepartmentRead    Permission = "department:read"
	PermDepartmentWrite   Permission = "department:write"
	PermDesignationRead   Permission = "designation:read"
	PermDesignationWrite  Permission = "designation:write"
	PermLeaveRead         Permission = "leave:read"
	PermLeaveRequest      Permission = "leave:request"
	PermLeaveApprove      Permission = "leave:approve"
	PermAttendanceRead    Permission = "attendance:read"
	PermAttendanceWrite   Permission = "attendance:write"
	PermCommunicationRead Permission = "communication:read"
	PermCommunicationSend Permission = "communication:send"
	PermSettingsManage    Permission = "settings:manage"
)

// AllPermissions is the full set of known permissions. Its order fixes the
// registry bit layout.
var AllPermissions = []Permission{
	PermDashboardView,
	PermEmployeeRead,
	PermEmployeeWrite,
	PermDepartmentRead,
	PermDepartmentWrite,
	PermDesignationRead,
	PermDesignationWrite,
	PermLeaveRead,
	PermLeaveRequest,
	PermLeaveApprove,
	PermAttendanceRead,
	PermAttendanceWrite,
	PermCommunicationRead,
	PermCommunicationSend,
	PermSettingsManage,
}

// Grant is one row of the role table.
type Grant struct {
	Role        Role
	Permissions []Permission
}

// Table is the static role -> permission configuration. Row order decides the
// order in which role-implied permissions are materialized.
type Table []Grant

// DefaultTable returns the dashboard's role table.
func DefaultTable() Table {
	admin := make([]Permission, 0, len(AllPermissions)-1)
	for _, p := range AllPermissions {
		if p != PermSettingsManage {
			admin = append(admin, p)
		}
	}
	return Table{
		{Role: RoleSuperAdmin, Permissions: append([]Permission(nil), AllPermissions...)},
		{Role: RoleAdmin, Permissions: admin},
		{Role: RoleEmployee, Permissions: []Permission{
			PermDashboardView,
			PermEmployeeRead,
			PermLeaveRead,
			PermLeaveRequest,
			PermAttendanceRead,
			PermCommunicationRead,
		}},
	}
}

// ParseRole matches s against the role enumeration.
func ParseRole(s string) (Role, bool) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// ParseRoles keeps the known roles of in, deduplicated, in input order.
func ParseRoles(in []string) []Role {
	out := make([]Role, 0, len(in))
	for _, s := range in {
		r, ok := ParseRole(s)
		if !ok || containsRole(out, r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ParsePermission matches s against the permission enumeration.
func ParsePermission(s string) (Permission, bool) {
	for _, p := range AllPermissions {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// ParsePermissions keeps the known permissions of in, deduplicated, in input order.
func ParsePermissions(in []string) []Permission {
	out := make([]Permission, 0, len(in))
	for _, s := range in {
		p, ok := ParsePermission(s)
		if !ok || Contains(out, p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Contains reports whether p is in perms.
func Contains(perms []Permission, p Permission) bool {
	for _, have := range perms {
		if have == p {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether held and allowed intersect.
func HasAnyRole(held, allowed []Role) bool {
	for _, r := range held {
		if containsRole(allowed, r) {
			return true
		}
	}
	return false
}

func containsRole(roles []Role, r Role) bool {
	for _, have := range roles {
		if have == r {
			return true
		}
	}
	return false
}

// RoleStrings converts roles to their tag strings.
func RoleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// PermissionStrings converts permissions to their tag strings.
func PermissionStrings(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
