// Package permissions checks permission strings with wildcard support.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "timesheet.*")
//   - "resource.action" - Specific action (e.g., "timesheet.read")
package permissions

import (
	"strings"
)

// Timesheet permissions.
const (
	TimesheetRead   = "timesheet.read"
	TimesheetWrite  = "timesheet.write"
	TimesheetDelete = "timesheet.delete"
)

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "timesheet.*" matches "timesheet.read", "timesheet.write", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true
	}

	for _, p := range userPerms {
		if p == "*" || p == required {
			return true
		}
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission checks if the user has any of the required permissions.
func HasAnyPermission(userPerms []string, required []string) bool {
	for _, req := range required {
		if HasPermission(userPerms, req) {
			return true
		}
	}
	return false
}

// MergePermissions merges multiple permission sets, removing duplicates.
func MergePermissions(sets ...[]string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, set := range sets {
		for _, p := range set {
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
			}
		}
	}

	return result
}

// ForRoles collects the permissions granted to any of roles by the role map.
func ForRoles(roleMap map[string][]string, roles []string) []string {
	sets := make([][]string, 0, len(roles))
	for _, role := range roles {
		if perms, ok := roleMap[role]; ok {
			sets = append(sets, perms)
			continue
		}
		// viper lower-cases map keys read from files and env.
		if perms, ok := roleMap[strings.ToLower(role)]; ok {
			sets = append(sets, perms)
		}
	}
	return MergePermissions(sets...)
}
