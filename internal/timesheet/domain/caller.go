package domain

import "github.com/medflow/timesheet-service/pkg/permissions"

// Role classifies a caller for scoping decisions.
type Role int

const (
	RoleUnauthorized Role = iota
	RoleRestrictedEmployee
	RoleManager
)

func (r Role) String() string {
	switch r {
	case RoleManager:
		return "manager"
	case RoleRestrictedEmployee:
		return "employee"
	default:
		return "unauthorized"
	}
}

// Caller is the resolved principal every service operation receives.
type Caller struct {
	UserID      string
	Roles       []string
	Permissions []string
	Role        Role
	// Employee is the record linked to UserID, nil when the user has none.
	Employee *Employee
}

// IsManager reports whether the caller has cross-employee access.
func (c Caller) IsManager() bool {
	return c.Role == RoleManager
}

// IsRestricted reports whether the caller only sees their own data.
func (c Caller) IsRestricted() bool {
	return c.Role == RoleRestrictedEmployee
}

// EmployeeID returns the linked employee id, or "" when unlinked.
func (c Caller) EmployeeID() string {
	if c.Employee == nil {
		return ""
	}
	return c.Employee.ID
}

// Owns reports whether employeeID is the caller's own employee record.
func (c Caller) Owns(employeeID string) bool {
	return c.Employee != nil && c.Employee.ID == employeeID
}

// Can checks a permission, honouring wildcards.
func (c Caller) Can(permission string) bool {
	return permissions.HasPermission(c.Permissions, permission)
}
