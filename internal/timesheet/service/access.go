package service

import (
	"context"

	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/pkg/auth"
	"github.com/medflow/timesheet-service/pkg/config"
	"github.com/medflow/timesheet-service/pkg/errors"
	"github.com/medflow/timesheet-service/pkg/permissions"
)

// AccessPolicy resolves callers and gates every read and write.
type AccessPolicy struct {
	managerRoles map[string]bool
	employeeRole string
	directory    Directory
}

// NewAccessPolicy creates a policy from the configured role names.
func NewAccessPolicy(cfg config.PolicyConfig, directory Directory) *AccessPolicy {
	managers := make(map[string]bool, len(cfg.ManagerRoles))
	for _, r := range cfg.ManagerRoles {
		managers[r] = true
	}
	return &AccessPolicy{
		managerRoles: managers,
		employeeRole: cfg.EmployeeRole,
		directory:    directory,
	}
}

// Resolve classifies the identity and links its employee record.
func (p *AccessPolicy) Resolve(ctx context.Context, id auth.Identity) (domain.Caller, error) {
	caller := domain.Caller{
		UserID:      id.UserID,
		Roles:       id.Roles,
		Permissions: id.Permissions,
	}

	if id.UserID != "" {
		emp, err := p.directory.EmployeeByUser(ctx, id.UserID)
		switch {
		case err == nil:
			caller.Employee = emp
		case !errors.Is(err, errors.ErrNotFound):
			return caller, err
		}
	}

	caller.Role = p.classify(caller)
	return caller, nil
}

func (p *AccessPolicy) classify(c domain.Caller) domain.Role {
	for _, r := range c.Roles {
		if p.managerRoles[r] {
			return domain.RoleManager
		}
	}
	for _, r := range c.Roles {
		if r == p.employeeRole {
			return domain.RoleRestrictedEmployee
		}
	}
	// No calendar role: plain read permission still grants self-service scope.
	if c.Can(permissions.TimesheetRead) {
		return domain.RoleRestrictedEmployee
	}
	return domain.RoleUnauthorized
}

// RequireAccess rejects callers without any calendar access.
func (p *AccessPolicy) RequireAccess(c domain.Caller) error {
	if c.Role == domain.RoleUnauthorized {
		return errors.Forbidden("errors.no_access", nil)
	}
	return nil
}

// RequireLinked rejects restricted callers that have no employee record.
func (p *AccessPolicy) RequireLinked(c domain.Caller) error {
	if c.IsRestricted() && c.Employee == nil {
		return errors.Forbidden("errors.not_linked", nil)
	}
	return nil
}

// AuthorizeCreate checks that the caller may log time for employeeID.
func (p *AccessPolicy) AuthorizeCreate(c domain.Caller, employeeID string) error {
	if err := p.RequireAccess(c); err != nil {
		return err
	}
	if err := p.RequireLinked(c); err != nil {
		return err
	}
	if c.IsRestricted() && !c.Owns(employeeID) {
		return errors.Forbidden("errors.create_other_employee", nil)
	}
	return nil
}

// AuthorizeMutation checks that the caller may change ts. deniedKey names
// the message used when a restricted caller targets someone else's week.
func (p *AccessPolicy) AuthorizeMutation(c domain.Caller, ts *domain.Timesheet, deniedKey string) error {
	if err := p.RequireAccess(c); err != nil {
		return err
	}
	if c.IsRestricted() && !c.Owns(ts.EmployeeID) {
		return errors.Forbidden(deniedKey, nil)
	}
	if !p.CanWrite(c, ts) {
		return errors.Forbidden("errors.no_write_permission", nil)
	}
	return nil
}

// CanWrite reports whether the caller may save ts.
func (p *AccessPolicy) CanWrite(c domain.Caller, ts *domain.Timesheet) bool {
	if c.IsManager() {
		return true
	}
	return c.Owns(ts.EmployeeID) && c.Can(permissions.TimesheetWrite)
}

// CanDelete reports whether the caller may delete ts outright.
func (p *AccessPolicy) CanDelete(c domain.Caller, ts *domain.Timesheet) bool {
	if !c.Can(permissions.TimesheetDelete) {
		return false
	}
	return c.IsManager() || c.Owns(ts.EmployeeID)
}

// ScopeEmployee narrows a listing filter. ok is false when a restricted
// caller can see nothing for the request, which callers turn into an empty
// result rather than an error.
func (p *AccessPolicy) ScopeEmployee(c domain.Caller, requested string) (employeeID string, ok bool) {
	if !c.IsRestricted() {
		return requested, true
	}
	if c.Employee == nil {
		return "", false
	}
	if requested != "" && requested != c.Employee.ID {
		return "", false
	}
	return c.Employee.ID, true
}
