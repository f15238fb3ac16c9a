package service

import (
	"context"
	"testing"

	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/pkg/auth"
	"github.com/medflow/timesheet-service/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Classification(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		identity auth.Identity
		want     domain.Role
		employee string
	}{
		{"manager role", auth.Identity{UserID: "u-mgr", Roles: []string{"System Manager"}}, domain.RoleManager, ""},
		{"manager role wins over employee", auth.Identity{UserID: "u-ada", Roles: []string{"Employee", "HR User"}}, domain.RoleManager, "EMP-ADA"},
		{"employee role", auth.Identity{UserID: "u-ada", Roles: []string{"Employee"}}, domain.RoleRestrictedEmployee, "EMP-ADA"},
		{"read permission only", auth.Identity{UserID: "u-bob", Permissions: []string{"timesheet.read"}}, domain.RoleRestrictedEmployee, "EMP-BOB"},
		{"nothing", auth.Identity{UserID: "u-bob", Roles: []string{"Guest"}}, domain.RoleUnauthorized, "EMP-BOB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := f.caller(t, tt.identity)
			assert.Equal(t, tt.want, c.Role)
			assert.Equal(t, tt.employee, c.EmployeeID())
		})
	}
}

func TestCanWriteAndDelete(t *testing.T) {
	f := newFixture(t)
	adas := domain.NewTimesheet("EMP-ADA", "Acme", day("2024-01-15"))
	bobs := domain.NewTimesheet("EMP-BOB", "Acme", day("2024-01-15"))

	mgr := f.manager(t)
	assert.True(t, f.policy.CanWrite(mgr, bobs))
	assert.True(t, f.policy.CanDelete(mgr, bobs))

	ada := f.ada(t)
	assert.True(t, f.policy.CanWrite(ada, adas))
	assert.False(t, f.policy.CanWrite(ada, bobs))
	assert.False(t, f.policy.CanDelete(ada, adas))

	adaDel := f.adaWithDelete(t)
	assert.True(t, f.policy.CanDelete(adaDel, adas))
	assert.False(t, f.policy.CanDelete(adaDel, bobs))

	mgrNoDelete := f.caller(t, auth.Identity{UserID: "u-mgr", Roles: []string{"HR Manager"}, Permissions: []string{"timesheet.read"}})
	assert.True(t, f.policy.CanWrite(mgrNoDelete, bobs))
	assert.False(t, f.policy.CanDelete(mgrNoDelete, bobs))
}

func TestScopeEmployee(t *testing.T) {
	f := newFixture(t)

	got, ok := f.policy.ScopeEmployee(f.manager(t), "EMP-BOB")
	assert.True(t, ok)
	assert.Equal(t, "EMP-BOB", got)

	got, ok = f.policy.ScopeEmployee(f.manager(t), "")
	assert.True(t, ok)
	assert.Empty(t, got)

	got, ok = f.policy.ScopeEmployee(f.ada(t), "")
	assert.True(t, ok)
	assert.Equal(t, "EMP-ADA", got)

	_, ok = f.policy.ScopeEmployee(f.ada(t), "EMP-BOB")
	assert.False(t, ok)
}

func TestSubmittedTimesheetIsReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.entries.Create(ctx, f.ada(t), input("EMP-ADA", "2024-01-15", 9, 0, 10, 0))
	require.NoError(t, err)

	stored := f.store.timesheets[res.TimesheetID]
	stored.ts.Status = domain.StatusSubmitted
	f.store.timesheets[res.TimesheetID] = stored

	_, err = f.entries.Create(ctx, f.ada(t), input("EMP-ADA", "2024-01-16", 9, 0, 10, 0))
	requireKind(t, err, errors.KindValidation, "errors.timesheet_not_draft")

	_, err = f.entries.Delete(ctx, f.manager(t), res.EntryID)
	requireKind(t, err, errors.KindValidation, "errors.timesheet_not_draft")
}

func TestCreate_OutsideExplicitWeek(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.entries.Create(ctx, f.ada(t), input("EMP-ADA", "2024-01-15", 9, 0, 10, 0))
	require.NoError(t, err)

	in := input("EMP-ADA", "2024-01-22", 9, 0, 10, 0)
	in.TimesheetID = res.TimesheetID
	_, err = f.entries.Create(ctx, f.ada(t), in)
	requireKind(t, err, errors.KindValidation, "errors.outside_week")
}
