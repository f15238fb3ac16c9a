package service

import (
	"context"
	"testing"

	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/pkg/auth"
	"github.com/medflow/timesheet-service/pkg/config"
	"github.com/medflow/timesheet-service/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireKind(t *testing.T, err error, kind errors.Kind, key string) {
	t.Helper()
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, kind, appErr.Kind)
	if key != "" {
		assert.Equal(t, key, appErr.MessageKey)
	}
}

func TestCreate_SameWeekSharesOneTimesheet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.ada(t)

	var ids []string
	for _, date := range []string{"2024-01-15", "2024-01-17", "2024-01-19"} {
		res, err := f.entries.Create(ctx, ada, input("EMP-ADA", date, 9, 0, 11, 0))
		require.NoError(t, err)
		ids = append(ids, res.TimesheetID)
	}

	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])
	require.Equal(t, 1, f.timesheetCount())

	ts, err := f.store.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-15"), ts.WeekStart)
	assert.Equal(t, day("2024-01-21"), ts.WeekEnd)
	assert.Equal(t, "Acme", ts.Company)
	assert.Equal(t, 6.0, ts.TotalHours)
	assert.Len(t, ts.Entries(), 3)
	assert.Equal(t, 1, f.recorder.created)
}

func TestCreate_NextMondayOpensSecondTimesheet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.ada(t)

	first, err := f.entries.Create(ctx, ada, input("EMP-ADA", "2024-01-19", 9, 0, 10, 0))
	require.NoError(t, err)
	second, err := f.entries.Create(ctx, ada, input("EMP-ADA", "2024-01-22", 9, 0, 10, 0))
	require.NoError(t, err)

	assert.True(t, first.TimesheetCreated)
	assert.True(t, second.TimesheetCreated)
	assert.NotEqual(t, first.TimesheetID, second.TimesheetID)
	assert.Equal(t, 2, f.timesheetCount())

	ts, err := f.store.Get(ctx, second.TimesheetID)
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-22"), ts.WeekStart)
}

func TestCreate_OverlapRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.ada(t)

	_, err := f.entries.Create(ctx, ada, input("EMP-ADA", "2024-01-15", 9, 0, 10, 0))
	require.NoError(t, err)
	_, err = f.entries.Create(ctx, ada, input("EMP-ADA", "2024-01-15", 10, 0, 11, 0))
	require.NoError(t, err, "touching endpoints are allowed")

	g := newFixture(t)
	ada = g.ada(t)
	_, err = g.entries.Create(ctx, ada, input("EMP-ADA", "2024-01-15", 9, 0, 10, 30))
	require.NoError(t, err)
	_, err = g.entries.Create(ctx, ada, input("EMP-ADA", "2024-01-15", 10, 0, 11, 0))
	requireKind(t, err, errors.KindValidation, "errors.entry_overlap")

	ts, err := g.store.FindOpenByWeek(ctx, "EMP-ADA", day("2024-01-15"))
	require.NoError(t, err)
	assert.Len(t, ts.Entries(), 1)
	assert.Equal(t, 1.5, ts.TotalHours)
	assert.Equal(t, 1, g.recorder.operations["create:validation"])
}

func TestCreate_FractionalHours(t *testing.T) {
	f := newFixture(t)
	res, err := f.entries.Create(context.Background(), f.ada(t), input("EMP-ADA", "2024-01-15", 9, 0, 10, 30))
	require.NoError(t, err)

	assert.Equal(t, 1.5, res.Hours)
	assert.Equal(t, 1.5, res.TotalHours)
}

func TestCreate_MalformedRange(t *testing.T) {
	f := newFixture(t)
	_, err := f.entries.Create(context.Background(), f.ada(t), input("EMP-ADA", "2024-01-15", 11, 0, 9, 0))

	requireKind(t, err, errors.KindValidation, "errors.invalid_range")
	assert.Equal(t, 0, f.timesheetCount())
}

func TestCreate_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.entries.Create(ctx, f.ada(t), input("EMP-BOB", "2024-01-15", 9, 0, 10, 0))
	requireKind(t, err, errors.KindAuthorization, "errors.create_other_employee")

	unlinked := f.caller(t, auth.Identity{UserID: "u-ghost", Roles: []string{"Employee"}, Permissions: []string{"timesheet.read", "timesheet.write"}})
	_, err = f.entries.Create(ctx, unlinked, input("EMP-ADA", "2024-01-15", 9, 0, 10, 0))
	requireKind(t, err, errors.KindAuthorization, "errors.not_linked")

	stranger := f.caller(t, auth.Identity{UserID: "u-x", Roles: []string{"Guest"}})
	_, err = f.entries.Create(ctx, stranger, input("EMP-ADA", "2024-01-15", 9, 0, 10, 0))
	requireKind(t, err, errors.KindAuthorization, "errors.no_access")

	res, err := f.entries.Create(ctx, f.manager(t), input("EMP-BOB", "2024-01-15", 9, 0, 10, 0))
	require.NoError(t, err)
	assert.NotEmpty(t, res.EntryID)
	assert.Equal(t, 1, f.timesheetCount())
}

func TestCreate_ExplicitTimesheet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bobs, err := f.entries.Create(ctx, f.manager(t), input("EMP-BOB", "2024-01-15", 9, 0, 10, 0))
	require.NoError(t, err)

	in := input("EMP-ADA", "2024-01-16", 9, 0, 10, 0)
	in.TimesheetID = bobs.TimesheetID
	_, err = f.entries.Create(ctx, f.ada(t), in)
	requireKind(t, err, errors.KindAuthorization, "errors.modify_timesheet")

	in = input("EMP-BOB", "2024-01-16", 9, 0, 10, 0)
	in.TimesheetID = bobs.TimesheetID
	res, err := f.entries.Create(ctx, f.manager(t), in)
	require.NoError(t, err)
	assert.Equal(t, bobs.TimesheetID, res.TimesheetID)
	assert.False(t, res.TimesheetCreated)

	in.TimesheetID = "missing"
	_, err = f.entries.Create(ctx, f.manager(t), in)
	requireKind(t, err, errors.KindNotFound, "")
}

func TestCreate_ProjectRules(t *testing.T) {
	tests := []struct {
		name     string
		enforce  bool
		manager  bool
		employee string
		project  string
		task     string
		wantKey  string
		wantProj string
	}{
		{name: "task matches project", enforce: true, employee: "EMP-ADA", project: "PRJ-A", task: "TASK-1", wantProj: "PRJ-A"},
		{name: "project filled from task", enforce: true, employee: "EMP-ADA", task: "TASK-1", wantProj: "PRJ-A"},
		{name: "mismatch", enforce: true, employee: "EMP-ADA", project: "PRJ-A", task: "TASK-2", wantKey: "errors.project_mismatch"},
		{name: "mismatch even for managers", enforce: true, manager: true, employee: "EMP-ADA", project: "PRJ-A", task: "TASK-2", wantKey: "errors.project_mismatch"},
		{name: "closed assignment", enforce: true, employee: "EMP-ADA", task: "TASK-2", wantKey: "errors.not_assigned"},
		{name: "manager bypasses assignment", enforce: true, manager: true, employee: "EMP-ADA", task: "TASK-2", wantProj: "PRJ-B"},
		{name: "assignment not enforced", enforce: false, employee: "EMP-ADA", task: "TASK-2", wantProj: "PRJ-B"},
		{name: "task without project", enforce: true, employee: "EMP-ADA", project: "PRJ-A", task: "TASK-3", wantProj: "PRJ-A"},
		{name: "unknown task", enforce: true, employee: "EMP-ADA", task: "TASK-404", wantKey: "errors.task_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(c *config.PolicyConfig) { c.EnforceProjectAssignment = tt.enforce })
			caller := f.ada(t)
			if tt.manager {
				caller = f.manager(t)
			}

			in := input(tt.employee, "2024-01-15", 9, 0, 10, 0)
			in.ProjectID = tt.project
			in.TaskID = tt.task

			res, err := f.entries.Create(context.Background(), caller, in)
			if tt.wantKey != "" {
				requireKind(t, err, errors.KindValidation, tt.wantKey)
				assert.Equal(t, 0, f.timesheetCount())
				return
			}
			require.NoError(t, err)

			ts, err := f.store.Get(context.Background(), res.TimesheetID)
			require.NoError(t, err)
			stored, ok := ts.FindEntry(res.EntryID)
			require.True(t, ok)
			assert.Equal(t, tt.wantProj, stored.ProjectID)
		})
	}
}

func TestCreate_MismatchMessageNamesProjects(t *testing.T) {
	f := newFixture(t)
	in := input("EMP-ADA", "2024-01-15", 9, 0, 10, 0)
	in.ProjectID = "PRJ-A"
	in.TaskID = "TASK-2"

	_, err := f.entries.Create(context.Background(), f.ada(t), in)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Apollo", appErr.Params["project"])
	assert.Equal(t, "Borealis", appErr.Params["task_project"])
}

func TestCreate_LostRaceRetriesAgainstWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var winnerID string
	f.store.beforeInsert = func(loser *domain.Timesheet) {
		winner := domain.NewTimesheet(loser.EmployeeID, loser.Company, loser.WeekStart)
		_, err := winner.AddEntry(domain.TimeEntry{FromTime: at("2024-01-15", 8, 0), ToTime: at("2024-01-15", 9, 0)})
		require.NoError(t, err)
		require.NoError(t, f.store.Save(ctx, winner))
		winnerID = winner.ID
	}

	res, err := f.entries.Create(ctx, f.ada(t), input("EMP-ADA", "2024-01-15", 9, 0, 10, 0))
	require.NoError(t, err)

	assert.Equal(t, winnerID, res.TimesheetID)
	assert.False(t, res.TimesheetCreated)
	assert.Equal(t, 1, f.timesheetCount())
	assert.Equal(t, 1, f.recorder.retries)
	assert.Equal(t, 2.0, res.TotalHours)
}

func TestCreate_PublishesEvent(t *testing.T) {
	f := newFixture(t)
	res, err := f.entries.Create(context.Background(), f.ada(t), input("EMP-ADA", "2024-01-15", 9, 0, 10, 0))
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, publishedEvent{"entry.created", res.TimesheetID, res.EntryID}, f.publisher.events[0])
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.ada(t)

	first, err := f.entries.Create(ctx, ada, input("EMP-ADA", "2024-01-15", 9, 0, 10, 0))
	require.NoError(t, err)
	_, err = f.entries.Create(ctx, ada, input("EMP-ADA", "2024-01-15", 11, 0, 12, 0))
	require.NoError(t, err)

	to := at("2024-01-15", 10, 30)
	res, err := f.entries.Update(ctx, ada, first.EntryID, domain.EntryPatch{ToTime: &to, Description: strptr("standup")})
	require.NoError(t, err)
	assert.Equal(t, 1.5, res.Hours)
	assert.Equal(t, 2.5, res.TotalHours)

	ts, err := f.store.Get(ctx, first.TimesheetID)
	require.NoError(t, err)
	stored, _ := ts.FindEntry(first.EntryID)
	assert.Equal(t, at("2024-01-15", 9, 0), stored.FromTime)
	assert.Equal(t, "Development", stored.ActivityType)
	assert.Equal(t, "standup", stored.Description)

	t.Run("overlap with sibling", func(t *testing.T) {
		to := at("2024-01-15", 11, 30)
		_, err := f.entries.Update(ctx, ada, first.EntryID, domain.EntryPatch{ToTime: &to})
		requireKind(t, err, errors.KindValidation, "errors.entry_overlap")
	})

	t.Run("task project mismatch with stored project", func(t *testing.T) {
		_, err := f.entries.Update(ctx, ada, first.EntryID, domain.EntryPatch{ProjectID: strptr("PRJ-A")})
		require.NoError(t, err)
		_, err = f.entries.Update(ctx, ada, first.EntryID, domain.EntryPatch{TaskID: strptr("TASK-2")})
		requireKind(t, err, errors.KindValidation, "errors.project_mismatch")
	})

	t.Run("other employee", func(t *testing.T) {
		_, err := f.entries.Update(ctx, f.bob(t), first.EntryID, domain.EntryPatch{Description: strptr("mine now")})
		requireKind(t, err, errors.KindAuthorization, "errors.modify_timesheet")
	})

	t.Run("missing entry", func(t *testing.T) {
		_, err := f.entries.Update(ctx, ada, "nope", domain.EntryPatch{})
		requireKind(t, err, errors.KindNotFound, "")
	})
}

func TestUpdate_StaleWriteIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.entries.Create(ctx, f.ada(t), input("EMP-ADA", "2024-01-15", 9, 0, 10, 0))
	require.NoError(t, err)

	// another writer saves the week between our read and our write
	f.store.beforeUpdate = func(*domain.Timesheet) {
		other, err := f.store.Get(ctx, res.TimesheetID)
		require.NoError(t, err)
		require.NoError(t, f.store.Save(ctx, other))
	}

	_, err = f.entries.Update(ctx, f.ada(t), res.EntryID, domain.EntryPatch{Description: strptr("late")})
	requireKind(t, err, errors.KindConflict, "errors.conflict")
	assert.Equal(t, 1, f.recorder.operations["update:conflict"])
}

func TestDelete_KeepsNonEmptyTimesheet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.adaWithDelete(t)

	a, err := f.entries.Create(ctx, ada, input("EMP-ADA", "2024-01-15", 9, 0, 10, 0))
	require.NoError(t, err)
	_, err = f.entries.Create(ctx, ada, input("EMP-ADA", "2024-01-16", 9, 0, 11, 0))
	require.NoError(t, err)

	res, err := f.entries.Delete(ctx, ada, a.EntryID)
	require.NoError(t, err)
	assert.False(t, res.TimesheetDeleted)
	assert.Equal(t, "messages.entry_deleted", res.MessageKey)

	ts, err := f.store.Get(ctx, a.TimesheetID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, ts.TotalHours)
}

func TestDelete_LastEntry(t *testing.T) {
	tests := []struct {
		name        string
		caller      func(f *fixture, t *testing.T) domain.Caller
		wantDeleted bool
		wantKey     string
	}{
		{"manager with delete rights", (*fixture).manager, true, "messages.entry_and_timesheet_deleted"},
		{"employee with delete rights", (*fixture).adaWithDelete, true, "messages.entry_and_timesheet_deleted"},
		{"employee without delete rights", (*fixture).ada, false, "messages.entry_deleted_timesheet_kept"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			caller := tt.caller(f, t)

			created, err := f.entries.Create(ctx, caller, input("EMP-ADA", "2024-01-15", 9, 0, 10, 0))
			require.NoError(t, err)

			res, err := f.entries.Delete(ctx, caller, created.EntryID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDeleted, res.TimesheetDeleted)
			assert.Equal(t, tt.wantKey, res.MessageKey)

			ts, err := f.store.Get(ctx, created.TimesheetID)
			if tt.wantDeleted {
				assert.ErrorIs(t, err, errors.ErrNotFound)
				assert.Equal(t, "timesheet.deleted", f.publisher.events[len(f.publisher.events)-1].kind)
				return
			}
			require.NoError(t, err)
			assert.True(t, ts.IsEmpty())
			assert.Equal(t, 0.0, ts.TotalHours)
		})
	}
}

func TestDelete_ReferencedTimesheet(t *testing.T) {
	tests := []struct {
		name    string
		caller  func(f *fixture, t *testing.T) domain.Caller
		wantKey string
	}{
		{"restricted employee is sent to a manager", (*fixture).adaWithDelete, "errors.contact_manager"},
		{"manager sees the store reason", (*fixture).manager, "errors.timesheet_referenced"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			caller := tt.caller(f, t)

			created, err := f.entries.Create(ctx, caller, input("EMP-ADA", "2024-01-15", 9, 0, 10, 0))
			require.NoError(t, err)
			f.store.referenced[created.TimesheetID] = true

			_, err = f.entries.Delete(ctx, caller, created.EntryID)
			requireKind(t, err, errors.KindReconciliation, tt.wantKey)
			assert.ErrorIs(t, err, errors.ErrReferenced)

			// the request rolled back: the entry is still there
			ts, err := f.store.Get(ctx, created.TimesheetID)
			require.NoError(t, err)
			assert.Len(t, ts.Entries(), 1)
			assert.Equal(t, 1, f.recorder.reconciled["blocked"])
		})
	}
}

func TestDelete_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.entries.Create(ctx, f.ada(t), input("EMP-ADA", "2024-01-15", 9, 0, 10, 0))
	require.NoError(t, err)

	_, err = f.entries.Delete(ctx, f.bob(t), created.EntryID)
	requireKind(t, err, errors.KindAuthorization, "errors.delete_from_timesheet")

	readOnly := f.caller(t, auth.Identity{UserID: "u-ada", Roles: []string{"Employee"}, Permissions: []string{"timesheet.read"}})
	_, err = f.entries.Delete(ctx, readOnly, created.EntryID)
	requireKind(t, err, errors.KindAuthorization, "errors.no_write_permission")

	_, err = f.entries.Delete(ctx, f.ada(t), "missing")
	requireKind(t, err, errors.KindNotFound, "")
}
