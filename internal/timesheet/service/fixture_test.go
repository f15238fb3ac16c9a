package service

import (
	"context"
	"testing"
	"time"

	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/pkg/auth"
	"github.com/medflow/timesheet-service/pkg/config"
	"github.com/medflow/timesheet-service/pkg/logger"
	"github.com/medflow/timesheet-service/pkg/permissions"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *memStore
	publisher *fakePublisher
	recorder  *fakeRecorder
	policy    *AccessPolicy
	entries   *EntryService
	calendar  *CalendarService
	cfg       config.PolicyConfig
}

func strptr(s string) *string { return &s }

func newFixture(t *testing.T, mutate ...func(*config.PolicyConfig)) *fixture {
	t.Helper()

	cfg := config.PolicyConfig{
		ManagerRoles:             config.DefaultManagerRoles,
		EmployeeRole:             config.DefaultEmployeeRole,
		EnforceProjectAssignment: true,
		DefaultCompany:           "Default Co",
	}
	for _, m := range mutate {
		m(&cfg)
	}

	store := newMemStore()
	store.employees["EMP-ADA"] = domain.Employee{ID: "EMP-ADA", UserID: strptr("u-ada"), Name: "Ada Lovelace", Company: "Acme", Status: domain.EmployeeActive}
	store.employees["EMP-BOB"] = domain.Employee{ID: "EMP-BOB", UserID: strptr("u-bob"), Name: "Bob Noyce", Company: "Acme", Status: domain.EmployeeActive}
	store.employees["EMP-OLD"] = domain.Employee{ID: "EMP-OLD", Name: "Old Timer", Status: domain.EmployeeInactive}
	store.projects["PRJ-A"] = domain.Project{ID: "PRJ-A", Name: "Apollo", Status: "open"}
	store.projects["PRJ-B"] = domain.Project{ID: "PRJ-B", Name: "Borealis", Status: "open"}
	store.projects["PRJ-Z"] = domain.Project{ID: "PRJ-Z", Name: "Zephyr", Status: "completed"}
	store.tasks["TASK-1"] = domain.Task{ID: "TASK-1", Subject: "Design", ProjectID: "PRJ-A", Status: "open"}
	store.tasks["TASK-2"] = domain.Task{ID: "TASK-2", Subject: "Survey", ProjectID: "PRJ-B", Status: "open"}
	store.tasks["TASK-3"] = domain.Task{ID: "TASK-3", Subject: "Loose ends", Status: "open"}
	store.assignments = []assignment{
		{refType: "project", refID: "PRJ-A", userID: "u-ada", open: true},
		{refType: "task", refID: "TASK-1", userID: "u-ada", open: true},
		{refType: "project", refID: "PRJ-B", userID: "u-ada", open: false},
	}
	store.activityTypes = []domain.ActivityType{{ID: "Development", Name: "Development"}, {ID: "Meeting", Name: "Meeting"}}

	publisher := &fakePublisher{}
	recorder := newFakeRecorder()
	log := logger.Nop()
	policy := NewAccessPolicy(cfg, store)

	return &fixture{
		store:     store,
		publisher: publisher,
		recorder:  recorder,
		policy:    policy,
		entries:   NewEntryService(store, store, store, store, policy, publisher, recorder, cfg, log),
		calendar:  NewCalendarService(store, store, store, policy, log),
		cfg:       cfg,
	}
}

func (f *fixture) caller(t *testing.T, id auth.Identity) domain.Caller {
	t.Helper()
	c, err := f.policy.Resolve(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (f *fixture) manager(t *testing.T) domain.Caller {
	return f.caller(t, auth.Identity{UserID: "u-mgr", Roles: []string{"HR Manager"}, Permissions: []string{"timesheet.*"}})
}

func (f *fixture) ada(t *testing.T) domain.Caller {
	return f.caller(t, auth.Identity{UserID: "u-ada", Roles: []string{"Employee"}, Permissions: []string{permissions.TimesheetRead, permissions.TimesheetWrite}})
}

func (f *fixture) adaWithDelete(t *testing.T) domain.Caller {
	return f.caller(t, auth.Identity{UserID: "u-ada", Roles: []string{"Employee"}, Permissions: []string{"timesheet.*"}})
}

func (f *fixture) bob(t *testing.T) domain.Caller {
	return f.caller(t, auth.Identity{UserID: "u-bob", Roles: []string{"Employee"}, Permissions: []string{permissions.TimesheetRead, permissions.TimesheetWrite}})
}

func (f *fixture) timesheetCount() int {
	return len(f.store.timesheets)
}

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func at(date string, hour, minute int) time.Time {
	return day(date).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func input(employee, date string, fromH, fromM, toH, toM int) CreateEntryInput {
	return CreateEntryInput{
		EmployeeID:   employee,
		FromTime:     at(date, fromH, fromM),
		ToTime:       at(date, toH, toM),
		ActivityType: "Development",
	}
}
