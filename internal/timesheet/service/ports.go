package service

import (
	"context"
	"time"

	"github.com/medflow/timesheet-service/internal/timesheet/domain"
)

// TimesheetStore persists timesheet aggregates. Lookups return an error
// wrapping errors.ErrNotFound when nothing matches.
type TimesheetStore interface {
	// FindOpenByWeek returns the non-cancelled timesheet of employeeID whose
	// week starts on weekStart.
	FindOpenByWeek(ctx context.Context, employeeID string, weekStart time.Time) (*domain.Timesheet, error)
	Get(ctx context.Context, id string) (*domain.Timesheet, error)
	GetByEntryID(ctx context.Context, entryID string) (*domain.Timesheet, error)
	// Save inserts unsaved timesheets and otherwise updates guarded by
	// Version. A lost insert race wraps errors.ErrDuplicate, a stale version
	// errors.ErrStaleWrite.
	Save(ctx context.Context, ts *domain.Timesheet) error
	// Delete removes the timesheet and its entries. Rows referencing the
	// timesheet make it fail with errors.ErrReferenced.
	Delete(ctx context.Context, ts *domain.Timesheet) error

	ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.EventRow, error)
	TimesheetProjects(ctx context.Context, timesheetID string) ([]domain.Project, error)
	ProjectTimesheets(ctx context.Context, projectID string) ([]domain.TimesheetSummary, error)
}

// Directory resolves employees.
type Directory interface {
	Employee(ctx context.Context, id string) (*domain.Employee, error)
	EmployeeByUser(ctx context.Context, userID string) (*domain.Employee, error)
	ActiveEmployees(ctx context.Context) ([]domain.Employee, error)
}

// Catalog answers questions about projects, tasks, assignments and activity types.
type Catalog interface {
	Project(ctx context.Context, id string) (*domain.Project, error)
	Task(ctx context.Context, id string) (*domain.Task, error)
	OpenProjects(ctx context.Context) ([]domain.Project, error)
	AssignedProjects(ctx context.Context, userID string) ([]domain.Project, error)
	IsAssignedToProject(ctx context.Context, userID, projectID string) (bool, error)
	AssignedTasks(ctx context.Context, employeeID, projectID string) ([]domain.Task, error)
	ActivityTypes(ctx context.Context) ([]domain.ActivityType, error)
}

// Transactor runs fn in one transaction carried by the context.
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher emits timesheet domain events after a commit.
type EventPublisher interface {
	EntryCreated(ctx context.Context, ts *domain.Timesheet, entry domain.TimeEntry)
	EntryUpdated(ctx context.Context, ts *domain.Timesheet, entry domain.TimeEntry)
	EntryDeleted(ctx context.Context, ts *domain.Timesheet, entry domain.TimeEntry)
	TimesheetDeleted(ctx context.Context, ts *domain.Timesheet)
}

// Recorder receives lifecycle measurements.
type Recorder interface {
	EntryOperation(operation, outcome string)
	TimesheetCreated()
	Reconciled(action string)
	RaceRetried()
}
