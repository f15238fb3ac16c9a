package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/medflow/timesheet-service/pkg/database"
)

// EmployeeFixture is a row of the employees table
type EmployeeFixture struct {
	ID      string
	UserID  *string
	Name    string
	Company string
	Status  string
}

// ProjectFixture is a row of the projects table
type ProjectFixture struct {
	ID     string
	Name   string
	Status string
}

// TaskFixture is a row of the tasks table
type TaskFixture struct {
	ID        string
	Subject   string
	ProjectID *string
	Status    string
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

func (f *FixtureFactory) next() int {
	f.sequence++
	return f.sequence
}

// Employee returns an active employee linked to a fresh user id
func (f *FixtureFactory) Employee() *EmployeeFixture {
	n := f.next()
	user := fmt.Sprintf("user-%d-%s", n, uuid.New().String()[:8])
	return &EmployeeFixture{
		ID:      fmt.Sprintf("EMP-%05d", n),
		UserID:  &user,
		Name:    fmt.Sprintf("Employee %d", n),
		Company: "Test Company",
		Status:  "active",
	}
}

// Project returns an open project
func (f *FixtureFactory) Project() *ProjectFixture {
	n := f.next()
	return &ProjectFixture{
		ID:     fmt.Sprintf("PROJ-%04d", n),
		Name:   fmt.Sprintf("Project %d", n),
		Status: "open",
	}
}

// Task returns an open task on the given project, or a loose one when projectID is empty
func (f *FixtureFactory) Task(projectID string) *TaskFixture {
	n := f.next()
	t := &TaskFixture{
		ID:      fmt.Sprintf("TASK-%04d", n),
		Subject: fmt.Sprintf("Task %d", n),
		Status:  "open",
	}
	if projectID != "" {
		t.ProjectID = &projectID
	}
	return t
}

// Seeder writes fixtures straight into the database.
type Seeder struct {
	db *database.DB
}

// NewSeeder creates a seeder on db
func NewSeeder(db *database.DB) *Seeder {
	return &Seeder{db: db}
}

// Employee inserts an employee
func (s *Seeder) Employee(t *testing.T, ctx context.Context, e *EmployeeFixture) {
	t.Helper()
	s.exec(t, ctx, `INSERT INTO employees (id, user_id, employee_name, company, status) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.UserID, e.Name, e.Company, e.Status)
}

// Project inserts a project
func (s *Seeder) Project(t *testing.T, ctx context.Context, p *ProjectFixture) {
	t.Helper()
	s.exec(t, ctx, `INSERT INTO projects (id, project_name, status) VALUES ($1, $2, $3)`, p.ID, p.Name, p.Status)
}

// Task inserts a task
func (s *Seeder) Task(t *testing.T, ctx context.Context, task *TaskFixture) {
	t.Helper()
	s.exec(t, ctx, `INSERT INTO tasks (id, subject, project_id, status) VALUES ($1, $2, $3, $4)`,
		task.ID, task.Subject, task.ProjectID, task.Status)
}

// Assign gives userID an assignment on a project or task
func (s *Seeder) Assign(t *testing.T, ctx context.Context, refType, refID, userID, status string) {
	t.Helper()
	s.exec(t, ctx, `INSERT INTO assignments (reference_type, reference_id, user_id, status) VALUES ($1, $2, $3, $4)`,
		refType, refID, userID, status)
}

// ActivityType inserts an activity type
func (s *Seeder) ActivityType(t *testing.T, ctx context.Context, name string) {
	t.Helper()
	s.exec(t, ctx, `INSERT INTO activity_types (id, activity_type) VALUES ($1, $1)`, name)
}

// Bill links an invoice to a timesheet
func (s *Seeder) Bill(t *testing.T, ctx context.Context, timesheetID, invoice string) {
	t.Helper()
	s.exec(t, ctx, `INSERT INTO timesheet_billings (timesheet_id, invoice) VALUES ($1, $2)`, timesheetID, invoice)
}

func (s *Seeder) exec(t *testing.T, ctx context.Context, query string, args ...interface{}) {
	t.Helper()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}
