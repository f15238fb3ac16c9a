package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/pkg/errors"
)

type storedTimesheet struct {
	ts      domain.Timesheet
	entries []domain.TimeEntry
}

type assignment struct {
	refType string
	refID   string
	userID  string
	open    bool
}

// memStore implements every service port over maps. Transaction snapshots
// the timesheets so a failing request leaves no partial write behind.
type memStore struct {
	mu sync.Mutex

	timesheets    map[string]storedTimesheet
	employees     map[string]domain.Employee
	projects      map[string]domain.Project
	tasks         map[string]domain.Task
	assignments   []assignment
	activityTypes []domain.ActivityType

	referenced   map[string]bool
	beforeInsert func(ts *domain.Timesheet)
	beforeUpdate func(ts *domain.Timesheet)
	saves        int
}

func newMemStore() *memStore {
	return &memStore{
		timesheets: map[string]storedTimesheet{},
		employees:  map[string]domain.Employee{},
		projects:   map[string]domain.Project{},
		tasks:      map[string]domain.Task{},
		referenced: map[string]bool{},
	}
}

func (m *memStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	snapshot := make(map[string]storedTimesheet, len(m.timesheets))
	for k, v := range m.timesheets {
		snapshot[k] = v
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.timesheets = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// ---- TimesheetStore ----

func (m *memStore) load(s storedTimesheet) *domain.Timesheet {
	return domain.Restore(s.ts, s.entries)
}

func (m *memStore) FindOpenByWeek(ctx context.Context, employeeID string, weekStart time.Time) (*domain.Timesheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.timesheets {
		if s.ts.EmployeeID == employeeID && s.ts.WeekStart.Equal(weekStart) && s.ts.Status != domain.StatusCancelled {
			return m.load(s), nil
		}
	}
	return nil, errors.ErrNotFound
}

func (m *memStore) Get(ctx context.Context, id string) (*domain.Timesheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.timesheets[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return m.load(s), nil
}

func (m *memStore) GetByEntryID(ctx context.Context, entryID string) (*domain.Timesheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.timesheets {
		for _, e := range s.entries {
			if e.ID == entryID {
				return m.load(s), nil
			}
		}
	}
	return nil, errors.ErrNotFound
}

func (m *memStore) Save(ctx context.Context, ts *domain.Timesheet) error {
	if !ts.Persisted() && m.beforeInsert != nil {
		hook := m.beforeInsert
		m.beforeInsert = nil
		hook(ts)
	}
	if ts.Persisted() && m.beforeUpdate != nil {
		hook := m.beforeUpdate
		m.beforeUpdate = nil
		hook(ts)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++

	if !ts.Persisted() {
		for _, s := range m.timesheets {
			if s.ts.EmployeeID == ts.EmployeeID && s.ts.WeekStart.Equal(ts.WeekStart) && s.ts.Status != domain.StatusCancelled {
				return fmt.Errorf("%w: timesheets_employee_week_open", errors.ErrDuplicate)
			}
		}
		ts.Version = 1
		ts.MarkPersisted()
	} else {
		stored, ok := m.timesheets[ts.ID]
		if !ok || stored.ts.Version != ts.Version {
			return errors.ErrStaleWrite
		}
		ts.Version++
	}

	m.timesheets[ts.ID] = storedTimesheet{ts: *ts, entries: ts.Entries()}
	return nil
}

func (m *memStore) Delete(ctx context.Context, ts *domain.Timesheet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.referenced[ts.ID] {
		return fmt.Errorf("%w: timesheet_approvals_timesheet_id_fkey", errors.ErrReferenced)
	}
	delete(m.timesheets, ts.ID)
	return nil
}

func (m *memStore) ListEvents(ctx context.Context, f domain.EventFilter) ([]domain.EventRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rows []domain.EventRow
	for _, s := range m.timesheets {
		if s.ts.Status >= domain.StatusCancelled {
			continue
		}
		if f.EmployeeID != "" && s.ts.EmployeeID != f.EmployeeID {
			continue
		}
		for _, e := range s.entries {
			if f.Start != nil && e.FromTime.Before(*f.Start) {
				continue
			}
			if f.End != nil && e.ToTime.After(*f.End) {
				continue
			}
			if f.ProjectID != "" && e.ProjectID != f.ProjectID {
				continue
			}
			if f.TaskID != "" && e.TaskID != f.TaskID {
				continue
			}
			if f.ActivityType != "" && e.ActivityType != f.ActivityType {
				continue
			}
			rows = append(rows, domain.EventRow{
				EntryID:      e.ID,
				TimesheetID:  s.ts.ID,
				EmployeeID:   s.ts.EmployeeID,
				EmployeeName: m.employees[s.ts.EmployeeID].Name,
				Company:      s.ts.Company,
				Status:       s.ts.Status.String(),
				FromTime:     e.FromTime,
				ToTime:       e.ToTime,
				Hours:        e.Hours,
				ProjectID:    e.ProjectID,
				ProjectName:  m.projects[e.ProjectID].Name,
				TaskID:       e.TaskID,
				TaskSubject:  m.tasks[e.TaskID].Subject,
				ActivityType: e.ActivityType,
				Description:  e.Description,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].FromTime.Before(rows[j].FromTime) })
	return rows, nil
}

func (m *memStore) TimesheetProjects(ctx context.Context, timesheetID string) ([]domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []domain.Project
	for _, e := range m.timesheets[timesheetID].entries {
		if e.ProjectID != "" && !seen[e.ProjectID] {
			seen[e.ProjectID] = true
			out = append(out, m.projects[e.ProjectID])
		}
	}
	return out, nil
}

func (m *memStore) ProjectTimesheets(ctx context.Context, projectID string) ([]domain.TimesheetSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TimesheetSummary
	for _, s := range m.timesheets {
		if s.ts.Status != domain.StatusDraft {
			continue
		}
		for _, e := range s.entries {
			if e.ProjectID == projectID {
				out = append(out, domain.TimesheetSummary{
					ID:           s.ts.ID,
					EmployeeID:   s.ts.EmployeeID,
					EmployeeName: m.employees[s.ts.EmployeeID].Name,
					WeekStart:    s.ts.WeekStart.Format(domain.DateLayout),
					WeekEnd:      s.ts.WeekEnd.Format(domain.DateLayout),
					TotalHours:   s.ts.TotalHours,
				})
				break
			}
		}
	}
	return out, nil
}

// ---- Directory ----

func (m *memStore) Employee(ctx context.Context, id string) (*domain.Employee, error) {
	if e, ok := m.employees[id]; ok {
		return &e, nil
	}
	return nil, errors.ErrNotFound
}

func (m *memStore) EmployeeByUser(ctx context.Context, userID string) (*domain.Employee, error) {
	for _, e := range m.employees {
		if e.UserID != nil && *e.UserID == userID {
			e := e
			return &e, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (m *memStore) ActiveEmployees(ctx context.Context) ([]domain.Employee, error) {
	var out []domain.Employee
	for _, e := range m.employees {
		if e.Status == domain.EmployeeActive {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---- Catalog ----

func (m *memStore) Project(ctx context.Context, id string) (*domain.Project, error) {
	if p, ok := m.projects[id]; ok {
		return &p, nil
	}
	return nil, errors.ErrNotFound
}

func (m *memStore) Task(ctx context.Context, id string) (*domain.Task, error) {
	if t, ok := m.tasks[id]; ok {
		return &t, nil
	}
	return nil, errors.ErrNotFound
}

func (m *memStore) OpenProjects(ctx context.Context) ([]domain.Project, error) {
	var out []domain.Project
	for _, p := range m.projects {
		if p.Status == "open" {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) AssignedProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	var out []domain.Project
	for _, a := range m.assignments {
		if a.refType == "project" && a.userID == userID && a.open {
			out = append(out, m.projects[a.refID])
		}
	}
	return out, nil
}

func (m *memStore) IsAssignedToProject(ctx context.Context, userID, projectID string) (bool, error) {
	for _, a := range m.assignments {
		if a.refType == "project" && a.refID == projectID && a.userID == userID && a.open {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) AssignedTasks(ctx context.Context, employeeID, projectID string) ([]domain.Task, error) {
	emp, ok := m.employees[employeeID]
	if !ok || emp.UserID == nil {
		return nil, nil
	}
	var out []domain.Task
	for _, a := range m.assignments {
		if a.refType != "task" || a.userID != *emp.UserID || !a.open {
			continue
		}
		if t, ok := m.tasks[a.refID]; ok && t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) ActivityTypes(ctx context.Context) ([]domain.ActivityType, error) {
	return m.activityTypes, nil
}

// ---- publisher and recorder fakes ----

type publishedEvent struct {
	kind        string
	timesheetID string
	entryID     string
}

type fakePublisher struct {
	events []publishedEvent
}

func (p *fakePublisher) EntryCreated(ctx context.Context, ts *domain.Timesheet, e domain.TimeEntry) {
	p.events = append(p.events, publishedEvent{"entry.created", ts.ID, e.ID})
}

func (p *fakePublisher) EntryUpdated(ctx context.Context, ts *domain.Timesheet, e domain.TimeEntry) {
	p.events = append(p.events, publishedEvent{"entry.updated", ts.ID, e.ID})
}

func (p *fakePublisher) EntryDeleted(ctx context.Context, ts *domain.Timesheet, e domain.TimeEntry) {
	p.events = append(p.events, publishedEvent{"entry.deleted", ts.ID, e.ID})
}

func (p *fakePublisher) TimesheetDeleted(ctx context.Context, ts *domain.Timesheet) {
	p.events = append(p.events, publishedEvent{"timesheet.deleted", ts.ID, ""})
}

type fakeRecorder struct {
	operations map[string]int
	created    int
	reconciled map[string]int
	retries    int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{operations: map[string]int{}, reconciled: map[string]int{}}
}

func (r *fakeRecorder) EntryOperation(op, outcome string) { r.operations[op+":"+outcome]++ }
func (r *fakeRecorder) TimesheetCreated()                 { r.created++ }
func (r *fakeRecorder) Reconciled(action string)          { r.reconciled[action]++ }
func (r *fakeRecorder) RaceRetried()                      { r.retries++ }
