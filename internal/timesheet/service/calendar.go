package service

import (
	"context"
	"fmt"

	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/pkg/errors"
	"github.com/medflow/timesheet-service/pkg/logger"
)

// CalendarEvent is one entry rendered for the calendar.
type CalendarEvent struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	Employee     string  `json:"employee"`
	EmployeeName string  `json:"employee_name"`
	Project      string  `json:"project,omitempty"`
	ProjectName  string  `json:"project_name,omitempty"`
	Task         string  `json:"task,omitempty"`
	TaskSubject  string  `json:"task_subject,omitempty"`
	ActivityType string  `json:"activity_type,omitempty"`
	Description  string  `json:"description,omitempty"`
	Hours        float64 `json:"hours"`
	Company      string  `json:"company,omitempty"`
	Timesheet    string  `json:"timesheet"`
	DocStatus    int     `json:"doc_status"`
	ColorHex     string  `json:"color"`
}

// FilterOptions lists the values a caller may filter the calendar by.
type FilterOptions struct {
	Employees       []domain.Employee     `json:"employees"`
	Projects        []domain.Project      `json:"projects"`
	ActivityTypes   []domain.ActivityType `json:"activity_types"`
	CallerIsManager bool                  `json:"caller_is_manager"`
	CurrentEmployee string                `json:"current_employee,omitempty"`
}

// CalendarService serves the read side of the calendar.
type CalendarService struct {
	store     TimesheetStore
	directory Directory
	catalog   Catalog
	policy    *AccessPolicy
	logger    *logger.Logger
}

// NewCalendarService creates a calendar service.
func NewCalendarService(store TimesheetStore, directory Directory, catalog Catalog, policy *AccessPolicy, log *logger.Logger) *CalendarService {
	return &CalendarService{
		store:     store,
		directory: directory,
		catalog:   catalog,
		policy:    policy,
		logger:    log.WithComponent("calendar_service"),
	}
}

// ListEntries returns calendar events matching filter, scoped to the caller.
func (s *CalendarService) ListEntries(ctx context.Context, caller domain.Caller, filter domain.EventFilter) ([]CalendarEvent, error) {
	if err := s.policy.RequireAccess(caller); err != nil {
		return nil, err
	}

	employeeID, ok := s.policy.ScopeEmployee(caller, filter.EmployeeID)
	if !ok {
		return []CalendarEvent{}, nil
	}
	filter.EmployeeID = employeeID

	rows, err := s.store.ListEvents(ctx, filter)
	if err != nil {
		return nil, failed(s.logger, "list entries", err)
	}

	events := make([]CalendarEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, toCalendarEvent(row))
	}
	return events, nil
}

func toCalendarEvent(row domain.EventRow) CalendarEvent {
	name := row.EmployeeName
	if name == "" {
		name = row.EmployeeID
	}
	return CalendarEvent{
		ID:           row.EntryID,
		Title:        fmt.Sprintf("%s - %s", row.ProjectID, row.ActivityType),
		Start:        domain.FormatTimestamp(row.FromTime),
		End:          domain.FormatTimestamp(row.ToTime),
		Employee:     row.EmployeeID,
		EmployeeName: name,
		Project:      row.ProjectID,
		ProjectName:  row.ProjectName,
		Task:         row.TaskID,
		TaskSubject:  row.TaskSubject,
		ActivityType: row.ActivityType,
		Description:  row.Description,
		Hours:        row.Hours,
		Company:      row.Company,
		Timesheet:    row.TimesheetID,
		DocStatus:    int(domain.ParseStatus(row.Status)),
		ColorHex:     ProjectColor(row.ProjectID),
	}
}

// FilterOptions returns the employees, projects and activity types visible
// to the caller. Restricted callers see themselves and their assigned projects.
func (s *CalendarService) FilterOptions(ctx context.Context, caller domain.Caller) (*FilterOptions, error) {
	if err := s.policy.RequireAccess(caller); err != nil {
		return nil, err
	}

	opts := &FilterOptions{
		Employees:       []domain.Employee{},
		Projects:        []domain.Project{},
		CallerIsManager: caller.IsManager(),
		CurrentEmployee: caller.EmployeeID(),
	}

	var err error
	if caller.IsManager() {
		if opts.Employees, err = s.directory.ActiveEmployees(ctx); err != nil {
			return nil, failed(s.logger, "filter options", err)
		}
		if opts.Projects, err = s.catalog.OpenProjects(ctx); err != nil {
			return nil, failed(s.logger, "filter options", err)
		}
	} else if caller.Employee != nil {
		self := *caller.Employee
		self.Name = self.DisplayName()
		opts.Employees = []domain.Employee{self}
		if opts.Projects, err = s.catalog.AssignedProjects(ctx, caller.UserID); err != nil {
			return nil, failed(s.logger, "filter options", err)
		}
	} else {
		s.logger.Warn().Str("user_id", caller.UserID).Msg("user has no linked employee")
	}

	if opts.ActivityTypes, err = s.catalog.ActivityTypes(ctx); err != nil {
		return nil, failed(s.logger, "filter options", err)
	}
	return opts, nil
}

// ResolveTaskProject returns the project of a task, or "" when it has none.
func (s *CalendarService) ResolveTaskProject(ctx context.Context, caller domain.Caller, taskID string) (string, error) {
	if err := s.policy.RequireAccess(caller); err != nil {
		return "", err
	}
	task, err := s.catalog.Task(ctx, taskID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return "", nil
		}
		return "", failed(s.logger, "resolve task project", err)
	}
	return task.ProjectID, nil
}

// EmployeeHasAssignedTasks reports whether the employee holds open task
// assignments on project. Restricted callers asking about others get false.
func (s *CalendarService) EmployeeHasAssignedTasks(ctx context.Context, caller domain.Caller, employeeID, projectID string) (bool, error) {
	tasks, err := s.EmployeeTasks(ctx, caller, employeeID, projectID)
	if err != nil {
		return false, err
	}
	return len(tasks) > 0, nil
}

// EmployeeTasks lists the tasks assigned to the employee on project.
func (s *CalendarService) EmployeeTasks(ctx context.Context, caller domain.Caller, employeeID, projectID string) ([]domain.Task, error) {
	if err := s.policy.RequireAccess(caller); err != nil {
		return nil, err
	}
	if employeeID == "" || projectID == "" {
		return []domain.Task{}, nil
	}
	if _, ok := s.policy.ScopeEmployee(caller, employeeID); !ok {
		return []domain.Task{}, nil
	}

	tasks, err := s.catalog.AssignedTasks(ctx, employeeID, projectID)
	if err != nil {
		return nil, failed(s.logger, "employee tasks", err)
	}
	return tasks, nil
}

// TimesheetProjects lists the projects already used in a timesheet, falling
// back to every open project when it has none.
func (s *CalendarService) TimesheetProjects(ctx context.Context, caller domain.Caller, timesheetID string) ([]domain.Project, error) {
	if err := s.policy.RequireAccess(caller); err != nil {
		return nil, err
	}

	ts, err := s.store.Get(ctx, timesheetID)
	if err != nil {
		return nil, failed(s.logger, "timesheet projects", notFoundAs(err, "timesheet"))
	}
	if _, ok := s.policy.ScopeEmployee(caller, ts.EmployeeID); !ok {
		return []domain.Project{}, nil
	}

	projects, err := s.store.TimesheetProjects(ctx, timesheetID)
	if err != nil {
		return nil, failed(s.logger, "timesheet projects", err)
	}
	if len(projects) > 0 {
		return projects, nil
	}

	projects, err = s.catalog.OpenProjects(ctx)
	if err != nil {
		return nil, failed(s.logger, "timesheet projects", err)
	}
	return projects, nil
}

// ProjectTimesheets lists draft timesheets holding entries on project.
// Restricted callers only see their own.
func (s *CalendarService) ProjectTimesheets(ctx context.Context, caller domain.Caller, projectID string) ([]domain.TimesheetSummary, error) {
	if err := s.policy.RequireAccess(caller); err != nil {
		return nil, err
	}

	all, err := s.store.ProjectTimesheets(ctx, projectID)
	if err != nil {
		return nil, failed(s.logger, "project timesheets", err)
	}
	if caller.IsManager() {
		return all, nil
	}

	own := make([]domain.TimesheetSummary, 0, len(all))
	for _, ts := range all {
		if caller.Owns(ts.EmployeeID) {
			own = append(own, ts)
		}
	}
	return own, nil
}
