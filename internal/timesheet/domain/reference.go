package domain

import "time"

// Employee status values mirrored from the staff directory.
const (
	EmployeeActive   = "active"
	EmployeeInactive = "inactive"
)

// Employee is read-only reference data synced from the staff service.
type Employee struct {
	ID      string  `json:"id" db:"id"`
	UserID  *string `json:"user_id,omitempty" db:"user_id"`
	Name    string  `json:"employee_name" db:"employee_name"`
	Company string  `json:"company" db:"company"`
	Status  string  `json:"status" db:"status"`
}

// DisplayName falls back to the id when the name is blank.
func (e Employee) DisplayName() string {
	if e.Name == "" {
		return e.ID
	}
	return e.Name
}

// Project is an assignable unit of work.
type Project struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"project_name" db:"project_name"`
	Status string `json:"status,omitempty" db:"status"`
}

// Task belongs to at most one project.
type Task struct {
	ID        string `json:"id" db:"id"`
	Subject   string `json:"subject" db:"subject"`
	ProjectID string `json:"project_id,omitempty" db:"project_id"`
	Status    string `json:"status,omitempty" db:"status"`
}

// ActivityType categorises an entry.
type ActivityType struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"activity_type" db:"activity_type"`
}

// EventRow is one entry joined with its timesheet and display names.
type EventRow struct {
	EntryID      string    `db:"entry_id"`
	TimesheetID  string    `db:"timesheet_id"`
	EmployeeID   string    `db:"employee_id"`
	EmployeeName string    `db:"employee_name"`
	Company      string    `db:"company"`
	Status       string    `db:"status"`
	FromTime     time.Time `db:"from_time"`
	ToTime       time.Time `db:"to_time"`
	Hours        float64   `db:"hours"`
	ProjectID    string    `db:"project_id"`
	ProjectName  string    `db:"project_name"`
	TaskID       string    `db:"task_id"`
	TaskSubject  string    `db:"task_subject"`
	ActivityType string    `db:"activity_type"`
	Description  string    `db:"description"`
}

// EventFilter narrows the calendar query. Empty fields do not filter.
type EventFilter struct {
	Start        *time.Time
	End          *time.Time
	EmployeeID   string
	ProjectID    string
	ActivityType string
	TaskID       string
}

// TimesheetSummary is a compact timesheet listing row.
type TimesheetSummary struct {
	ID           string  `json:"id" db:"id"`
	EmployeeID   string  `json:"employee_id" db:"employee_id"`
	EmployeeName string  `json:"employee_name" db:"employee_name"`
	WeekStart    string  `json:"week_start" db:"week_start"`
	WeekEnd      string  `json:"week_end" db:"week_end"`
	TotalHours   float64 `json:"total_hours" db:"total_hours"`
}
