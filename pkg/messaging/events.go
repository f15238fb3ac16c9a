package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Exchange names
const (
	ExchangeTimesheetEvents = "timesheet.events"
	ExchangeStaffEvents     = "staff.events"
)

// Timesheet events
const (
	EventEntryCreated     = "timesheet.entry.created"
	EventEntryUpdated     = "timesheet.entry.updated"
	EventEntryDeleted     = "timesheet.entry.deleted"
	EventTimesheetDeleted = "timesheet.deleted"
)

// Staff events consumed to keep the employee directory in sync
const (
	EventEmployeeCreated = "staff.employee.created"
	EventEmployeeUpdated = "staff.employee.updated"
	EventEmployeeDeleted = "staff.employee.deleted"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	ActorID       string          `json:"actor_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// EntryEvent is published when a time entry is created, updated or deleted.
type EntryEvent struct {
	EntryID     string    `json:"entry_id"`
	TimesheetID string    `json:"timesheet_id"`
	EmployeeID  string    `json:"employee_id"`
	WeekStart   string    `json:"week_start"`
	FromTime    time.Time `json:"from_time"`
	ToTime      time.Time `json:"to_time"`
	Hours       float64   `json:"hours"`
	ProjectID   string    `json:"project_id,omitempty"`
	TaskID      string    `json:"task_id,omitempty"`
	TotalHours  float64   `json:"total_hours"`
}

// TimesheetDeletedEvent is published when an emptied timesheet is removed.
type TimesheetDeletedEvent struct {
	TimesheetID string `json:"timesheet_id"`
	EmployeeID  string `json:"employee_id"`
	WeekStart   string `json:"week_start"`
}

// EmployeeEvent is the payload of staff.employee.* events.
type EmployeeEvent struct {
	EmployeeID string  `json:"employee_id"`
	UserID     *string `json:"user_id,omitempty"`
	Name       string  `json:"name"`
	Company    string  `json:"company,omitempty"`
	Status     string  `json:"status,omitempty"`
}
