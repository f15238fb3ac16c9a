package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/timesheet-service/pkg/errors"
)

// Status is ordered: anything below StatusCancelled is live, only StatusDraft is editable.
type Status int

const (
	StatusDraft Status = iota
	StatusSubmitted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSubmitted:
		return "submitted"
	case StatusCancelled:
		return "cancelled"
	default:
		return "draft"
	}
}

// ParseStatus maps the stored status text back to a Status.
func ParseStatus(s string) Status {
	switch s {
	case "submitted":
		return StatusSubmitted
	case "cancelled":
		return StatusCancelled
	default:
		return StatusDraft
	}
}

// TimeEntry is one logged activity inside a timesheet.
type TimeEntry struct {
	ID           string
	TimesheetID  string
	Idx          int
	FromTime     time.Time
	ToTime       time.Time
	Hours        float64
	ProjectID    string
	TaskID       string
	ActivityType string
	Description  string
}

// Range returns the entry's half-open interval.
func (e *TimeEntry) Range() Range {
	return Range{From: e.FromTime, To: e.ToTime}
}

// EntryPatch carries the fields of an update. Nil fields keep their value.
type EntryPatch struct {
	FromTime     *time.Time
	ToTime       *time.Time
	ProjectID    *string
	TaskID       *string
	ActivityType *string
	Description  *string
}

// Apply returns a copy of e with the patch applied.
func (p EntryPatch) Apply(e TimeEntry) TimeEntry {
	if p.FromTime != nil {
		e.FromTime = *p.FromTime
	}
	if p.ToTime != nil {
		e.ToTime = *p.ToTime
	}
	if p.ProjectID != nil {
		e.ProjectID = *p.ProjectID
	}
	if p.TaskID != nil {
		e.TaskID = *p.TaskID
	}
	if p.ActivityType != nil {
		e.ActivityType = *p.ActivityType
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	return e
}

// Timesheet is one employee's work week and the entries it owns.
type Timesheet struct {
	ID         string
	EmployeeID string
	Company    string
	WeekStart  time.Time
	WeekEnd    time.Time
	Status     Status
	TotalHours float64
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time

	entries   []*TimeEntry
	persisted bool
}

// NewTimesheet builds an unsaved draft for the week containing anyDate.
func NewTimesheet(employeeID, company string, anyDate time.Time) *Timesheet {
	start := WeekStart(anyDate)
	return &Timesheet{
		ID:         uuid.New().String(),
		EmployeeID: employeeID,
		Company:    company,
		WeekStart:  start,
		WeekEnd:    start.AddDate(0, 0, 6),
		Status:     StatusDraft,
	}
}

// Restore rebuilds a stored timesheet with its entries.
func Restore(t Timesheet, entries []TimeEntry) *Timesheet {
	t.entries = make([]*TimeEntry, 0, len(entries))
	for i := range entries {
		e := entries[i]
		t.entries = append(t.entries, &e)
	}
	t.persisted = true
	return &t
}

// Persisted reports whether the timesheet has a stored row.
func (t *Timesheet) Persisted() bool {
	return t.persisted
}

// MarkPersisted is called by the store after a successful insert.
func (t *Timesheet) MarkPersisted() {
	t.persisted = true
}

// Entries returns copies of the owned entries in sequence order.
func (t *Timesheet) Entries() []TimeEntry {
	out := make([]TimeEntry, len(t.entries))
	for i, e := range t.entries {
		out[i] = *e
	}
	return out
}

// IsEmpty reports whether the timesheet owns no entries.
func (t *Timesheet) IsEmpty() bool {
	return len(t.entries) == 0
}

// FindEntry returns a copy of the entry with id.
func (t *Timesheet) FindEntry(id string) (TimeEntry, bool) {
	if i := t.indexOf(id); i >= 0 {
		return *t.entries[i], true
	}
	return TimeEntry{}, false
}

// Covers reports whether d falls within the timesheet's week.
func (t *Timesheet) Covers(d time.Time) bool {
	day := Date(d)
	return !day.Before(t.WeekStart) && !day.After(t.WeekEnd)
}

// AddEntry validates e against the timesheet and appends it, assigning its
// identity, position and hours. The aggregate is recomputed.
func (t *Timesheet) AddEntry(e TimeEntry) (TimeEntry, error) {
	if err := t.checkEditable(); err != nil {
		return TimeEntry{}, err
	}
	if err := t.checkPlacement(e, ""); err != nil {
		return TimeEntry{}, err
	}

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.TimesheetID = t.ID
	e.Idx = t.nextIdx()
	e.Hours = HoursBetween(e.FromTime, e.ToTime)

	stored := e
	t.entries = append(t.entries, &stored)
	t.RecomputeTotal()

	return stored, nil
}

// UpdateEntry applies patch to the entry with id, re-running every check
// with the effective values.
func (t *Timesheet) UpdateEntry(id string, patch EntryPatch) (TimeEntry, error) {
	i := t.indexOf(id)
	if i < 0 {
		return TimeEntry{}, errors.NotFound("time entry")
	}
	if err := t.checkEditable(); err != nil {
		return TimeEntry{}, err
	}

	updated := patch.Apply(*t.entries[i])
	if err := t.checkPlacement(updated, id); err != nil {
		return TimeEntry{}, err
	}
	updated.Hours = HoursBetween(updated.FromTime, updated.ToTime)

	*t.entries[i] = updated
	t.RecomputeTotal()

	return updated, nil
}

// RemoveEntry drops the entry with id and recomputes the aggregate.
func (t *Timesheet) RemoveEntry(id string) (TimeEntry, error) {
	i := t.indexOf(id)
	if i < 0 {
		return TimeEntry{}, errors.NotFound("time entry")
	}
	if err := t.checkEditable(); err != nil {
		return TimeEntry{}, err
	}

	removed := *t.entries[i]
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	for n, e := range t.entries {
		e.Idx = n + 1
	}
	t.RecomputeTotal()

	return removed, nil
}

// RecomputeTotal sets TotalHours to the sum of the entries' hours.
func (t *Timesheet) RecomputeTotal() float64 {
	var total float64
	for _, e := range t.entries {
		total += e.Hours
	}
	t.TotalHours = roundHours(total)
	return t.TotalHours
}

// HoursBetween is the fractional number of hours from from to to.
func HoursBetween(from, to time.Time) float64 {
	return roundHours(to.Sub(from).Hours())
}

// ValidateRange rejects empty, inverted and multi-day ranges.
func ValidateRange(from, to time.Time) error {
	if !to.After(from) {
		return errors.Validation("errors.invalid_range", nil)
	}
	if !SameDay(from, to) {
		return errors.Validation("errors.different_days", nil)
	}
	return nil
}

func (t *Timesheet) checkEditable() error {
	if t.Status != StatusDraft {
		return errors.Validation("errors.timesheet_not_draft", map[string]string{"status": t.Status.String()})
	}
	return nil
}

func (t *Timesheet) checkPlacement(e TimeEntry, skipID string) error {
	if err := ValidateRange(e.FromTime, e.ToTime); err != nil {
		return err
	}
	if !t.Covers(e.FromTime) {
		return errors.Validation("errors.outside_week", map[string]string{
			"week_start": t.WeekStart.Format(DateLayout),
			"week_end":   t.WeekEnd.Format(DateLayout),
		})
	}
	if conflict := FindOverlap(e.Range(), t.entries, skipID); conflict != nil {
		return errors.Overlap(conflict.FromTime.Format("15:04"), conflict.ToTime.Format("15:04"))
	}
	return nil
}

func (t *Timesheet) indexOf(id string) int {
	for i, e := range t.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (t *Timesheet) nextIdx() int {
	max := 0
	for _, e := range t.entries {
		if e.Idx > max {
			max = e.Idx
		}
	}
	return max + 1
}

func roundHours(h float64) float64 {
	return math.Round(h*1e6) / 1e6
}
