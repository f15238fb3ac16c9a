package service

import (
	"context"
	"time"

	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/pkg/errors"
)

// TimesheetLocator finds the single live timesheet of an employee's week.
type TimesheetLocator struct {
	store TimesheetStore
}

// NewTimesheetLocator creates a locator over store.
func NewTimesheetLocator(store TimesheetStore) *TimesheetLocator {
	return &TimesheetLocator{store: store}
}

// FindOrCreate returns the stored timesheet for the week containing anyDate,
// or a new unsaved draft. Nothing is written here: the draft is inserted by
// the first successful entry save, and the storage uniqueness rule on
// (employee, week) turns a concurrent insert into errors.ErrDuplicate.
func (l *TimesheetLocator) FindOrCreate(ctx context.Context, employeeID string, anyDate time.Time, company string) (*domain.Timesheet, error) {
	ts, err := l.store.FindOpenByWeek(ctx, employeeID, domain.WeekStart(anyDate))
	if err == nil {
		return ts, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	return domain.NewTimesheet(employeeID, company, anyDate), nil
}
