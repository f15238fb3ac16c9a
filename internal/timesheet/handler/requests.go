package handler

import (
	"time"

	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/internal/timesheet/service"
	"github.com/medflow/timesheet-service/pkg/errors"
)

// CreateEntryRequest is the body of POST /entries.
type CreateEntryRequest struct {
	Employee     string `json:"employee" validate:"required,max=140"`
	FromTime     string `json:"from_time" validate:"required"`
	ToTime       string `json:"to_time" validate:"required"`
	Project      string `json:"project,omitempty" validate:"max=140"`
	Task         string `json:"task,omitempty" validate:"max=140"`
	ActivityType string `json:"activity_type,omitempty" validate:"max=140"`
	Description  string `json:"description,omitempty"`
	Company      string `json:"company,omitempty" validate:"max=140"`
	Timesheet    string `json:"timesheet,omitempty" validate:"max=140"`
}

func (r CreateEntryRequest) toInput() (service.CreateEntryInput, error) {
	from, to, err := parseRange(r.FromTime, r.ToTime)
	if err != nil {
		return service.CreateEntryInput{}, err
	}
	return service.CreateEntryInput{
		EmployeeID:   r.Employee,
		FromTime:     from,
		ToTime:       to,
		ProjectID:    r.Project,
		TaskID:       r.Task,
		ActivityType: r.ActivityType,
		Description:  r.Description,
		Company:      r.Company,
		TimesheetID:  r.Timesheet,
	}, nil
}

// UpdateEntryRequest is the body of PATCH /entries/{id}. Absent fields keep
// their stored value; an empty string clears optional references.
type UpdateEntryRequest struct {
	FromTime     *string `json:"from_time,omitempty"`
	ToTime       *string `json:"to_time,omitempty"`
	Project      *string `json:"project,omitempty" validate:"omitempty,max=140"`
	Task         *string `json:"task,omitempty" validate:"omitempty,max=140"`
	ActivityType *string `json:"activity_type,omitempty" validate:"omitempty,max=140"`
	Description  *string `json:"description,omitempty"`
}

func (r UpdateEntryRequest) toPatch() (domain.EntryPatch, error) {
	patch := domain.EntryPatch{
		ProjectID:    r.Project,
		TaskID:       r.Task,
		ActivityType: r.ActivityType,
		Description:  r.Description,
	}

	invalid := map[string]string{}
	if r.FromTime != nil {
		t, err := domain.ParseTimestamp(*r.FromTime)
		if err != nil {
			invalid["from_time"] = err.Error()
		}
		patch.FromTime = &t
	}
	if r.ToTime != nil {
		t, err := domain.ParseTimestamp(*r.ToTime)
		if err != nil {
			invalid["to_time"] = err.Error()
		}
		patch.ToTime = &t
	}
	if len(invalid) > 0 {
		return domain.EntryPatch{}, errors.InvalidFields(invalid)
	}
	return patch, nil
}

// DeleteEntryResponse is returned by DELETE /entries/{id}.
type DeleteEntryResponse struct {
	TimesheetID      string `json:"timesheet_id"`
	TimesheetDeleted bool   `json:"timesheet_deleted"`
	Message          string `json:"message"`
}

func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	invalid := map[string]string{}
	from, err := domain.ParseTimestamp(fromRaw)
	if err != nil {
		invalid["from_time"] = err.Error()
	}
	to, err := domain.ParseTimestamp(toRaw)
	if err != nil {
		invalid["to_time"] = err.Error()
	}
	if len(invalid) > 0 {
		return time.Time{}, time.Time{}, errors.InvalidFields(invalid)
	}
	return from, to, nil
}

// parseBound reads a calendar query bound. A bare date used as an upper
// bound covers the whole day.
func parseBound(raw string, upper bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if d, err := time.ParseInLocation(time.DateOnly, raw, time.UTC); err == nil {
		if upper {
			d = d.AddDate(0, 0, 1)
		}
		return &d, nil
	}
	t, err := domain.ParseTimestamp(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
