package service

import (
	"context"
	"time"

	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/pkg/config"
	"github.com/medflow/timesheet-service/pkg/errors"
	"github.com/medflow/timesheet-service/pkg/logger"
)

// maxSaveAttempts bounds retries after losing the first-entry insert race.
const maxSaveAttempts = 2

// CreateEntryInput is the request to log one activity.
type CreateEntryInput struct {
	EmployeeID   string
	FromTime     time.Time
	ToTime       time.Time
	ProjectID    string
	TaskID       string
	ActivityType string
	Description  string
	Company      string
	// TimesheetID targets an existing timesheet instead of the week lookup.
	TimesheetID string
}

// CreateEntryResult identifies the stored entry and its timesheet.
type CreateEntryResult struct {
	TimesheetID      string  `json:"timesheet_id"`
	EntryID          string  `json:"entry_id"`
	TimesheetCreated bool    `json:"timesheet_created"`
	Hours            float64 `json:"hours"`
	TotalHours       float64 `json:"total_hours"`
}

// UpdateEntryResult reports the entry after an update.
type UpdateEntryResult struct {
	TimesheetID string  `json:"timesheet_id"`
	EntryID     string  `json:"entry_id"`
	Hours       float64 `json:"hours"`
	TotalHours  float64 `json:"total_hours"`
}

// DeleteEntryResult reports whether the emptied timesheet went too.
type DeleteEntryResult struct {
	TimesheetID      string `json:"timesheet_id"`
	TimesheetDeleted bool   `json:"timesheet_deleted"`
	MessageKey       string `json:"-"`
}

// EntryService creates, updates and deletes time entries.
type EntryService struct {
	tx         Transactor
	store      TimesheetStore
	directory  Directory
	catalog    Catalog
	policy     *AccessPolicy
	locator    *TimesheetLocator
	reconciler *Reconciler
	publisher  EventPublisher
	recorder   Recorder
	cfg        config.PolicyConfig
	logger     *logger.Logger
}

// NewEntryService wires the entry lifecycle.
func NewEntryService(
	tx Transactor,
	store TimesheetStore,
	directory Directory,
	catalog Catalog,
	policy *AccessPolicy,
	publisher EventPublisher,
	recorder Recorder,
	cfg config.PolicyConfig,
	log *logger.Logger,
) *EntryService {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &EntryService{
		tx:         tx,
		store:      store,
		directory:  directory,
		catalog:    catalog,
		policy:     policy,
		locator:    NewTimesheetLocator(store),
		reconciler: NewReconciler(store, policy, recorder),
		publisher:  publisher,
		recorder:   recorder,
		cfg:        cfg,
		logger:     log.WithComponent("entry_service"),
	}
}

// ============================================================================
// Create
// ============================================================================

// Create logs a new activity, creating the week's timesheet when needed.
func (s *EntryService) Create(ctx context.Context, caller domain.Caller, in CreateEntryInput) (*CreateEntryResult, error) {
	result, ts, entry, err := s.create(ctx, caller, in)
	if err != nil {
		err = failed(s.logger, "create entry", err)
		s.recorder.EntryOperation("create", errors.KindOf(err).String())
		return nil, err
	}
	s.recorder.EntryOperation("create", "ok")
	if result.TimesheetCreated {
		s.recorder.TimesheetCreated()
	}

	s.publisher.EntryCreated(ctx, ts, entry)
	s.logger.Info().
		Str("employee_id", ts.EmployeeID).
		Str("timesheet_id", ts.ID).
		Str("entry_id", entry.ID).
		Bool("timesheet_created", result.TimesheetCreated).
		Msg("time entry created")

	return result, nil
}

func (s *EntryService) create(ctx context.Context, caller domain.Caller, in CreateEntryInput) (*CreateEntryResult, *domain.Timesheet, domain.TimeEntry, error) {
	var (
		result *CreateEntryResult
		ts     *domain.Timesheet
		entry  domain.TimeEntry
	)

	if err := s.policy.AuthorizeCreate(caller, in.EmployeeID); err != nil {
		return nil, nil, entry, err
	}
	if err := domain.ValidateRange(in.FromTime, in.ToTime); err != nil {
		return nil, nil, entry, err
	}

	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		company, err := s.companyFor(ctx, in)
		if err != nil {
			return err
		}

		for attempt := 1; ; attempt++ {
			ts, err = s.target(ctx, caller, in, company)
			if err != nil {
				return err
			}
			if err := s.policy.AuthorizeMutation(caller, ts, "errors.modify_timesheet"); err != nil {
				return err
			}

			projectID, err := s.checkReferences(ctx, caller, ts.EmployeeID, in.ProjectID, in.TaskID)
			if err != nil {
				return err
			}

			entry, err = ts.AddEntry(domain.TimeEntry{
				FromTime:     in.FromTime,
				ToTime:       in.ToTime,
				ProjectID:    projectID,
				TaskID:       in.TaskID,
				ActivityType: in.ActivityType,
				Description:  in.Description,
			})
			if err != nil {
				return err
			}

			created := !ts.Persisted()
			err = s.store.Save(ctx, ts)
			if created && errors.Is(err, errors.ErrDuplicate) && attempt < maxSaveAttempts {
				// Another request inserted this week first: append to its timesheet instead.
				s.recorder.RaceRetried()
				s.logger.Warn().
					Str("employee_id", ts.EmployeeID).
					Time("week_start", ts.WeekStart).
					Msg("lost timesheet creation race, retrying against stored week")
				continue
			}
			if err != nil {
				return err
			}

			result = &CreateEntryResult{
				TimesheetID:      ts.ID,
				EntryID:          entry.ID,
				TimesheetCreated: created,
				Hours:            entry.Hours,
				TotalHours:       ts.TotalHours,
			}
			return nil
		}
	})
	if err != nil {
		return nil, nil, entry, err
	}

	return result, ts, entry, nil
}

func (s *EntryService) target(ctx context.Context, caller domain.Caller, in CreateEntryInput, company string) (*domain.Timesheet, error) {
	if in.TimesheetID == "" {
		return s.locator.FindOrCreate(ctx, in.EmployeeID, in.FromTime, company)
	}

	ts, err := s.store.Get(ctx, in.TimesheetID)
	if err != nil {
		return nil, notFoundAs(err, "timesheet")
	}
	if caller.IsRestricted() && !caller.Owns(ts.EmployeeID) {
		return nil, errors.Forbidden("errors.modify_timesheet", nil)
	}
	return ts, nil
}

func (s *EntryService) companyFor(ctx context.Context, in CreateEntryInput) (string, error) {
	if in.Company != "" {
		return in.Company, nil
	}
	emp, err := s.directory.Employee(ctx, in.EmployeeID)
	if err != nil {
		return "", notFoundAs(err, "employee")
	}
	if emp.Company != "" {
		return emp.Company, nil
	}
	return s.cfg.DefaultCompany, nil
}

// checkReferences enforces that a task's project matches the entry project
// and, when configured, that the employee is assigned to that project.
// It returns the project to store, taken from the task when none was given.
func (s *EntryService) checkReferences(ctx context.Context, caller domain.Caller, employeeID, projectID, taskID string) (string, error) {
	if taskID == "" {
		return projectID, nil
	}

	task, err := s.catalog.Task(ctx, taskID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return "", errors.Validation("errors.task_not_found", nil)
		}
		return "", err
	}
	if task.ProjectID == "" {
		return projectID, nil
	}

	if projectID != "" && projectID != task.ProjectID {
		return "", errors.Validation("errors.project_mismatch", map[string]string{
			"project":      s.projectName(ctx, projectID),
			"task_project": s.projectName(ctx, task.ProjectID),
		})
	}

	if s.cfg.EnforceProjectAssignment && !caller.IsManager() {
		emp, err := s.directory.Employee(ctx, employeeID)
		if err != nil {
			return "", notFoundAs(err, "employee")
		}
		assigned := false
		if emp.UserID != nil {
			assigned, err = s.catalog.IsAssignedToProject(ctx, *emp.UserID, task.ProjectID)
			if err != nil {
				return "", err
			}
		}
		if !assigned {
			return "", errors.Validation("errors.not_assigned", map[string]string{
				"employee": emp.DisplayName(),
				"project":  s.projectName(ctx, task.ProjectID),
			})
		}
	}

	return task.ProjectID, nil
}

func (s *EntryService) projectName(ctx context.Context, id string) string {
	p, err := s.catalog.Project(ctx, id)
	if err != nil || p.Name == "" {
		return id
	}
	return p.Name
}

// ============================================================================
// Update
// ============================================================================

// Update changes the given fields of an entry, keeping the others.
func (s *EntryService) Update(ctx context.Context, caller domain.Caller, entryID string, patch domain.EntryPatch) (*UpdateEntryResult, error) {
	var (
		ts    *domain.Timesheet
		entry domain.TimeEntry
	)

	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		if err := s.policy.RequireAccess(caller); err != nil {
			return err
		}
		if err := s.policy.RequireLinked(caller); err != nil {
			return err
		}

		var err error
		ts, err = s.store.GetByEntryID(ctx, entryID)
		if err != nil {
			return notFoundAs(err, "time entry")
		}
		if err := s.policy.AuthorizeMutation(caller, ts, "errors.modify_timesheet"); err != nil {
			return err
		}

		current, _ := ts.FindEntry(entryID)
		if patch.ProjectID != nil || patch.TaskID != nil {
			effective := patch.Apply(current)
			projectID, err := s.checkReferences(ctx, caller, ts.EmployeeID, effective.ProjectID, effective.TaskID)
			if err != nil {
				return err
			}
			patch.ProjectID = &projectID
		}

		entry, err = ts.UpdateEntry(entryID, patch)
		if err != nil {
			return err
		}
		return s.store.Save(ctx, ts)
	})
	if err != nil {
		err = failed(s.logger, "update entry", err)
		s.recorder.EntryOperation("update", errors.KindOf(err).String())
		return nil, err
	}
	s.recorder.EntryOperation("update", "ok")

	s.publisher.EntryUpdated(ctx, ts, entry)
	s.logger.Info().Str("timesheet_id", ts.ID).Str("entry_id", entry.ID).Msg("time entry updated")

	return &UpdateEntryResult{
		TimesheetID: ts.ID,
		EntryID:     entry.ID,
		Hours:       entry.Hours,
		TotalHours:  ts.TotalHours,
	}, nil
}

// ============================================================================
// Delete
// ============================================================================

// Delete removes an entry and reconciles its timesheet when it empties.
func (s *EntryService) Delete(ctx context.Context, caller domain.Caller, entryID string) (*DeleteEntryResult, error) {
	var (
		ts      *domain.Timesheet
		removed domain.TimeEntry
		result  *DeleteEntryResult
	)

	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		if err := s.policy.RequireAccess(caller); err != nil {
			return err
		}

		var err error
		ts, err = s.store.GetByEntryID(ctx, entryID)
		if err != nil {
			return notFoundAs(err, "time entry")
		}
		if err := s.policy.AuthorizeMutation(caller, ts, "errors.delete_from_timesheet"); err != nil {
			return err
		}

		removed, err = ts.RemoveEntry(entryID)
		if err != nil {
			return err
		}

		if !ts.IsEmpty() {
			result = &DeleteEntryResult{TimesheetID: ts.ID, MessageKey: "messages.entry_deleted"}
			return s.store.Save(ctx, ts)
		}

		outcome, err := s.reconciler.Reconcile(ctx, caller, ts)
		if err != nil {
			return err
		}
		result = &DeleteEntryResult{
			TimesheetID:      ts.ID,
			TimesheetDeleted: outcome.Deleted,
			MessageKey:       outcome.MessageKey,
		}
		return nil
	})
	if err != nil {
		err = failed(s.logger, "delete entry", err)
		s.recorder.EntryOperation("delete", errors.KindOf(err).String())
		return nil, err
	}
	s.recorder.EntryOperation("delete", "ok")

	s.publisher.EntryDeleted(ctx, ts, removed)
	if result.TimesheetDeleted {
		s.publisher.TimesheetDeleted(ctx, ts)
	}
	s.logger.Info().
		Str("timesheet_id", ts.ID).
		Str("entry_id", removed.ID).
		Bool("timesheet_deleted", result.TimesheetDeleted).
		Msg("time entry deleted")

	return result, nil
}
