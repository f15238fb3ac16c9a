package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/internal/timesheet/idempotency"
	"github.com/medflow/timesheet-service/internal/timesheet/service"
	"github.com/medflow/timesheet-service/pkg/auth"
	"github.com/medflow/timesheet-service/pkg/errors"
	"github.com/medflow/timesheet-service/pkg/httputil"
	"github.com/medflow/timesheet-service/pkg/i18n"
	"github.com/medflow/timesheet-service/pkg/logger"
)

// IdempotencyHeader lets clients retry entry creation safely.
const IdempotencyHeader = "Idempotency-Key"

// EntryCommands mutates time entries.
type EntryCommands interface {
	Create(ctx context.Context, caller domain.Caller, in service.CreateEntryInput) (*service.CreateEntryResult, error)
	Update(ctx context.Context, caller domain.Caller, entryID string, patch domain.EntryPatch) (*service.UpdateEntryResult, error)
	Delete(ctx context.Context, caller domain.Caller, entryID string) (*service.DeleteEntryResult, error)
}

// CalendarQueries serves the read side of the calendar.
type CalendarQueries interface {
	ListEntries(ctx context.Context, caller domain.Caller, filter domain.EventFilter) ([]service.CalendarEvent, error)
	FilterOptions(ctx context.Context, caller domain.Caller) (*service.FilterOptions, error)
	ResolveTaskProject(ctx context.Context, caller domain.Caller, taskID string) (string, error)
	EmployeeHasAssignedTasks(ctx context.Context, caller domain.Caller, employeeID, projectID string) (bool, error)
	EmployeeTasks(ctx context.Context, caller domain.Caller, employeeID, projectID string) ([]domain.Task, error)
	TimesheetProjects(ctx context.Context, caller domain.Caller, timesheetID string) ([]domain.Project, error)
	ProjectTimesheets(ctx context.Context, caller domain.Caller, projectID string) ([]domain.TimesheetSummary, error)
}

// CallerResolver turns an authenticated identity into a classified caller.
type CallerResolver interface {
	Resolve(ctx context.Context, id auth.Identity) (domain.Caller, error)
}

// IdempotencyStore remembers entry creation responses.
type IdempotencyStore interface {
	Begin(ctx context.Context, scope, key string) (*idempotency.Record, error)
	Complete(ctx context.Context, scope, key string, rec idempotency.Record) error
	Release(ctx context.Context, scope, key string) error
}

// TimesheetHandler handles the timesheet calendar endpoints
type TimesheetHandler struct {
	entries  EntryCommands
	calendar CalendarQueries
	callers  CallerResolver
	idem     IdempotencyStore
	logger   *logger.Logger
}

// NewTimesheetHandler creates a new timesheet handler. idem may be nil, in
// which case the Idempotency-Key header is ignored.
func NewTimesheetHandler(entries EntryCommands, calendar CalendarQueries, callers CallerResolver, idem IdempotencyStore, log *logger.Logger) *TimesheetHandler {
	return &TimesheetHandler{
		entries:  entries,
		calendar: calendar,
		callers:  callers,
		idem:     idem,
		logger:   log.WithComponent("timesheet_handler"),
	}
}

// Routes mounts the handler under the caller's router.
func (h *TimesheetHandler) Routes(r chi.Router) {
	r.Get("/events", h.ListEvents)
	r.Get("/filter-options", h.FilterOptions)

	r.Route("/entries", func(r chi.Router) {
		r.Post("/", h.CreateEntry)
		r.Patch("/{id}", h.UpdateEntry)
		r.Delete("/{id}", h.DeleteEntry)
	})

	r.Get("/tasks/{id}/project", h.TaskProject)
	r.Get("/employees/{id}/projects/{project}/has-tasks", h.HasAssignedTasks)
	r.Get("/employees/{id}/projects/{project}/tasks", h.EmployeeTasks)
	r.Get("/projects/{project}/timesheets", h.ProjectTimesheets)
	r.Get("/{id}/projects", h.TimesheetProjects)
}

func (h *TimesheetHandler) caller(r *http.Request) (domain.Caller, error) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return domain.Caller{}, errors.Unauthorized(i18n.TFromContext(r.Context(), "errors.unauthorized"))
	}
	return h.callers.Resolve(r.Context(), id)
}

// ListEvents returns calendar events
// GET /events?start=&end=&employee=&project=&activity_type=&task=
func (h *TimesheetHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	q := r.URL.Query()
	start, err := parseBound(q.Get("start"), false)
	if err != nil {
		httputil.Error(w, r, errors.InvalidFields(map[string]string{"start": err.Error()}))
		return
	}
	end, err := parseBound(q.Get("end"), true)
	if err != nil {
		httputil.Error(w, r, errors.InvalidFields(map[string]string{"end": err.Error()}))
		return
	}

	events, err := h.calendar.ListEntries(r.Context(), caller, domain.EventFilter{
		Start:        start,
		End:          end,
		EmployeeID:   q.Get("employee"),
		ProjectID:    q.Get("project"),
		ActivityType: q.Get("activity_type"),
		TaskID:       q.Get("task"),
	})
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, events)
}

// CreateEntry records a time entry
// POST /entries
func (h *TimesheetHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	var req CreateEntryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	key := r.Header.Get(IdempotencyHeader)
	if key != "" && h.idem != nil {
		rec, err := h.idem.Begin(r.Context(), caller.UserID, key)
		switch {
		case errors.Is(err, idempotency.ErrInProgress):
			conflict := errors.Conflict(i18n.T("errors.idempotency_in_progress"))
			conflict.MessageKey = "errors.idempotency_in_progress"
			httputil.Error(w, r, conflict)
			return
		case err != nil:
			h.logger.Warn().Err(err).Msg("idempotency store unavailable, processing request without it")
			key = ""
		case rec != nil:
			w.Header().Set("Idempotent-Replayed", "true")
			writeRaw(w, rec.StatusCode, rec.Body)
			return
		}
	} else {
		key = ""
	}

	result, err := h.entries.Create(r.Context(), caller, in)
	if err != nil {
		if key != "" {
			if rerr := h.idem.Release(r.Context(), caller.UserID, key); rerr != nil {
				h.logger.Warn().Err(rerr).Msg("failed to release idempotency key")
			}
		}
		httputil.Error(w, r, err)
		return
	}

	body, err := json.Marshal(httputil.Response{Success: true, Data: result})
	if err != nil {
		httputil.Error(w, r, err)
		return
	}
	if key != "" {
		rec := idempotency.Record{StatusCode: http.StatusCreated, Body: body}
		if err := h.idem.Complete(r.Context(), caller.UserID, key, rec); err != nil {
			h.logger.Warn().Err(err).Str("timesheet_id", result.TimesheetID).Msg("failed to store idempotent response")
		}
	}

	writeRaw(w, http.StatusCreated, body)
}

// UpdateEntry patches a time entry
// PATCH /entries/{id}
func (h *TimesheetHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	var req UpdateEntryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	result, err := h.entries.Update(r.Context(), caller, chi.URLParam(r, "id"), patch)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// DeleteEntry removes a time entry and reconciles its timesheet
// DELETE /entries/{id}
func (h *TimesheetHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	result, err := h.entries.Delete(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	message := i18n.TFromContext(r.Context(), result.MessageKey)
	httputil.JSONWithMessage(w, http.StatusOK, DeleteEntryResponse{
		TimesheetID:      result.TimesheetID,
		TimesheetDeleted: result.TimesheetDeleted,
		Message:          message,
	}, message)
}

// FilterOptions returns the selectable employees, projects and activity types
// GET /filter-options
func (h *TimesheetHandler) FilterOptions(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	opts, err := h.calendar.FilterOptions(r.Context(), caller)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, opts)
}

// TaskProject returns the project of a task, null when it has none
// GET /tasks/{id}/project
func (h *TimesheetHandler) TaskProject(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	project, err := h.calendar.ResolveTaskProject(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	var body struct {
		Project *string `json:"project"`
	}
	if project != "" {
		body.Project = &project
	}
	httputil.JSON(w, http.StatusOK, body)
}

// HasAssignedTasks reports whether the employee has open tasks on a project
// GET /employees/{id}/projects/{project}/has-tasks
func (h *TimesheetHandler) HasAssignedTasks(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	has, err := h.calendar.EmployeeHasAssignedTasks(r.Context(), caller, chi.URLParam(r, "id"), chi.URLParam(r, "project"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]bool{"has_tasks": has})
}

// EmployeeTasks lists the tasks assigned to an employee on a project
// GET /employees/{id}/projects/{project}/tasks
func (h *TimesheetHandler) EmployeeTasks(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	tasks, err := h.calendar.EmployeeTasks(r.Context(), caller, chi.URLParam(r, "id"), chi.URLParam(r, "project"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tasks)
}

// TimesheetProjects lists the projects used in a timesheet
// GET /{id}/projects
func (h *TimesheetHandler) TimesheetProjects(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	projects, err := h.calendar.TimesheetProjects(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, projects)
}

// ProjectTimesheets lists draft timesheets with entries on a project
// GET /projects/{project}/timesheets
func (h *TimesheetHandler) ProjectTimesheets(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	summaries, err := h.calendar.ProjectTimesheets(r.Context(), caller, chi.URLParam(r, "project"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summaries)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
