package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/pkg/database"
	"github.com/medflow/timesheet-service/pkg/errors"
)

// timesheetRow mirrors the timesheets table
type timesheetRow struct {
	ID         string    `db:"id"`
	EmployeeID string    `db:"employee_id"`
	Company    string    `db:"company"`
	WeekStart  time.Time `db:"week_start"`
	WeekEnd    time.Time `db:"week_end"`
	Status     string    `db:"status"`
	TotalHours float64   `db:"total_hours"`
	Version    int       `db:"version"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// entryRow mirrors the time_entries table
type entryRow struct {
	ID           string         `db:"id"`
	TimesheetID  string         `db:"timesheet_id"`
	Idx          int            `db:"idx"`
	FromTime     time.Time      `db:"from_time"`
	ToTime       time.Time      `db:"to_time"`
	Hours        float64        `db:"hours"`
	ProjectID    sql.NullString `db:"project_id"`
	TaskID       sql.NullString `db:"task_id"`
	ActivityType sql.NullString `db:"activity_type"`
	Description  sql.NullString `db:"description"`
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// naive drops the location so stored wall-clock times come back unchanged.
func naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func toEntryRow(e domain.TimeEntry) entryRow {
	return entryRow{
		ID:           e.ID,
		TimesheetID:  e.TimesheetID,
		Idx:          e.Idx,
		FromTime:     e.FromTime,
		ToTime:       e.ToTime,
		Hours:        e.Hours,
		ProjectID:    nullable(e.ProjectID),
		TaskID:       nullable(e.TaskID),
		ActivityType: nullable(e.ActivityType),
		Description:  nullable(e.Description),
	}
}

func (r entryRow) toDomain() domain.TimeEntry {
	return domain.TimeEntry{
		ID:           r.ID,
		TimesheetID:  r.TimesheetID,
		Idx:          r.Idx,
		FromTime:     naive(r.FromTime),
		ToTime:       naive(r.ToTime),
		Hours:        r.Hours,
		ProjectID:    r.ProjectID.String,
		TaskID:       r.TaskID.String,
		ActivityType: r.ActivityType.String,
		Description:  r.Description.String,
	}
}

func (r timesheetRow) toDomain(entries []entryRow) *domain.Timesheet {
	out := make([]domain.TimeEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.toDomain())
	}
	return domain.Restore(domain.Timesheet{
		ID:         r.ID,
		EmployeeID: r.EmployeeID,
		Company:    r.Company,
		WeekStart:  naive(r.WeekStart),
		WeekEnd:    naive(r.WeekEnd),
		Status:     domain.ParseStatus(r.Status),
		TotalHours: r.TotalHours,
		Version:    r.Version,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, out)
}

const timesheetColumns = `id, employee_id, company, week_start, week_end, status, total_hours, version, created_at, updated_at`

const entryColumns = `id, timesheet_id, idx, from_time, to_time, hours, project_id, task_id, activity_type, description`

// TimesheetRepository persists timesheets together with their entries.
type TimesheetRepository struct {
	db *database.DB
}

// NewTimesheetRepository creates a new timesheet repository
func NewTimesheetRepository(db *database.DB) *TimesheetRepository {
	return &TimesheetRepository{db: db}
}

// ============================================================================
// READS
// ============================================================================

// FindOpenByWeek returns the live timesheet of an employee for the week starting at weekStart.
func (r *TimesheetRepository) FindOpenByWeek(ctx context.Context, employeeID string, weekStart time.Time) (*domain.Timesheet, error) {
	query := `
		SELECT ` + timesheetColumns + `
		FROM timesheets
		WHERE employee_id = $1 AND week_start = $2 AND status <> 'cancelled'
		LIMIT 1
	`
	return r.load(ctx, query, employeeID, domain.Date(weekStart))
}

// Get returns a timesheet by ID
func (r *TimesheetRepository) Get(ctx context.Context, id string) (*domain.Timesheet, error) {
	query := `SELECT ` + timesheetColumns + ` FROM timesheets WHERE id = $1`
	return r.load(ctx, query, id)
}

// GetByEntryID returns the timesheet owning the entry
func (r *TimesheetRepository) GetByEntryID(ctx context.Context, entryID string) (*domain.Timesheet, error) {
	query := `
		SELECT ` + prefixed("t", timesheetColumns) + `
		FROM timesheets t
		JOIN time_entries te ON te.timesheet_id = t.id
		WHERE te.id = $1
	`
	return r.load(ctx, query, entryID)
}

func (r *TimesheetRepository) load(ctx context.Context, query string, args ...interface{}) (*domain.Timesheet, error) {
	q := r.db.Querier(ctx)

	var row timesheetRow
	if err := q.GetContext(ctx, &row, query, args...); err != nil {
		return nil, database.MapPQError(err)
	}

	var entries []entryRow
	err := q.SelectContext(ctx, &entries,
		`SELECT `+entryColumns+` FROM time_entries WHERE timesheet_id = $1 ORDER BY idx`, row.ID)
	if err != nil {
		return nil, database.MapPQError(err)
	}

	return row.toDomain(entries), nil
}

// ============================================================================
// WRITES
// ============================================================================

// Save inserts a new timesheet or updates a stored one, replacing its entries.
// The insert yields to a concurrent insert of the same employee week instead
// of failing the transaction, and reports it as errors.ErrDuplicate.
func (r *TimesheetRepository) Save(ctx context.Context, ts *domain.Timesheet) error {
	return r.db.Transaction(ctx, func(ctx context.Context) error {
		q := r.db.Querier(ctx)

		var (
			version   int
			updatedAt time.Time
			err       error
		)
		if !ts.Persisted() {
			err = q.QueryRowxContext(ctx, `
				INSERT INTO timesheets (id, employee_id, company, week_start, week_end, status, total_hours, version)
				VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
				ON CONFLICT (employee_id, week_start) WHERE status <> 'cancelled' DO NOTHING
				RETURNING version, updated_at
			`, ts.ID, ts.EmployeeID, ts.Company, ts.WeekStart, ts.WeekEnd, ts.Status.String(), ts.TotalHours,
			).Scan(&version, &updatedAt)
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: timesheet of %s for week %s", errors.ErrDuplicate,
					ts.EmployeeID, ts.WeekStart.Format(domain.DateLayout))
			}
		} else {
			err = q.QueryRowxContext(ctx, `
				UPDATE timesheets
				SET company = $2, status = $3, total_hours = $4, version = version + 1, updated_at = NOW()
				WHERE id = $1 AND version = $5
				RETURNING version, updated_at
			`, ts.ID, ts.Company, ts.Status.String(), ts.TotalHours, ts.Version,
			).Scan(&version, &updatedAt)
			if err == sql.ErrNoRows {
				return errors.ErrStaleWrite
			}
		}
		if err != nil {
			return database.MapPQError(err)
		}

		if err := r.replaceEntries(ctx, q, ts); err != nil {
			return err
		}

		ts.Version = version
		ts.UpdatedAt = updatedAt
		ts.MarkPersisted()
		return nil
	})
}

func (r *TimesheetRepository) replaceEntries(ctx context.Context, q database.Querier, ts *domain.Timesheet) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM time_entries WHERE timesheet_id = $1`, ts.ID); err != nil {
		return database.MapPQError(err)
	}

	entries := ts.Entries()
	if len(entries) == 0 {
		return nil
	}

	rows := make([]entryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, toEntryRow(e))
	}

	_, err := sqlx.NamedExecContext(ctx, q, `
		INSERT INTO time_entries (`+entryColumns+`)
		VALUES (:id, :timesheet_id, :idx, :from_time, :to_time, :hours, :project_id, :task_id, :activity_type, :description)
	`, rows)
	return database.MapPQError(err)
}

// Delete removes a timesheet and its entries. A timesheet still referenced
// elsewhere (billing) fails with errors.ErrReferenced.
func (r *TimesheetRepository) Delete(ctx context.Context, ts *domain.Timesheet) error {
	return r.db.Transaction(ctx, func(ctx context.Context) error {
		q := r.db.Querier(ctx)

		if _, err := q.ExecContext(ctx, `DELETE FROM time_entries WHERE timesheet_id = $1`, ts.ID); err != nil {
			return database.MapPQError(err)
		}

		result, err := q.ExecContext(ctx, `DELETE FROM timesheets WHERE id = $1 AND version = $2`, ts.ID, ts.Version)
		if err != nil {
			return database.MapPQError(err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return errors.ErrStaleWrite
		}
		return nil
	})
}

// ============================================================================
// CALENDAR QUERIES
// ============================================================================

// ListEvents returns the entries of live timesheets matching the filter,
// ordered by start time.
func (r *TimesheetRepository) ListEvents(ctx context.Context, f domain.EventFilter) ([]domain.EventRow, error) {
	conditions := []string{"t.status <> 'cancelled'"}
	args := []interface{}{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if f.Start != nil {
		add("te.from_time >= $%d", *f.Start)
	}
	if f.End != nil {
		add("te.to_time <= $%d", *f.End)
	}
	if f.EmployeeID != "" {
		add("t.employee_id = $%d", f.EmployeeID)
	}
	if f.ProjectID != "" {
		add("te.project_id = $%d", f.ProjectID)
	}
	if f.ActivityType != "" {
		add("te.activity_type = $%d", f.ActivityType)
	}
	if f.TaskID != "" {
		add("te.task_id = $%d", f.TaskID)
	}

	query := `
		SELECT te.id AS entry_id, t.id AS timesheet_id, t.employee_id,
		       COALESCE(e.employee_name, '') AS employee_name,
		       t.company, t.status, te.from_time, te.to_time, te.hours,
		       COALESCE(te.project_id, '') AS project_id,
		       COALESCE(p.project_name, '') AS project_name,
		       COALESCE(te.task_id, '') AS task_id,
		       COALESCE(tk.subject, '') AS task_subject,
		       COALESCE(te.activity_type, '') AS activity_type,
		       COALESCE(te.description, '') AS description
		FROM time_entries te
		JOIN timesheets t ON t.id = te.timesheet_id
		LEFT JOIN employees e ON e.id = t.employee_id
		LEFT JOIN projects p ON p.id = te.project_id
		LEFT JOIN tasks tk ON tk.id = te.task_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY te.from_time ASC
	`

	var rows []domain.EventRow
	if err := r.db.Querier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, database.MapPQError(err)
	}
	for i := range rows {
		rows[i].FromTime = naive(rows[i].FromTime)
		rows[i].ToTime = naive(rows[i].ToTime)
	}
	return rows, nil
}

// TimesheetProjects lists the distinct projects used by a timesheet's entries.
func (r *TimesheetRepository) TimesheetProjects(ctx context.Context, timesheetID string) ([]domain.Project, error) {
	query := `
		SELECT DISTINCT p.id, p.project_name, p.status
		FROM time_entries te
		JOIN projects p ON p.id = te.project_id
		WHERE te.timesheet_id = $1
		ORDER BY p.project_name
	`
	projects := []domain.Project{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &projects, query, timesheetID); err != nil {
		return nil, database.MapPQError(err)
	}
	return projects, nil
}

// ProjectTimesheets lists draft timesheets having at least one entry on the project.
func (r *TimesheetRepository) ProjectTimesheets(ctx context.Context, projectID string) ([]domain.TimesheetSummary, error) {
	query := `
		SELECT t.id, t.employee_id, COALESCE(e.employee_name, '') AS employee_name,
		       to_char(t.week_start, 'YYYY-MM-DD') AS week_start,
		       to_char(t.week_end, 'YYYY-MM-DD') AS week_end,
		       t.total_hours
		FROM timesheets t
		LEFT JOIN employees e ON e.id = t.employee_id
		WHERE t.status = 'draft'
		  AND EXISTS (SELECT 1 FROM time_entries te WHERE te.timesheet_id = t.id AND te.project_id = $1)
		ORDER BY t.week_start DESC, employee_name
	`
	summaries := []domain.TimesheetSummary{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &summaries, query, projectID); err != nil {
		return nil, database.MapPQError(err)
	}
	return summaries, nil
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}
