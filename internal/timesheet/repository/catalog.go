package repository

import (
	"context"

	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/pkg/database"
)

// Assignment reference types and states.
const (
	RefProject = "project"
	RefTask    = "task"

	assignmentOpen = "open"
	projectOpen    = "open"
)

// CatalogRepository reads projects, tasks, assignments and activity types.
type CatalogRepository struct {
	db *database.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *database.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Project gets a project by ID
func (r *CatalogRepository) Project(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	query := `SELECT id, project_name, status FROM projects WHERE id = $1`
	if err := r.db.Querier(ctx).GetContext(ctx, &p, query, id); err != nil {
		return nil, database.MapPQError(err)
	}
	return &p, nil
}

// Task gets a task by ID
func (r *CatalogRepository) Task(ctx context.Context, id string) (*domain.Task, error) {
	var t domain.Task
	query := `SELECT id, subject, COALESCE(project_id, '') AS project_id, status FROM tasks WHERE id = $1`
	if err := r.db.Querier(ctx).GetContext(ctx, &t, query, id); err != nil {
		return nil, database.MapPQError(err)
	}
	return &t, nil
}

// OpenProjects lists every open project
func (r *CatalogRepository) OpenProjects(ctx context.Context) ([]domain.Project, error) {
	projects := []domain.Project{}
	query := `SELECT id, project_name, status FROM projects WHERE status = $1 ORDER BY project_name`
	if err := r.db.Querier(ctx).SelectContext(ctx, &projects, query, projectOpen); err != nil {
		return nil, database.MapPQError(err)
	}
	return projects, nil
}

// AssignedProjects lists the projects a user holds an open assignment on
func (r *CatalogRepository) AssignedProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	projects := []domain.Project{}
	query := `
		SELECT DISTINCT p.id, p.project_name, p.status
		FROM assignments a
		JOIN projects p ON p.id = a.reference_id
		WHERE a.reference_type = $1 AND a.user_id = $2 AND a.status = $3
		ORDER BY p.project_name
	`
	if err := r.db.Querier(ctx).SelectContext(ctx, &projects, query, RefProject, userID, assignmentOpen); err != nil {
		return nil, database.MapPQError(err)
	}
	return projects, nil
}

// IsAssignedToProject reports whether the user holds an open assignment on the project
func (r *CatalogRepository) IsAssignedToProject(ctx context.Context, userID, projectID string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM assignments
			WHERE reference_type = $1 AND reference_id = $2 AND user_id = $3 AND status = $4
		)
	`
	if err := r.db.Querier(ctx).GetContext(ctx, &exists, query, RefProject, projectID, userID, assignmentOpen); err != nil {
		return false, database.MapPQError(err)
	}
	return exists, nil
}

// AssignedTasks lists the project's tasks assigned to the employee's user
func (r *CatalogRepository) AssignedTasks(ctx context.Context, employeeID, projectID string) ([]domain.Task, error) {
	tasks := []domain.Task{}
	query := `
		SELECT DISTINCT t.id, t.subject, COALESCE(t.project_id, '') AS project_id, t.status
		FROM tasks t
		JOIN assignments a ON a.reference_type = $1 AND a.reference_id = t.id AND a.status = $2
		JOIN employees e ON e.user_id = a.user_id
		WHERE e.id = $3 AND t.project_id = $4
		ORDER BY t.subject
	`
	if err := r.db.Querier(ctx).SelectContext(ctx, &tasks, query, RefTask, assignmentOpen, employeeID, projectID); err != nil {
		return nil, database.MapPQError(err)
	}
	return tasks, nil
}

// ActivityTypes lists the activity types ordered by name
func (r *CatalogRepository) ActivityTypes(ctx context.Context) ([]domain.ActivityType, error) {
	types := []domain.ActivityType{}
	query := `SELECT id, activity_type FROM activity_types ORDER BY activity_type`
	if err := r.db.Querier(ctx).SelectContext(ctx, &types, query); err != nil {
		return nil, database.MapPQError(err)
	}
	return types, nil
}
