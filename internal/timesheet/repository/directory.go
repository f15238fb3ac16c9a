package repository

import (
	"context"

	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/pkg/database"
)

const employeeColumns = `id, user_id, employee_name, company, status`

// EmployeeRepository is the local employee directory, kept in sync from staff events.
type EmployeeRepository struct {
	db *database.DB
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db *database.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// Employee gets an employee by ID
func (r *EmployeeRepository) Employee(ctx context.Context, id string) (*domain.Employee, error) {
	var emp domain.Employee
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`
	if err := r.db.Querier(ctx).GetContext(ctx, &emp, query, id); err != nil {
		return nil, database.MapPQError(err)
	}
	return &emp, nil
}

// EmployeeByUser gets the employee linked to a user account
func (r *EmployeeRepository) EmployeeByUser(ctx context.Context, userID string) (*domain.Employee, error) {
	var emp domain.Employee
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE user_id = $1`
	if err := r.db.Querier(ctx).GetContext(ctx, &emp, query, userID); err != nil {
		return nil, database.MapPQError(err)
	}
	return &emp, nil
}

// ActiveEmployees lists active employees ordered by name
func (r *EmployeeRepository) ActiveEmployees(ctx context.Context) ([]domain.Employee, error) {
	employees := []domain.Employee{}
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE status = $1 ORDER BY employee_name`
	if err := r.db.Querier(ctx).SelectContext(ctx, &employees, query, domain.EmployeeActive); err != nil {
		return nil, database.MapPQError(err)
	}
	return employees, nil
}

// Upsert inserts or refreshes an employee record.
func (r *EmployeeRepository) Upsert(ctx context.Context, emp *domain.Employee) error {
	if emp.Status == "" {
		emp.Status = domain.EmployeeActive
	}
	query := `
		INSERT INTO employees (id, user_id, employee_name, company, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			employee_name = EXCLUDED.employee_name,
			company = EXCLUDED.company,
			status = EXCLUDED.status,
			updated_at = NOW()
	`
	_, err := r.db.Querier(ctx).ExecContext(ctx, query, emp.ID, emp.UserID, emp.Name, emp.Company, emp.Status)
	return database.MapPQError(err)
}

// Deactivate marks an employee inactive. Timesheets keep pointing at the
// record, so employees are never removed from the directory.
func (r *EmployeeRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE employees SET status = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.Querier(ctx).ExecContext(ctx, query, id, domain.EmployeeInactive)
	return database.MapPQError(err)
}
