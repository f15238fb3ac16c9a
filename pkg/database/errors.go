package database

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/medflow/timesheet-service/pkg/errors"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
	codeCheckViolation      = "23514"
)

// MapPQError classifies a PostgreSQL error into the store sentinels.
// Unique violations wrap ErrDuplicate and foreign key violations wrap
// ErrReferenced, so callers branch with errors.Is instead of matching text.
// Errors that are not constraint violations are returned unchanged.
func MapPQError(err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return errors.ErrNotFound
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", errors.ErrDuplicate, pqErr.Constraint)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s", errors.ErrReferenced, pqErr.Constraint)
	case codeNotNullViolation:
		return errors.InvalidFields(map[string]string{columnOr(pqErr.Column, "required field"): "must not be empty"})
	case codeCheckViolation:
		return errors.InvalidFields(map[string]string{columnOr(pqErr.Constraint, "check"): "constraint violated"})
	default:
		return err
	}
}

func columnOr(col, fallback string) string {
	if col == "" {
		return fallback
	}
	return col
}
