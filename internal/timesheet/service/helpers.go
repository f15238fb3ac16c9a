package service

import (
	"github.com/medflow/timesheet-service/pkg/errors"
	"github.com/medflow/timesheet-service/pkg/logger"
)

// failed passes AppErrors through and turns anything else into a logged
// OPERATION_FAILED error keeping the original message. Sentinel store
// errors are mapped to their public kinds first.
func failed(log *logger.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.IsApp(err) {
		return err
	}
	switch {
	case errors.Is(err, errors.ErrStaleWrite), errors.Is(err, errors.ErrDuplicate):
		return errors.Conflict(err.Error())
	case errors.Is(err, errors.ErrNotFound):
		return errors.NotFound("record")
	}
	log.Error().Err(err).Str("operation", op).Msg("operation failed")
	return errors.OperationFailed(op, err)
}

func notFoundAs(err error, resource string) error {
	if errors.Is(err, errors.ErrNotFound) && !errors.IsApp(err) {
		return errors.NotFound(resource)
	}
	return err
}

type noopRecorder struct{}

func (noopRecorder) EntryOperation(string, string) {}
func (noopRecorder) TimesheetCreated()             {}
func (noopRecorder) Reconciled(string)             {}
func (noopRecorder) RaceRetried()                  {}
