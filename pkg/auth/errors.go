package auth

import (
	"github.com/medflow/timesheet-service/pkg/errors"
	"github.com/medflow/timesheet-service/pkg/i18n"
)

func unauthorized() *errors.AppError {
	e := errors.Unauthorized(i18n.T("errors.unauthorized"))
	e.MessageKey = "errors.unauthorized"
	return e
}
