package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/medflow/timesheet-service/pkg/i18n"
)

// Kind discriminates the failure classes surfaced to callers.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindReconciliation
	KindConflict
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindReconciliation:
		return "reconciliation"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Standard error types
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrConflict       = errors.New("resource conflict")
	ErrInternal       = errors.New("internal server error")
	ErrValidation     = errors.New("validation error")
	ErrReconciliation = errors.New("reconciliation blocked")

	// ErrStaleWrite is returned by optimistic saves when the stored version moved on.
	ErrStaleWrite = errors.New("stale write")
	// ErrReferenced is returned when a delete is blocked by a referential constraint.
	ErrReferenced = errors.New("record is still referenced")
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Kind       Kind              `json:"-"`
	Message    string            `json:"message"`
	MessageKey string            `json:"-"`
	Params     map[string]string `json:"-"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil && !isSentinel(e.Err) {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Localize returns a localized version of the error message
func (e *AppError) Localize(ctx context.Context) string {
	if e.MessageKey == "" {
		return e.Message
	}
	return i18n.TFromContext(ctx, e.MessageKey, e.Params)
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

func isSentinel(err error) bool {
	switch err {
	case ErrNotFound, ErrUnauthorized, ErrForbidden, ErrBadRequest, ErrConflict,
		ErrInternal, ErrValidation, ErrReconciliation:
		return true
	}
	return false
}

func newKeyed(kind Kind, sentinel error, code, key string, status int, params map[string]string) *AppError {
	return &AppError{
		Err:        sentinel,
		Kind:       kind,
		Code:       code,
		Message:    i18n.T(key, params),
		MessageKey: key,
		Params:     params,
		StatusCode: status,
	}
}

// Validation creates a validation error from an i18n key.
func Validation(key string, params map[string]string) *AppError {
	return newKeyed(KindValidation, ErrValidation, "VALIDATION_ERROR", key, http.StatusUnprocessableEntity, params)
}

// InvalidFields creates a validation error carrying per-field details.
func InvalidFields(details map[string]string) *AppError {
	e := newKeyed(KindValidation, ErrValidation, "VALIDATION_ERROR", "errors.validation_failed", http.StatusBadRequest, nil)
	e.Details = details
	return e
}

// Overlap reports a rejected time range and the range it collides with.
func Overlap(from, to string) *AppError {
	e := newKeyed(KindValidation, ErrValidation, "ENTRY_OVERLAP", "errors.entry_overlap", http.StatusConflict,
		map[string]string{"from": from, "to": to})
	e.Details = map[string]string{"conflict_from": from, "conflict_to": to}
	return e
}

// Forbidden creates an authorization error from an i18n key.
func Forbidden(key string, params map[string]string) *AppError {
	return newKeyed(KindAuthorization, ErrForbidden, "FORBIDDEN", key, http.StatusForbidden, params)
}

// Unauthorized is returned when no usable identity accompanies a request.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Kind:       KindAuthorization,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NotFound creates a not found error for the given resource
func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Kind:       KindNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		MessageKey: "errors.not_found",
		Params:     map[string]string{"resource": resource},
		StatusCode: http.StatusNotFound,
	}
}

// Reconciliation reports an empty timesheet whose removal was blocked by the store.
func Reconciliation(key string, cause error) *AppError {
	e := newKeyed(KindReconciliation, ErrReconciliation, "RECONCILIATION_BLOCKED", key, http.StatusConflict, nil)
	if cause != nil {
		e.Err = fmt.Errorf("%w: %w", ErrReconciliation, cause)
	}
	return e
}

// Conflict creates a conflict error (concurrent modification, duplicate rows).
func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Kind:       KindConflict,
		Code:       "CONFLICT",
		Message:    message,
		MessageKey: "errors.conflict",
		StatusCode: http.StatusConflict,
	}
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Kind:       KindValidation,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// OperationFailed wraps an unexpected lower-layer failure, keeping its message.
func OperationFailed(op string, cause error) *AppError {
	return &AppError{
		Err:        cause,
		Kind:       KindInternal,
		Code:       "OPERATION_FAILED",
		Message:    fmt.Sprintf("%s failed", op),
		MessageKey: "errors.operation_failed",
		Params:     map[string]string{"operation": op, "cause": cause.Error()},
		StatusCode: http.StatusInternalServerError,
	}
}

// KindOf returns the kind of the first AppError in the chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsApp reports whether err already carries an AppError.
func IsApp(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
