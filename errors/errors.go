package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/NomadCrew/nomad-crew-planner/logger"
)

type ErrorType string

const (
	ValidationError         ErrorType = "VALIDATION_ERROR"
	NotFoundError           ErrorType = "NOT_FOUND"
	AuthenticationFailure   ErrorType = "AUTHENTICATION_FAILURE"
	MissingPermissionsError ErrorType = "MISSING_PERMISSIONS"
	LocationUnavailable     ErrorType = "LOCATION_UNAVAILABLE"
	TripFetchFailure        ErrorType = "TRIP_FETCH_FAILURE"
	DatabaseError           ErrorType = "DATABASE_ERROR"
	RateLimitError          ErrorType = "RATE_LIMIT_EXCEEDED"
	ServerError             ErrorType = "SERVER_ERROR"
)

// ErrSelectionSuperseded is returned by a trip selection that was overtaken by
// a newer selection before it could be committed.
var ErrSelectionSuperseded = stderrors.New("trip selection superseded")

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Code       string    `json:"code,omitempty"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Raw        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the raw cause to errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Raw
}

// Is matches another *AppError by type, so callers can test
// errors.Is(err, &AppError{Type: TripFetchFailure}).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// GetHTTPStatus returns the status sent for e, derived from its type when
// none was set.
func (e *AppError) GetHTTPStatus() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return getHTTPStatus(e.Type)
}

// New creates a new AppError
func New(errType ErrorType, message string, detail string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     detail,
		HTTPStatus: getHTTPStatus(errType),
	}
}

// Wrap wraps a raw error with AppError context
func Wrap(err error, errType ErrorType, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     err.Error(),
		HTTPStatus: getHTTPStatus(errType),
		Raw:        err,
	}
}

// IsType reports whether err is (or wraps) an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

func NotFound(entity string, id interface{}) *AppError {
	return &AppError{
		Type:       NotFoundError,
		Message:    fmt.Sprintf("%s not found", entity),
		Detail:     fmt.Sprintf("ID: %v", id),
		HTTPStatus: http.StatusNotFound,
	}
}

func ValidationFailed(message string, details string) *AppError {
	return &AppError{
		Type:       ValidationError,
		Message:    message,
		Detail:     details,
		HTTPStatus: http.StatusBadRequest,
	}
}

func AuthenticationFailed(message string, cause error) *AppError {
	appErr := &AppError{
		Type:       AuthenticationFailure,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
		Raw:        cause,
	}
	if cause != nil {
		appErr.Detail = cause.Error()
	}
	return appErr
}

// MissingPermissions reports the scopes a connected login response did not grant.
func MissingPermissions(missing []string) *AppError {
	return &AppError{
		Type:       MissingPermissionsError,
		Code:       "missing_scope",
		Message:    "Login did not grant the required permissions",
		Detail:     strings.Join(missing, ","),
		HTTPStatus: http.StatusForbidden,
	}
}

func LocationNotAvailable(cause error) *AppError {
	appErr := &AppError{
		Type:       LocationUnavailable,
		Message:    "Location could not be determined",
		HTTPStatus: http.StatusServiceUnavailable,
		Raw:        cause,
	}
	if cause != nil {
		appErr.Detail = cause.Error()
	}
	return appErr
}

func TripFetchFailed(tripID string, cause error) *AppError {
	appErr := &AppError{
		Type:       TripFetchFailure,
		Message:    "Trip could not be loaded",
		Detail:     fmt.Sprintf("Trip ID: %s", tripID),
		HTTPStatus: http.StatusBadGateway,
		Raw:        cause,
	}
	if cause != nil {
		appErr.Detail = fmt.Sprintf("Trip ID: %s: %v", tripID, cause)
	}
	return appErr
}

func NewDatabaseError(err error) *AppError {
	// Log original error but return sanitized message
	logger.GetLogger().Errorw("Database error", "error", err)
	return &AppError{
		Type:       DatabaseError,
		Message:    "Database operation failed",
		Detail:     "Please try again later",
		HTTPStatus: http.StatusInternalServerError,
		Raw:        err,
	}
}

// RateLimitExceeded reports a client over its connection budget.
func RateLimitExceeded(message string, retryAfterSeconds int) *AppError {
	return &AppError{
		Type:       RateLimitError,
		Message:    message,
		Detail:     fmt.Sprintf("retry after %d seconds", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

func InternalServerError(message string) *AppError {
	return &AppError{
		Type:       ServerError,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

func getHTTPStatus(errType ErrorType) int {
	switch errType {
	case ValidationError:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case AuthenticationFailure:
		return http.StatusUnauthorized
	case MissingPermissionsError:
		return http.StatusForbidden
	case LocationUnavailable:
		return http.StatusServiceUnavailable
	case TripFetchFailure:
		return http.StatusBadGateway
	case RateLimitError:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
