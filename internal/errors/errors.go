// Package errors defines the failure taxonomy shared by the sender, the
// receiver and the admin API.
//
// Setup failures happen before any traffic; some are fatal (socket, bind,
// address parse) and some only degrade the run (address reuse, priority
// marking). Transport failures are always fatal. Malformed datagrams never are.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error.
type ErrorType string

const (
	ErrorTypeSetup              ErrorType = "SETUP_ERROR"
	ErrorTypeInvalidDestination ErrorType = "INVALID_DESTINATION"
	ErrorTypeTransport          ErrorType = "TRANSPORT_ERROR"
	ErrorTypeMalformed          ErrorType = "MALFORMED_DATAGRAM"
	ErrorTypeValidation         ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound           ErrorType = "NOT_FOUND"
	ErrorTypeServiceDown        ErrorType = "SERVICE_DOWN"
	ErrorTypeInternal           ErrorType = "INTERNAL_ERROR"
)

// AppError represents an application error with additional context.
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Fatal   bool                   `json:"fatal"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// HTTPStatus maps the error type onto a response code for the admin API.
func (e *AppError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeValidation, ErrorTypeInvalidDestination, ErrorTypeMalformed:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeServiceDown:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new AppError.
func New(errType ErrorType, message string, fatal bool) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Fatal:   fatal,
	}
}

// Wrap wraps an existing error.
func Wrap(err error, errType ErrorType, message string, fatal bool) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Fatal:   fatal,
		Err:     err,
	}
}

// NewSetupError wraps a socket setup failure. Pass fatal=false for
// failures the run can survive in a degraded mode.
func NewSetupError(err error, message string, fatal bool) *AppError {
	return Wrap(err, ErrorTypeSetup, message, fatal)
}

// NewInvalidDestinationError reports an unparseable destination address.
func NewInvalidDestinationError(addr string) *AppError {
	return New(ErrorTypeInvalidDestination, fmt.Sprintf("invalid destination: %q", addr), true).
		WithDetails(map[string]interface{}{"address": addr})
}

// NewTransportError wraps a failed send or receive call.
func NewTransportError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeTransport, message, true)
}

// NewMalformedError reports a datagram that is not a valid packet.
func NewMalformedError(message string) *AppError {
	return New(ErrorTypeMalformed, message, false)
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, true)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), false)
}

// NewServiceDownError creates a service down error.
func NewServiceDownError(service string) *AppError {
	return New(ErrorTypeServiceDown, fmt.Sprintf("%s is currently unavailable", service), false)
}

// GetAppError extracts the first AppError in err's chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err's chain holds an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Type == errType
}

// IsFatal reports whether err should terminate the run. Errors outside the
// taxonomy are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	appErr, ok := GetAppError(err)
	if !ok {
		return true
	}
	return appErr.Fatal
}
