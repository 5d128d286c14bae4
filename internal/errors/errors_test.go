package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	t.Run("New creates error correctly", func(t *testing.T) {
		err := New(ErrorTypeMalformed, "datagram is 12 bytes", false)

		assert.Equal(t, ErrorTypeMalformed, err.Type)
		assert.Equal(t, "datagram is 12 bytes", err.Message)
		assert.False(t, err.Fatal)
		assert.Equal(t, "MALFORMED_DATAGRAM: datagram is 12 bytes", err.Error())
	})

	t.Run("Wrap wraps error correctly", func(t *testing.T) {
		original := errors.New("connection refused")
		err := NewTransportError(original, "send failed")

		assert.Equal(t, ErrorTypeTransport, err.Type)
		assert.True(t, err.Fatal)
		assert.Equal(t, original, err.Unwrap())
		assert.True(t, errors.Is(err, original))
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("WithDetails adds details", func(t *testing.T) {
		err := NewInvalidDestinationError("not-an-ip")
		assert.Equal(t, "not-an-ip", err.Details["address"])
		assert.Contains(t, err.Message, "invalid destination")
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantType   ErrorType
		wantFatal  bool
		wantStatus int
	}{
		{"fatal setup", NewSetupError(assert.AnError, "bind failed", true), ErrorTypeSetup, true, http.StatusInternalServerError},
		{"degraded setup", NewSetupError(assert.AnError, "tos failed", false), ErrorTypeSetup, false, http.StatusInternalServerError},
		{"invalid destination", NewInvalidDestinationError("x"), ErrorTypeInvalidDestination, true, http.StatusBadRequest},
		{"transport", NewTransportError(assert.AnError, "recv"), ErrorTypeTransport, true, http.StatusInternalServerError},
		{"malformed", NewMalformedError("short"), ErrorTypeMalformed, false, http.StatusBadRequest},
		{"validation", NewValidationError("period"), ErrorTypeValidation, true, http.StatusBadRequest},
		{"not found", NewNotFoundError("flow"), ErrorTypeNotFound, false, http.StatusNotFound},
		{"service down", NewServiceDownError("receiver"), ErrorTypeServiceDown, false, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantFatal, tt.err.Fatal)
			assert.Equal(t, tt.wantStatus, tt.err.HTTPStatus())
		})
	}
}

func TestIsFatalAndIsType(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(errors.New("plain")), "unknown errors are fatal")

	wrapped := fmt.Errorf("receiver: %w", NewMalformedError("short"))
	assert.False(t, IsFatal(wrapped))
	assert.True(t, IsType(wrapped, ErrorTypeMalformed))
	assert.False(t, IsType(wrapped, ErrorTypeTransport))

	appErr, ok := GetAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "short", appErr.Message)

	assert.True(t, IsFatal(fmt.Errorf("sender: %w", NewTransportError(assert.AnError, "send"))))
}
