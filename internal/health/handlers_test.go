package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/flowprobe/internal/logger"
	"github.com/zsiec/flowprobe/pkg/version"
)

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		checker    Checker
		wantCode   int
		wantStatus Status
	}{
		{"healthy", &mockChecker{name: "a"}, http.StatusOK, StatusOK},
		{"degraded", &mockChecker{name: "a", err: Degraded(errors.New("slow"))}, http.StatusOK, StatusDegraded},
		{"down", &mockChecker{name: "a", err: errors.New("dead")}, http.StatusServiceUnavailable, StatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(logger.NewNullLogger())
			m.Register(tt.checker)
			h := NewHandler(m)

			w := httptest.NewRecorder()
			h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, version.Version, resp.Version)
			assert.Contains(t, resp.Checks, "a")
			assert.NotEmpty(t, resp.Uptime)
		})
	}
}

func TestHandleReady(t *testing.T) {
	m := NewManager(logger.NewNullLogger())
	m.Register(&mockChecker{name: "a"})
	h := NewHandler(m)

	// Nothing has run yet.
	w := httptest.NewRecorder()
	h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	m.RunChecks(context.Background())
	w = httptest.NewRecorder()
	h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleLive(t *testing.T) {
	h := NewHandler(NewManager(logger.NewNullLogger()))

	w := httptest.NewRecorder()
	h.HandleLive(w, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alive"`)
}
