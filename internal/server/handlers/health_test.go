package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/onecloud/onecloud/internal/errors"
)

func healthy(ctx context.Context) error { return nil }

func TestHealthHandlerReportsChecks(t *testing.T) {
	manager := NewHealthManager("1.0.0")
	manager.RegisterChecker("sandbox", HealthCheckFunc(healthy))

	rec := httptest.NewRecorder()
	manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.0.0", resp.Version)
	assert.Equal(t, map[string]string{"sandbox": "healthy"}, resp.Checks)
}

func TestReadinessFailsWhenACheckFails(t *testing.T) {
	manager := NewHealthManager("1.0.0")
	manager.RegisterChecker("sandbox", HealthCheckFunc(healthy))
	manager.RegisterChecker("store", HealthCheckFunc(func(ctx context.Context) error { return errors.New("down") }))

	rec := httptest.NewRecorder()
	manager.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)
	assert.Equal(t, "ready", resp.Error.Details["probe"])
	checks, ok := resp.Error.Details["checks"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "unhealthy", checks["store"])
	assert.Equal(t, "healthy", checks["sandbox"])
}

func TestSetErrorResponder(t *testing.T) {
	manager := NewHealthManager("1.0.0")
	manager.RegisterChecker("store", HealthCheckFunc(func(ctx context.Context) error { return errors.New("down") }))

	var got error
	manager.SetErrorResponder(func(w http.ResponseWriter, r *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()
	manager.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.Error(t, got)

	manager.SetErrorResponder(nil)
	rec = httptest.NewRecorder()
	manager.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOverallStatusDegradesOnTimeout(t *testing.T) {
	manager := NewHealthManager("1.0.0")
	assert.Equal(t, "degraded", manager.determineOverallStatus(map[string]string{"store": "timeout"}))
	assert.Equal(t, "unhealthy", manager.determineOverallStatus(map[string]string{"store": "timeout", "sandbox": "unhealthy"}))
	assert.Equal(t, "healthy", manager.determineOverallStatus(nil))
}
