package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry/exporters"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/onecloud/onecloud/internal/errors"
	"github.com/onecloud/onecloud/internal/observability"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func stubExporter(t *testing.T, transport roundTripFunc) {
	t.Helper()
	originalClient := metricsProxyClient
	metricsProxyClient = &http.Client{Transport: transport}
	observability.PrometheusExporter = exporters.NewPrometheusExporter("test", ":9090")
	t.Cleanup(func() {
		metricsProxyClient = originalClient
		observability.PrometheusExporter = nil
	})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apperrors.HTTPErrorResponse {
	t.Helper()
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestMetricsHandlerProxiesDispatchCounters(t *testing.T) {
	var gotAccept string
	stubExporter(t, func(req *http.Request) (*http.Response, error) {
		gotAccept = req.Header.Get("Accept")
		body := "# TYPE onecloud_dispatch_total counter\nonecloud_dispatch_total{verb=\"GET\"} 3\n"
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     http.Header{"Content-Type": {"text/plain; version=0.0.4"}, "Connection": {"close"}},
		}
		return resp, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept", "text/plain")
	rec := httptest.NewRecorder()
	MetricsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", gotAccept)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Empty(t, rec.Header().Get("Connection"))
	assert.Contains(t, rec.Body.String(), `onecloud_dispatch_total{verb="GET"} 3`)
}

func TestMetricsHandlerWithoutExporter(t *testing.T) {
	observability.PrometheusExporter = nil

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", decodeEnvelope(t, rec).Error.Code)
}

func TestMetricsHandlerExporterDown(t *testing.T) {
	stubExporter(t, func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := decodeEnvelope(t, rec)
	assert.Equal(t, "EXTERNAL_SERVICE_ERROR", body.Error.Code)
	assert.Contains(t, body.Error.Details["original_error"], "connection refused")
}

func TestHandleErrorTagsRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/server/{id}", func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("server 9 not found"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/server/9", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "server 9 not found", body.Error.Message)
	assert.Equal(t, "/server/{id}", body.Error.Details["route"])
}
