package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/onecloud/onecloud/internal/errors"
	"github.com/onecloud/onecloud/internal/onecloud"
	"github.com/onecloud/onecloud/internal/sandbox"
	"github.com/onecloud/onecloud/internal/server/handlers"
)

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
	if body.Error.RequestID == "" {
		t.Fatal("expected request id on error response")
	}
}

func TestServerMountsSandboxAPI(t *testing.T) {
	sb := sandbox.New(sandbox.Options{Token: "tok", Balance: 10})
	srv := New("127.0.0.1", 0, WithAPI(sb.Routes()))

	req := httptest.NewRequest(http.MethodGet, APIPrefix+"/customer/balance", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var balance float64
	if err := json.NewDecoder(rec.Body).Decode(&balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance != 10 {
		t.Fatalf("expected balance 10, got %v", balance)
	}
}

func TestServerReadinessUsesRegisteredCheckers(t *testing.T) {
	failing := handlers.HealthCheckFunc(func(ctx context.Context) error {
		return errors.New("store unreachable")
	})
	srv := New("127.0.0.1", 0, WithHealthChecker("store", failing))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("liveness should not depend on checkers, got %d", rec.Code)
	}
}

func TestServerAdminEndpointRequiresToken(t *testing.T) {
	srv := New("127.0.0.1", 0)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/signal", nil))
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("admin endpoint should be absent without a token, got %d", rec.Code)
	}

	srv = New("127.0.0.1", 0, WithAdminToken("secret"))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/signal", nil))
	if rec.Code == http.StatusNotFound || rec.Code < 400 {
		t.Fatalf("expected an auth rejection without bearer, got %d", rec.Code)
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	sb := sandbox.New(sandbox.Options{Token: "tok"})
	srv := New("127.0.0.1", 0, WithAPI(sb.Routes()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	client, err := onecloud.New("tok", onecloud.WithBaseURL("http://"+ln.Addr().String()+APIPrefix))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if _, err := client.ListDCLocations(context.Background()); err != nil {
		t.Fatalf("list dc locations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("start returned %v", err)
	}
}
