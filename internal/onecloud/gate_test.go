package onecloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onecloud/onecloud/internal/core"
	"github.com/onecloud/onecloud/internal/core/engine"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memoryStore struct {
	mu      sync.Mutex
	markers map[string]time.Time
}

func (m *memoryStore) TryAdmit(_ context.Context, scope, verb string, now time.Time, interval time.Duration) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if wait := core.Remaining(m.markers[scope+"/"+verb], now, interval); wait > 0 {
		return false, wait, nil
	}
	if m.markers == nil {
		m.markers = map[string]time.Time{}
	}
	m.markers[scope+"/"+verb] = now
	return true, 0, nil
}

// countingServer answers every request with status and body and counts hits.
func countingServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestGate(t *testing.T, baseURL string, clock *fakeClock, opts ...Option) *Gate {
	t.Helper()
	pacer := &engine.Pacer{Clock: clock.Now, Scope: TokenScope("test-token")}
	gate, err := NewGate("test-token", append([]Option{WithBaseURL(baseURL), WithPacer(pacer)}, opts...)...)
	require.NoError(t, err)
	return gate
}

func TestNewGateRequiresToken(t *testing.T) {
	_, err := NewGate("   ")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestNewGateDefaults(t *testing.T) {
	gate, err := NewGate(" token ")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, gate.baseURL)
	assert.Equal(t, DefaultTimeout, gate.timeout)
	assert.Equal(t, "token", gate.token)
	assert.False(t, gate.Validating())
	require.NotNil(t, gate.Pacer())
	assert.Empty(t, gate.Pacer().Markers())
}

func TestDispatchFirstCallNeverPaced(t *testing.T) {
	for _, verb := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(verb, func(t *testing.T) {
			srv, hits := countingServer(t, http.StatusOK, `{"ok":true}`)
			gate := newTestGate(t, srv.URL, newFakeClock())

			out, err := gate.Dispatch(context.Background(), verb, "/server", nil)
			require.NoError(t, err)
			assert.JSONEq(t, `{"ok":true}`, string(out))
			assert.EqualValues(t, 1, hits.Load())
		})
	}
}

func TestDispatchRejectsSameInstantRepeat(t *testing.T) {
	cases := map[string]string{
		http.MethodGet:    "Too fast for GET type requests! Try again in 1.5 seconds.",
		http.MethodPost:   "Too fast for POST type requests! Try again in 10 seconds.",
		http.MethodPut:    "Too fast for PUT type requests! Try again in 10 seconds.",
		http.MethodDelete: "Too fast for DELETE type requests! Try again in 10 seconds.",
	}
	for verb, message := range cases {
		t.Run(verb, func(t *testing.T) {
			srv, hits := countingServer(t, http.StatusOK, `{}`)
			gate := newTestGate(t, srv.URL, newFakeClock())

			_, err := gate.Dispatch(context.Background(), verb, "/server", nil)
			require.NoError(t, err)

			_, err = gate.Dispatch(context.Background(), verb, "/server", nil)
			require.Error(t, err)
			require.True(t, IsPacing(err))

			oe, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, 0, oe.StatusCode)
			assert.Equal(t, message, oe.Message)
			assert.Nil(t, oe.Record().ErrorCode)
			assert.EqualValues(t, 1, hits.Load(), "paced call must not reach the network")
		})
	}
}

func TestDispatchPacingReportsRemainingWait(t *testing.T) {
	srv, _ := countingServer(t, http.StatusOK, `{}`)
	clock := newFakeClock()
	gate := newTestGate(t, srv.URL, clock)

	_, err := gate.Dispatch(context.Background(), http.MethodGet, "/server", nil)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = gate.Dispatch(context.Background(), http.MethodGet, "/server", nil)
	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindPacing, oe.Kind)
	assert.Equal(t, 500*time.Millisecond, oe.Wait)
	assert.Equal(t, "Too fast for GET type requests! Try again in 0.5 seconds.", oe.Message)
}

func TestDispatchPassesAfterInterval(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{}`)
	clock := newFakeClock()
	gate := newTestGate(t, srv.URL, clock)
	ctx := context.Background()

	_, err := gate.Dispatch(ctx, http.MethodPost, "/server", nil)
	require.NoError(t, err)

	clock.Advance(10*time.Second + time.Millisecond)
	_, err = gate.Dispatch(ctx, http.MethodPost, "/server", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestDispatchVerbsPacedIndependently(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{}`)
	gate := newTestGate(t, srv.URL, newFakeClock())
	ctx := context.Background()

	_, err := gate.Dispatch(ctx, http.MethodPost, "/server", map[string]string{"Name": "a"})
	require.NoError(t, err)

	_, err = gate.Dispatch(ctx, http.MethodGet, "/server", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestDispatchHonorsSharedMarkerStore(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{}`)
	clock := newFakeClock()
	store := &memoryStore{}
	ctx := context.Background()

	first, err := NewGate("tok", WithBaseURL(srv.URL), WithPacer(&engine.Pacer{Store: store, Scope: TokenScope("tok"), Clock: clock.Now}))
	require.NoError(t, err)
	_, err = first.Dispatch(ctx, http.MethodDelete, "/server/1", nil)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	second, err := NewGate("tok", WithBaseURL(srv.URL), WithPacer(&engine.Pacer{Store: store, Scope: TokenScope("tok"), Clock: clock.Now}))
	require.NoError(t, err)
	_, err = second.Dispatch(ctx, http.MethodDelete, "/server/1", nil)
	require.True(t, IsPacing(err))
	assert.EqualValues(t, 1, hits.Load())
}

func TestDispatchConcurrentCallersAdmitOne(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{}`)
	gate := newTestGate(t, srv.URL, newFakeClock())

	var (
		wg     sync.WaitGroup
		passed atomic.Int32
		paced  atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gate.Dispatch(context.Background(), http.MethodGet, "/server", nil)
			switch {
			case err == nil:
				passed.Add(1)
			case IsPacing(err):
				paced.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, passed.Load())
	assert.EqualValues(t, 15, paced.Load())
	assert.EqualValues(t, 1, hits.Load())
}

func TestDispatchStatusMapping(t *testing.T) {
	cases := []struct {
		status  int
		message string
	}{
		{http.StatusBadRequest, "invalid request parameters"},
		{http.StatusUnauthorized, "not authorized"},
		{http.StatusForbidden, "request denied"},
		{http.StatusNotFound, "object not found"},
		{http.StatusInternalServerError, "unknown error - contact 1cloud.ru support"},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv, _ := countingServer(t, tc.status, `{"detail":"ignored"}`)
			gate := newTestGate(t, srv.URL, newFakeClock())

			out, err := gate.Dispatch(context.Background(), http.MethodGet, "/server/9", nil)
			require.Nil(t, out)
			oe, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, KindStatus, oe.Kind)
			assert.Equal(t, tc.status, oe.StatusCode)
			assert.Equal(t, tc.message, oe.Message)

			rec := oe.Record()
			require.NotNil(t, rec.ErrorCode)
			assert.Equal(t, tc.status, *rec.ErrorCode)
			assert.Equal(t, tc.message, rec.ErrorMessage)
		})
	}

	t.Run("OK", func(t *testing.T) {
		srv, _ := countingServer(t, http.StatusOK, ` [{"ID":1}] `)
		gate := newTestGate(t, srv.URL, newFakeClock())

		out, err := gate.Dispatch(context.Background(), http.MethodGet, "/server", nil)
		require.NoError(t, err)
		assert.Equal(t, `[{"ID":1}]`, string(out))
	})
}

func TestDispatchUnknownStatusEmbedsBody(t *testing.T) {
	srv, _ := countingServer(t, http.StatusServiceUnavailable, "upstream <b>down</b>\n")
	gate := newTestGate(t, srv.URL, newFakeClock())

	_, err := gate.Dispatch(context.Background(), http.MethodGet, "/server", nil)
	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindUnknownStatus, oe.Kind)
	assert.Equal(t, 0, oe.StatusCode)
	assert.Equal(t, "Unknown error. Plain response:upstream <b>down</b>\n", oe.Message)
	assert.Nil(t, oe.Record().ErrorCode)
}

func TestDispatchEmptyBodyIsNull(t *testing.T) {
	srv, _ := countingServer(t, http.StatusOK, "")
	gate := newTestGate(t, srv.URL, newFakeClock())

	out, err := gate.Dispatch(context.Background(), http.MethodDelete, "/image/3", nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestDispatchInvalidJSON(t *testing.T) {
	srv, _ := countingServer(t, http.StatusOK, "<html>")
	gate := newTestGate(t, srv.URL, newFakeClock())

	_, err := gate.Dispatch(context.Background(), http.MethodGet, "/server", nil)
	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindDecode, oe.Kind)
}

func TestDispatchRejectsUnsupportedVerb(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{}`)
	gate := newTestGate(t, srv.URL, newFakeClock())

	_, err := gate.Dispatch(context.Background(), http.MethodPatch, "/server/1", nil)
	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindValidation, oe.Kind)
	assert.ErrorIs(t, err, engine.ErrUnsupportedVerb)
	assert.Zero(t, hits.Load())
}

func TestDispatchSendsHeadersAndBody(t *testing.T) {
	var (
		gotHeader http.Header
		gotBody   map[string]any
		gotMethod string
		gotPath   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, `{"ID":5}`)
	}))
	defer srv.Close()

	gate := newTestGate(t, srv.URL+"/", newFakeClock(), WithUserAgent("onecloud-test/1.0"))
	_, err := gate.Dispatch(context.Background(), "post", "/network/", map[string]string{"Name": "lan"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/network/", gotPath)
	assert.Equal(t, "Bearer test-token", gotHeader.Get("Authorization"))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "application/json", gotHeader.Get("Accept"))
	assert.Equal(t, "onecloud-test/1.0", gotHeader.Get("User-Agent"))
	_, err = uuid.Parse(gotHeader.Get("X-Request-ID"))
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"Name": "lan"}, gotBody)
}

func TestDispatchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	gate := newTestGate(t, url, newFakeClock())
	_, err := gate.Dispatch(context.Background(), http.MethodGet, "/server", nil)

	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindTransport, oe.Kind)
	assert.Equal(t, 0, oe.StatusCode)
	require.NotNil(t, errors.Unwrap(err))
	assert.Nil(t, oe.Record().ErrorCode)
}

func TestDispatchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	gate := newTestGate(t, srv.URL, newFakeClock(), WithTimeout(50*time.Millisecond))
	_, err := gate.Dispatch(context.Background(), http.MethodGet, "/server", nil)

	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindTransport, oe.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenScope(t *testing.T) {
	scope := TokenScope("secret")
	assert.Len(t, scope, 12)
	assert.Equal(t, scope, TokenScope(" secret "))
	assert.NotEqual(t, scope, TokenScope("other"))
	assert.NotContains(t, scope, "secret")
}
