package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// apiRecorder answers every call with {} and keeps what it received.
type apiRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (a *apiRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.Body)
	}
	a.mu.Lock()
	a.requests = append(a.requests, rec)
	a.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{}`)
}

func (a *apiRecorder) seen() []recordedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]recordedRequest(nil), a.requests...)
}

func runCLI(t *testing.T, baseURL string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args,
		"--token", "test-token",
		"--base-url", baseURL,
		"--pacing-store", "none",
		"--output-format", "json",
	))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	_, err := rootCmd.ExecuteC()
	return out.String(), err
}

// Both cases share rootCmd's flag state, so they run in order in one test.
func TestServerUpdateSendsOnlyRequestedConfiguration(t *testing.T) {
	api := &apiRecorder{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	_, err := runCLI(t, srv.URL, "server", "update", "7", "--ram", "2048")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), `"cpu"`)
	assert.Contains(t, err.Error(), `"hdd-type"`)
	assert.Empty(t, api.seen(), "nothing may be dispatched without the full configuration")

	_, err = runCLI(t, srv.URL, "server", "update", "7",
		"--cpu", "2", "--ram", "2048", "--hdd", "30", "--hdd-type", "SSD", "--high-performance=false")
	require.NoError(t, err)

	seen := api.seen()
	require.Len(t, seen, 1)
	assert.Equal(t, http.MethodPut, seen[0].Method)
	assert.Equal(t, "/server/7", seen[0].Path)
	assert.Equal(t, map[string]any{
		"CPU":               float64(2),
		"RAM":               float64(2048),
		"HDD":               float64(30),
		"HDDType":           "SSD",
		"isHighPerformance": false,
	}, seen[0].Body)
}

func TestServerCreateRequiresPlacement(t *testing.T) {
	api := &apiRecorder{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	_, err := runCLI(t, srv.URL, "server", "create", "--cpu", "1", "--ram", "1024", "--hdd", "20")
	require.Error(t, err)
	for _, flag := range []string{`"name"`, `"image-id"`, `"dc"`} {
		assert.Contains(t, err.Error(), flag)
	}
	assert.Empty(t, api.seen())
}
