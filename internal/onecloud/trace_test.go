package onecloud

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingWritesDispatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.ndjson")
	closeTrace, err := EnableTracing(path)
	require.NoError(t, err)
	require.True(t, IsTracingEnabled())

	srv, _ := countingServer(t, http.StatusNotFound, "")
	gate := newTestGate(t, srv.URL, newFakeClock())
	_, err = gate.Dispatch(context.Background(), http.MethodPost, "/network/", map[string]string{"Name": "lan"})
	require.Error(t, err)

	closeTrace()
	require.False(t, IsTracingEnabled())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() // nolint:errcheck // test cleanup

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())

	var entry TraceEntry
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
	assert.Equal(t, http.MethodPost, entry.Verb)
	assert.Equal(t, "/network/", entry.Path)
	assert.Equal(t, http.StatusNotFound, entry.StatusCode)
	assert.Equal(t, "object not found", entry.Error)
	assert.JSONEq(t, `{"Name":"lan"}`, string(entry.RequestBody))
	assert.NotEmpty(t, entry.RequestID)
	assert.False(t, scanner.Scan())
}
