package onecloud

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorRecordJSON(t *testing.T) {
	status := &Error{Kind: KindStatus, StatusCode: 404, Message: "object not found"}
	data, err := json.Marshal(status.Record())
	require.NoError(t, err)
	assert.JSONEq(t, `{"ERROR_CODE":404,"ERROR_MESSAGE":"object not found"}`, string(data))

	paced := pacingError("GET", "/server", 1500*time.Millisecond)
	data, err = json.Marshal(paced.Record())
	require.NoError(t, err)
	assert.JSONEq(t, `{"ERROR_CODE":null,"ERROR_MESSAGE":"Too fast for GET type requests! Try again in 1.5 seconds."}`, string(data))
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Kind: KindStatus, StatusCode: 401, Message: "not authorized", Verb: "GET", Path: "/server"}
	assert.Equal(t, "GET /server: not authorized", err.Error())
	assert.Equal(t, "boom", (&Error{Message: "boom"}).Error())
}

func TestErrorUnwrapAndHelpers(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	wrapped := fmt.Errorf("listing servers: %w", &Error{Kind: KindTransport, Message: cause.Error(), Err: cause})

	assert.ErrorIs(t, wrapped, cause)
	assert.False(t, IsPacing(wrapped))

	oe, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindTransport, oe.Kind)

	rec := RecordFor(errors.New("plain"))
	assert.Nil(t, rec.ErrorCode)
	assert.Equal(t, "plain", rec.ErrorMessage)
}

func TestStatusMessageTable(t *testing.T) {
	msg, ok := StatusMessage(200)
	assert.True(t, ok)
	assert.Equal(t, "request complete", msg)

	_, ok = StatusMessage(418)
	assert.False(t, ok)
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "10", formatSeconds(10*time.Second))
	assert.Equal(t, "1.5", formatSeconds(1500*time.Millisecond))
	assert.Equal(t, "0.001", formatSeconds(1234*time.Microsecond))
}
