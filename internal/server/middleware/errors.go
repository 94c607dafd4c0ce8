package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/onecloud/onecloud/internal/metrics"
	"github.com/onecloud/onecloud/internal/observability"
)

// Recovery turns handler panics into INTERNAL_ERROR envelopes.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			requestID := GetRequestID(r.Context())
			stack := string(debug.Stack())
			envelope := errors.NewErrorEnvelope("INTERNAL_ERROR", fmt.Sprintf("panic: %v", rec)).
				WithCorrelationID(requestID)
			envelope, _ = envelope.WithSeverity(errors.SeverityCritical)

			if observability.ServerLogger != nil {
				observability.ServerLogger.Error("Sandbox handler panicked",
					zap.String("request_id", requestID),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("stack", stack))
			}
			metrics.RecordPanic()
			writePanicResponse(w, envelope)
		}()

		next.ServeHTTP(w, r)
	})
}

type panicBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

// writePanicResponse encodes the envelope here because internal/errors
// imports this package.
func writePanicResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope) {
	var body panicBody
	body.Error.Code = envelope.Code
	body.Error.Message = envelope.Message
	body.Error.RequestID = envelope.CorrelationID

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(body)
}
