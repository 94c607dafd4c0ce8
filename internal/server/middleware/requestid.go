package middleware

import (
	"context"
	"net/http"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// RequestIDHeader carries the per-dispatch id the onecloud gate generates.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 128

type requestIDKey struct{}

// RequestID echoes a caller-supplied X-Request-ID, or mints a UUID, and
// stores it on the request context for error envelopes and logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := sanitizeRequestID(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// GetRequestID returns the id stored by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// sanitizeRequestID drops ids that are too long or carry control characters.
func sanitizeRequestID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxRequestIDLen {
		return ""
	}
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return ""
	}
	return id
}
