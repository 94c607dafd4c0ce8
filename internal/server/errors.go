package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/onecloud/onecloud/internal/errors"
)

// HandleError writes err as an error envelope, tagged with the matched route
// pattern when chi resolved one.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	envelope := apperrors.EnsureEnvelope(err)
	if pattern := routePattern(r); pattern != "" {
		merged := make(map[string]interface{}, len(envelope.Context)+1)
		for k, v := range envelope.Context {
			merged[k] = v
		}
		merged["route"] = pattern
		if tagged, tagErr := envelope.WithContext(merged); tagErr == nil {
			envelope = tagged
		}
	}
	apperrors.RespondWithError(w, r, envelope)
}

func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}
