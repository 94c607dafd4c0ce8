package sandbox

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apperrors "github.com/onecloud/onecloud/internal/errors"
	"github.com/onecloud/onecloud/internal/metrics"
	"github.com/onecloud/onecloud/internal/onecloud"
)

// Routes returns the fake API surface.
func (s *Sandbox) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recordRequests)
	r.Use(s.authenticate)
	if s.throttle != nil {
		r.Use(s.throttle.middleware)
	}

	r.Get("/customer/balance", s.handleBalance)
	r.Get("/dcLocation", s.handleListDCLocations)

	r.Route("/image", func(r chi.Router) {
		r.Get("/", s.handleListImages)
		r.Post("/", s.handleCreateImage)
		r.Delete("/{id}", s.handleDeleteImage)
	})

	r.Route("/network", func(r chi.Router) {
		r.Get("/", s.handleListNetworks)
		r.Post("/", s.handleCreateNetwork)
		r.Get("/{id}", s.handleGetNetwork)
		r.Delete("/{id}", s.handleDeleteNetwork)
	})

	r.Route("/server", func(r chi.Router) {
		r.Get("/", s.handleListServers)
		r.Post("/", s.handleCreateServer)
		r.Get("/{id}", s.handleGetServer)
		r.Put("/{id}", s.handleUpdateServer)
		r.Delete("/{id}", s.handleDeleteServer)
		r.Post("/{id}/action", s.handleAction)
	})

	return r
}

func recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordSandboxRequest(route, status)
	})
}

func (s *Sandbox) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			apperrors.RespondWithError(w, r, apperrors.NewUnauthorizedError("bearer token required"))
			return
		}
		if s.token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
			apperrors.RespondWithError(w, r, apperrors.NewUnauthorizedError("invalid bearer token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Sandbox) handleBalance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Balance())
}

func (s *Sandbox) handleListDCLocations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ListDCLocations())
}

func (s *Sandbox) handleListImages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ListImages())
}

func (s *Sandbox) handleCreateImage(w http.ResponseWriter, r *http.Request) {
	var req onecloud.CreateImageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		apperrors.RespondWithError(w, r, apperrors.NewInvalidInputError("Name is required"))
		return
	}

	img, err := s.CreateImage(req)
	if err != nil {
		respondStateError(w, r, err)
		return
	}
	writeJSON(w, img)
}

func (s *Sandbox) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.DeleteImage(id); err != nil {
		respondStateError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Sandbox) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ListNetworks())
}

func (s *Sandbox) handleGetNetwork(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := s.GetNetwork(id)
	if err != nil {
		respondStateError(w, r, err)
		return
	}
	writeJSON(w, n)
}

func (s *Sandbox) handleCreateNetwork(w http.ResponseWriter, r *http.Request) {
	var req onecloud.CreateNetworkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		apperrors.RespondWithError(w, r, apperrors.NewInvalidInputError("Name is required"))
		return
	}
	writeJSON(w, s.CreateNetwork(req.Name))
}

func (s *Sandbox) handleDeleteNetwork(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.DeleteNetwork(id); err != nil {
		respondStateError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Sandbox) handleListServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ListServers())
}

func (s *Sandbox) handleGetServer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	srv, err := s.GetServer(id)
	if err != nil {
		respondStateError(w, r, err)
		return
	}
	writeJSON(w, srv)
}

func (s *Sandbox) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	var req onecloud.CreateServerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.HDDType == "" {
		req.HDDType = onecloud.HDDTypeSAS
	}
	if err := onecloud.ValidateRequest(req); err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid server parameters"))
		return
	}

	srv, err := s.CreateServer(req)
	if err != nil {
		respondStateError(w, r, err)
		return
	}
	writeJSON(w, srv)
}

func (s *Sandbox) handleUpdateServer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req onecloud.UpdateServerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.HDDType == "" {
		req.HDDType = onecloud.HDDTypeSAS
	}
	if err := onecloud.ValidateRequest(req); err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid server parameters"))
		return
	}

	srv, err := s.UpdateServer(id, req)
	if err != nil {
		respondStateError(w, r, err)
		return
	}
	writeJSON(w, srv)
}

func (s *Sandbox) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.DeleteServer(id); err != nil {
		respondStateError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type actionBody struct {
	Type      onecloud.ActionType `json:"Type"`
	NetworkID int                 `json:"NetworkID"`
}

func (s *Sandbox) handleAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req actionBody
	if !decodeBody(w, r, &req) {
		return
	}

	srv, err := s.ApplyAction(id, req.Type, req.NetworkID)
	if err != nil {
		respondStateError(w, r, err)
		return
	}
	writeJSON(w, srv)
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		apperrors.RespondWithError(w, r, apperrors.NewNotFoundError("object not found"))
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "malformed request body"))
		return false
	}
	return true
}

func respondStateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		apperrors.RespondWithError(w, r, apperrors.NewNotFoundError(err.Error()))
	case errors.Is(err, ErrUnknownAction):
		apperrors.RespondWithError(w, r, apperrors.NewInvalidInputError(err.Error()))
	default:
		apperrors.RespondWithError(w, r, err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
