package jobs

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/taskhive/platform/internal/httputil"
	"github.com/taskhive/platform/internal/identity"
	"github.com/taskhive/platform/internal/store"
)

// Router mounts the service's HTTP endpoints.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/jobs", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/api/jobs", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{id}", s.handleUpdate).Methods(http.MethodPut)
	r.HandleFunc("/api/jobs/{id}/close", s.handleClose).Methods(http.MethodPost)
	return r
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromHeaders(r.Header)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Budget      int64  `json:"budget"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := s.Create(r.Context(), principal, req.Title, req.Description, req.Budget)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, job)
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.List(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, jobs)
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	job, err := s.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "job not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

func (s *Service) handleUpdate(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromHeaders(r.Header)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Budget      int64  `json:"budget"`
		Version     int64  `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := s.Update(r.Context(), principal, mux.Vars(r)["id"], req.Title, req.Description, req.Budget, req.Version)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

func (s *Service) handleClose(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromHeaders(r.Header)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		Version int64 `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := s.Close(r.Context(), principal, mux.Vars(r)["id"], req.Version)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, store.ErrConcurrencyConflict):
		httputil.WriteConflict(w)
	default:
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	}
}
