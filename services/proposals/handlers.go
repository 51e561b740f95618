package proposals

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
	r.HandleFunc("/api/proposals", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/api/proposals", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/api/proposals/{id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/proposals/{id}/withdraw", s.handleWithdraw).Methods(http.MethodPost)
	return r
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromHeaders(r.Header)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		JobID       string `json:"jobId"`
		CoverLetter string `json:"coverLetter"`
		Rate        int64  `json:"rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	proposal, err := s.Create(r.Context(), principal, req.JobID, req.CoverLetter, req.Rate)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, proposal)
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	proposals, err := s.List(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list proposals")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, proposals)
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	proposal, err := s.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "proposal not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load proposal")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, proposal)
}

func (s *Service) handleWithdraw(w http.ResponseWriter, r *http.Request) {
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

	proposal, err := s.Withdraw(r.Context(), principal, mux.Vars(r)["id"], req.Version)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			httputil.WriteError(w, http.StatusNotFound, "proposal not found")
		case errors.Is(err, store.ErrConcurrencyConflict):
			httputil.WriteConflict(w)
		default:
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, proposal)
}
