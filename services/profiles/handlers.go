package profiles

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
	r.HandleFunc("/api/profiles", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/api/profiles/{userId}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/profiles/{userId}", s.handleUpdate).Methods(http.MethodPut)
	return r
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.List(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list profiles")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profiles)
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	profile, err := s.Get(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "profile not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (s *Service) handleUpdate(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	principal, ok := identity.FromHeaders(r.Header)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		Bio        string   `json:"bio"`
		Skills     []string `json:"skills"`
		HourlyRate int64    `json:"hourlyRate"`
		Version    int64    `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := s.UpdateProfile(r.Context(), principal, userID, req.Bio, req.Skills, req.HourlyRate, req.Version)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			httputil.WriteError(w, http.StatusNotFound, "profile not found")
		case errors.Is(err, store.ErrConcurrencyConflict):
			httputil.WriteConflict(w)
		default:
			httputil.WriteError(w, http.StatusForbidden, err.Error())
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}
