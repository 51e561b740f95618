package users

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/taskhive/platform/internal/httputil"
	"github.com/taskhive/platform/internal/identity"
	"github.com/taskhive/platform/internal/store"
)

// Router mounts the service's HTTP endpoints. The gateway forwards
// /api/users traffic here with identity headers already injected.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/users", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/users/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/users/{id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{id}", s.handleUpdate).Methods(http.MethodPut)
	return r
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.Register(r.Context(), req.Email, req.Role)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.IssueToken(r.Context(), req.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	user, err := s.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (s *Service) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	principal, ok := identity.FromHeaders(r.Header)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if principal.UserID != id {
		httputil.WriteError(w, http.StatusForbidden, "cannot modify another user")
		return
	}

	var req struct {
		Email   string `json:"email"`
		Role    string `json:"role"`
		Version int64  `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.Update(r.Context(), id, req.Email, req.Role, req.Version)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			httputil.WriteError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, store.ErrConcurrencyConflict):
			httputil.WriteConflict(w)
		default:
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}
