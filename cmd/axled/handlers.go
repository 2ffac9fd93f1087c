package main

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/axle/pkg/auth"
	"github.com/platinummonkey/axle/pkg/httputil"
	"github.com/platinummonkey/axle/pkg/identity"
	"github.com/platinummonkey/axle/pkg/observability"
	"github.com/platinummonkey/axle/pkg/registry"
)

// serverDeps collects the collaborators the HTTP surface consumes. The
// handlers are a thin read/login layer over the registry services.
type serverDeps struct {
	logger        *observability.Logger
	roles         registry.RoleReader
	users         registry.UserGroupReader
	calculator    *registry.RoleCalculator
	authenticator *auth.Authenticator
}

type server struct {
	serverDeps
	router *mux.Router
}

func newServer(deps serverDeps) *server {
	s := &server{serverDeps: deps, router: mux.NewRouter()}
	s.router.Use(httputil.RecoveryMiddleware(deps.logger), httputil.LoggingMiddleware(deps.logger))
	s.router.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	s.router.HandleFunc("/roles", s.handleListRoles).Methods(http.MethodGet)
	s.router.HandleFunc("/roles/{name}", s.handleGetRole).Methods(http.MethodGet)
	s.router.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	s.router.HandleFunc("/users/{name}", s.handleGetUser).Methods(http.MethodGet)
	s.router.HandleFunc("/users/{name}/roles", s.handleUserRoles).Methods(http.MethodGet)
	s.router.HandleFunc("/groups", s.handleListGroups).Methods(http.MethodGet)
	s.router.HandleFunc("/groups/{name}/members", s.handleGroupMembers).Methods(http.MethodGet)
	return s
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := s.authenticator.Authenticate(r.Context(), req.Username, req.Password, r.RemoteAddr)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTooManyConcurrentAttempts):
			httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent attempts")
		case errors.Is(err, auth.ErrBadCredentials):
			httputil.WriteError(w, http.StatusUnauthorized, "bad credentials")
		default:
			s.logger.WithError(err).Error("authentication error")
			httputil.WriteInternalError(w)
		}
		return
	}
	roles, err := s.calculator.EffectiveRoles(user.Username)
	if err != nil {
		s.logger.WithError(err).Error("effective role computation failed")
		httputil.WriteInternalError(w)
		return
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	s.writeJSON(w, http.StatusOK, loginResponse{Username: user.Username, Roles: names})
}

func (s *server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.roles.Roles())
}

func (s *server) handleGetRole(w http.ResponseWriter, r *http.Request) {
	role, err := s.roles.GetRole(mux.Vars(r)["name"])
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, role)
}

func (s *server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, sanitizeUsers(s.users.Users()))
}

func (s *server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetUserByUsername(mux.Vars(r)["name"])
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sanitizeUser(user))
}

func (s *server) handleUserRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.calculator.EffectiveRoles(mux.Vars(r)["name"])
	if err != nil {
		s.logger.WithError(err).Error("effective role computation failed")
		httputil.WriteInternalError(w)
		return
	}
	s.writeJSON(w, http.StatusOK, roles)
}

func (s *server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.users.Groups())
}

func (s *server) handleGroupMembers(w http.ResponseWriter, r *http.Request) {
	if _, err := s.users.GetGroupByGroupname(mux.Vars(r)["name"]); err != nil {
		s.writeLookupError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sanitizeUsers(s.users.UsersForGroup(mux.Vars(r)["name"])))
}

// sanitizeUser strips the stored password form before it leaves the process.
func sanitizeUser(user *identity.User) *identity.User {
	clean := user.Clone()
	clean.ClearPassword()
	return clean
}

func sanitizeUsers(users []*identity.User) []*identity.User {
	out := make([]*identity.User, len(users))
	for i, user := range users {
		out[i] = sanitizeUser(user)
	}
	return out
}

func (s *server) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, identity.ErrNotFound) {
		httputil.WriteNotFoundError(w, "not found")
		return
	}
	s.logger.WithError(err).Error("lookup failed")
	httputil.WriteInternalError(w)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if err := httputil.WriteJSON(w, status, payload); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}
