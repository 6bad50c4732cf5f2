package gateway

import (
	"encoding/json"
	"net/http"
)

type sessionState struct {
	Authenticated bool     `json:"authenticated"`
	Loading       bool     `json:"loading"`
	Username      string   `json:"username,omitempty"`
	DisplayName   string   `json:"display_name,omitempty"`
	Email         string   `json:"email,omitempty"`
	Roles         []string `json:"roles"`
}

// SessionHandler exposes the observed session state to the browser shell.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		state := sessionState{
			Authenticated: s.sessionManager.IsAuthenticated(),
			Loading:       s.sessionManager.Loading(),
			Roles:         s.sessionManager.GetUserRoles(),
		}
		if user := s.sessionManager.User(); user != nil {
			state.Username = user.Username
			state.DisplayName = user.DisplayName
			state.Email = user.Email
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(state)
	}
}

// RequireAuth gates a route on a live session. A still-loading session
// answers 503 rather than 401: the authorization decision is not
// available yet, which is not the same as unauthenticated.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.sessionManager.Loading() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Session initializing", http.StatusServiceUnavailable)
				return
			}
			if !s.sessionManager.IsAuthenticated() {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
}

// RequireAnyRole gates a route on the session holding one of roles.
func (s *Server) RequireAnyRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	requireAuth := s.RequireAuth()
	return func(next http.HandlerFunc) http.HandlerFunc {
		return requireAuth(func(w http.ResponseWriter, r *http.Request) {
			if !s.sessionManager.HasAnyRole(roles) {
				http.Error(w, "Insufficient role", http.StatusForbidden)
				return
			}
			next(w, r)
		})
	}
}
