// Package gateway is the thin HTTP surface in front of the dashboard
// API: it owns the login/callback/logout routes, exposes the session
// state to the browser, and proxies API calls upstream with the bearer
// transport attached. Everything interesting happens in the session
// manager; the gateway only wires it to HTTP.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"

	"github.com/campusboard/sessionkit/session"
	"github.com/campusboard/sessionkit/transport"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// CodeExchanger redeems an authorization code from the provider's login
// redirect for a bearer token.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (string, error)
}

// RedirectSink captures the target the session manager asks the user
// agent to go to. It is handed to the manager as its NavigateFunc before
// the gateway exists; handlers then consume the recorded target for
// their redirect responses.
type RedirectSink struct {
	lock sync.Mutex
	url  string
}

func NewRedirectSink() *RedirectSink {
	return &RedirectSink{}
}

// Navigate is the session.NavigateFunc implementation.
func (s *RedirectSink) Navigate(target string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.url = target
}

// Take returns and clears the recorded target, or fallback if none was
// recorded.
func (s *RedirectSink) Take(fallback string) string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.url == "" {
		return fallback
	}
	target := s.url
	s.url = ""
	return target
}

type Server struct {
	mux            *http.ServeMux
	sessionManager *session.Manager
	exchanger      CodeExchanger
	redirects      *RedirectSink
	logger         zerolog.Logger
}

// New wires the session manager and provider client into the gateway's
// routes and returns the server. upstreamURL is the dashboard API the
// /api/ subtree proxies to; redirects is the sink the manager was
// constructed with (nil gets a detached one).
func New(sessionManager *session.Manager, exchanger CodeExchanger, upstreamURL string, redirects *RedirectSink, logger zerolog.Logger) (*Server, error) {
	if sessionManager == nil {
		return nil, errors.New("[gateway.New] session manager is required")
	}
	if exchanger == nil {
		return nil, errors.New("[gateway.New] code exchanger is required")
	}
	if redirects == nil {
		redirects = NewRedirectSink()
	}

	upstream, err := url.Parse(upstreamURL)
	if err != nil {
		return nil, errors.Wrap(err, "[gateway.New] invalid upstream URL")
	}

	s := &Server{
		mux:            http.NewServeMux(),
		sessionManager: sessionManager,
		exchanger:      exchanger,
		redirects:      redirects,
		logger:         logger,
	}

	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.Transport = transport.New(sessionManager)

	s.mux.HandleFunc("GET /login", s.LoginHandler())
	s.mux.HandleFunc("GET /callback", s.CallbackHandler())
	s.mux.HandleFunc("POST /logout", s.LogoutHandler())
	s.mux.HandleFunc("GET /session", s.SessionHandler())
	s.mux.Handle("/api/", s.RequireAuth()(proxy.ServeHTTP))

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// LoginHandler starts an interactive login at the identity provider.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loginURL := s.sessionManager.Login()
		http.Redirect(w, r, loginURL, http.StatusSeeOther)
	}
}

// CallbackHandler completes the login redirect: it redeems the code and
// hands the token to the session manager.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if errorParam := r.FormValue("error"); errorParam != "" {
			http.Error(w, fmt.Sprintf("Authorization failed: %s - %s", errorParam, r.FormValue("error_description")), http.StatusBadRequest)
			return
		}
		code := r.FormValue("code")
		if code == "" {
			http.Error(w, "Missing code parameter", http.StatusBadRequest)
			return
		}

		rawToken, err := s.exchanger.Exchange(r.Context(), code)
		if err != nil {
			s.logger.Error().Err(err).Msg("code exchange failed")
			http.Error(w, "Token exchange failed", http.StatusInternalServerError)
			return
		}
		if err := s.sessionManager.CompleteLogin(r.Context(), rawToken); err != nil {
			s.logger.Error().Err(err).Msg("login completion failed")
			http.Error(w, "Login failed", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// LogoutHandler tears the session down and sends the user wherever the
// manager navigated, the application root if the provider call failed.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.sessionManager.Logout(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("logout completed with provider failure")
		}
		http.Redirect(w, r, s.redirects.Take("/"), http.StatusSeeOther)
	}
}
