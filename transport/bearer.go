// Package transport integrates the session manager with an HTTP client:
// outgoing requests carry the current bearer token, and a 401 response
// triggers one reactive renewal and one replay of the failed request.
package transport

import (
	"net/http"

	"github.com/campusboard/sessionkit/session"
)

// BearerTransport is an http.RoundTripper wrapping a base transport.
type BearerTransport struct {
	session *session.Manager
	base    http.RoundTripper
}

var _ http.RoundTripper = (*BearerTransport)(nil)

type Option func(*BearerTransport)

// WithBase sets the underlying transport (defaults to
// http.DefaultTransport).
func WithBase(base http.RoundTripper) Option {
	return func(t *BearerTransport) {
		t.base = base
	}
}

func New(sessionManager *session.Manager, options ...Option) *BearerTransport {
	t := &BearerTransport{
		session: sessionManager,
		base:    http.DefaultTransport,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// RoundTrip attaches the stored token and recovers a single 401 through
// the manager's shared renewal guard. A second 401 after a successful
// renewal is surfaced to the caller rather than retried again; a renewal
// failure has already torn the session down, and the caller receives the
// original 401.
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.session.Token()

	outbound := req.Clone(req.Context())
	if token != "" {
		outbound.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base.RoundTrip(outbound)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || token == "" {
		return resp, err
	}

	// The first attempt consumed the body; without GetBody the request
	// cannot be replayed faithfully.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	if _, err := t.session.RefreshToken(req.Context()); err != nil {
		return resp, nil
	}

	newToken := t.session.Token()
	if newToken == "" {
		return resp, nil
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return resp, nil
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+newToken)

	resp.Body.Close()
	return t.base.RoundTrip(retry)
}
