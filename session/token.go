package session

import (
	"time"

	"github.com/campusboard/sessionkit/claims"
	"github.com/pkg/errors"
)

// Token is an accepted bearer token. Owned exclusively by the Manager and
// replaced, never mutated, on renewal.
type Token struct {
	Raw       string
	Claims    *claims.Claims
	ExpiresAt time.Time
}

// NewToken parses and validates a raw bearer token. A token whose expiry
// is not strictly in the future is rejected with ExpiredTokenErr: the
// caller must treat it as invalid and force re-authentication.
func NewToken(raw string, now time.Time) (*Token, error) {
	parsed, err := claims.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "[session.NewToken] claims.Parse")
	}

	expiresAt := time.Unix(parsed.ExpiresAt, 0)
	if !expiresAt.After(now) {
		return nil, errors.Wrapf(ExpiredTokenErr, "[session.NewToken] expired at %s", expiresAt.UTC())
	}

	return &Token{
		Raw:       raw,
		Claims:    parsed,
		ExpiresAt: expiresAt,
	}, nil
}

// ExpiresIn returns the remaining validity relative to now.
func (t *Token) ExpiresIn(now time.Time) time.Duration {
	return t.ExpiresAt.Sub(now)
}
