// Package tokencache persists the session artifacts that survive a
// process restart: the local session ID and the provider refresh token.
// Teardown clears it; the silent initializer reads it to resume a session
// without an interactive login.
package tokencache

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var NotFoundErr = errors.New("no cached session")

// Entry is the persisted session artifact. At most one entry is live per
// cache.
type Entry struct {
	SessionID    string    `json:"session_id"`
	RefreshToken string    `json:"refresh_token"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Repo stores the single live session artifact entry.
type Repo interface {
	Save(ctx context.Context, entry *Entry) error
	Load(ctx context.Context) (*Entry, error)
	Clear(ctx context.Context) error
}
