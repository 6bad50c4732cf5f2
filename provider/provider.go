// Package provider defines the identity-provider client consumed by the
// session manager. Implementations talk to an OIDC-style provider; the
// manager only sees this interface.
package provider

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	NoSessionErr       = errors.New("no active provider session")
	RenewalRejectedErr = errors.New("provider rejected the renewal")
)

// SilentResult is the outcome of a non-interactive session check.
// Authenticated false with a nil error means the provider simply has no
// session for this client, which is not a failure.
type SilentResult struct {
	Authenticated bool
	RawToken      string
}

// RenewResult is the outcome of a renewal request. Renewed false means the
// existing token still had more than the requested margin remaining and no
// new token was issued.
type RenewResult struct {
	Renewed  bool
	RawToken string
}

// Identity is the user-facing profile fetched once per authentication.
type Identity struct {
	Subject     string
	DisplayName string
	Email       string
	Username    string
}

// Client is the identity-provider surface the session lifecycle depends
// on. All blocking operations take a context so callers can cancel them.
type Client interface {
	// InitSilent checks for an existing provider session without any
	// interactive redirect.
	InitSilent(ctx context.Context) (*SilentResult, error)

	// Renew requests a token renewal if fewer than margin remain on the
	// current token.
	Renew(ctx context.Context, margin time.Duration) (*RenewResult, error)

	// FetchProfile loads the profile of the currently authenticated user.
	FetchProfile(ctx context.Context) (*Identity, error)

	// LoginURL returns the interactive authorization URL for a fresh
	// login redirect.
	LoginURL(state string) string

	// Logout ends the provider-side session.
	Logout(ctx context.Context) error
}
