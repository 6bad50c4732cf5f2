package session

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// renewalCall is the single-slot in-flight renewal guard. Whichever
// trigger starts a renewal first becomes the leader; every concurrent
// trigger awaits the same call and reuses its outcome, so at most one
// renewal network call is in flight at any instant.
type renewalCall struct {
	done     chan struct{}
	replaced bool
	err      error
}

// RefreshToken performs an on-demand renewal with the reactive margin.
// It shares the in-flight guard with the scheduler and the HTTP
// interceptor. The returned bool reports whether the stored token was
// replaced; a renewal the provider answered "still valid" resolves
// successfully without replacement.
func (m *Manager) RefreshToken(ctx context.Context) (bool, error) {
	return m.refresh(ctx, m.reactiveMargin)
}

func (m *Manager) refresh(ctx context.Context, margin time.Duration) (bool, error) {
	m.renewalLock.Lock()
	if call := m.inflight; call != nil {
		m.renewalLock.Unlock()
		select {
		case <-call.done:
			return call.replaced, call.err
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	call := &renewalCall{done: make(chan struct{})}
	m.inflight = call
	m.renewalLock.Unlock()

	call.replaced, call.err = m.renewOnce(ctx, margin)

	// A failed renewal always ends the session; it is never silently
	// retried. Only the leader escalates, so teardown's redirect runs
	// once however many triggers were waiting.
	if call.err != nil && errors.Is(call.err, RenewalFailedErr) {
		m.endSessionAfterRenewalFailure(ctx, call.err)
	}

	m.renewalLock.Lock()
	m.inflight = nil
	m.renewalLock.Unlock()
	close(call.done)

	return call.replaced, call.err
}

// renewOnce issues a single renewal against the provider and installs the
// resulting token, unless the session was torn down while the call was in
// flight.
func (m *Manager) renewOnce(ctx context.Context, margin time.Duration) (bool, error) {
	m.lock.RLock()
	generation := m.generation
	authenticated := m.authenticated
	m.lock.RUnlock()

	if !authenticated {
		return false, NotAuthenticatedErr
	}

	result, err := m.providerClient.Renew(ctx, margin)
	if err != nil {
		return false, errors.Wrap(RenewalFailedErr, err.Error())
	}
	if !result.Renewed {
		return false, nil
	}

	token, err := NewToken(result.RawToken, m.nowFunc())
	if err != nil {
		return false, errors.Wrap(RenewalFailedErr, err.Error())
	}

	m.lock.Lock()
	if m.generation != generation || !m.authenticated {
		m.lock.Unlock()
		// Torn down while the call was in flight; the result must not
		// re-populate the session.
		return false, TornDownErr
	}
	m.token = token
	m.lock.Unlock()

	m.logger.Debug().Time("expires_at", token.ExpiresAt).Msg("token renewed")
	return true, nil
}
