package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Logout deterministically ends the session. Its steps are independent of
// each other's success: store fields clear synchronously, the scheduler
// handle is cancelled, persisted artifacts are removed, and the provider
// is notified. If the provider call fails the user still lands on an
// unauthenticated, navigable page via a hard redirect to the root, and
// the caller gets the failure for UI feedback.
func (m *Manager) Logout(ctx context.Context) error {
	m.clearSession()

	if err := m.cache.Clear(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("clearing persisted session artifacts failed")
	}

	if err := m.providerClient.Logout(ctx); err != nil {
		m.logger.Error().Err(err).Msg("provider logout failed; falling back to hard redirect")
		m.navigate(m.rootURL)
		return errors.Wrap(LogoutFailedErr, err.Error())
	}

	m.navigate(m.rootURL)
	m.logger.Debug().Msg("session ended")
	return nil
}

// endSessionAfterRenewalFailure runs the same teardown as Logout but
// sends the user to the provider's login rather than the root: an
// authenticated view must never survive a failed renewal.
func (m *Manager) endSessionAfterRenewalFailure(ctx context.Context, cause error) {
	m.logger.Error().Err(cause).Msg("renewal failed; ending session")
	m.clearSession()

	// The triggering context may already be dead after a failed network
	// call; cleanup must still run.
	ctx = context.WithoutCancel(ctx)
	if err := m.cache.Clear(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("clearing persisted session artifacts failed")
	}
	if err := m.providerClient.Logout(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("provider logout failed during renewal teardown")
	}

	m.navigate(m.providerClient.LoginURL(uuid.New().String()))
}

// clearSession clears the store fields and cancels the scheduler handle.
// The generation bump invalidates any renewal or identity fetch still in
// flight.
func (m *Manager) clearSession() {
	m.lock.Lock()
	m.authenticated = false
	m.token = nil
	m.identity = nil
	m.generation++
	scheduler := m.scheduler
	m.scheduler = nil
	m.lock.Unlock()

	if scheduler != nil {
		scheduler.cancel()
	}
}
