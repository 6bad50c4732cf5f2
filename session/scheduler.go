package session

import (
	"context"
	"sync"
	"time"
)

// refreshScheduler is the cancellable handle to the background renewal
// loop. At most one handle is live per session.
type refreshScheduler struct {
	stop     chan struct{}
	stopOnce sync.Once
}

func (s *refreshScheduler) cancel() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// startScheduler begins the periodic renewal loop, cancelling any prior
// handle first: ownership transfers, it never accumulates.
func (m *Manager) startScheduler() {
	scheduler := &refreshScheduler{stop: make(chan struct{})}

	m.lock.Lock()
	previous := m.scheduler
	m.scheduler = scheduler
	m.lock.Unlock()

	if previous != nil {
		previous.cancel()
	}

	go m.runScheduler(scheduler)
}

// runScheduler ticks at the configured interval and asks the provider to
// renew when fewer than the scheduled margin remain. A renewal the
// provider reports as unnecessary is a no-op. Any renewal failure stops
// the loop; refresh has already torn the session down by then.
func (m *Manager) runScheduler(scheduler *refreshScheduler) {
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-scheduler.stop:
			return
		case <-ticker.C:
			if _, err := m.refresh(context.Background(), m.scheduledMargin); err != nil {
				m.logger.Error().Err(err).Msg("scheduled renewal failed; stopping scheduler")
				return
			}
		}
	}
}
