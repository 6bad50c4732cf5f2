package config

import "time"

type RefreshConfig interface {
	GetTickInterval() time.Duration
	GetScheduledMargin() time.Duration
	GetReactiveMargin() time.Duration
}

type Refresh struct{}

var _ RefreshConfig = Refresh{}

// GetTickInterval is the scheduler period; it must stay shorter than the
// scheduled margin so a renewal attempt always lands before expiry.
func (Refresh) GetTickInterval() time.Duration {
	return 60 * time.Second
}

func (Refresh) GetScheduledMargin() time.Duration {
	return 70 * time.Second
}

func (Refresh) GetReactiveMargin() time.Duration {
	return 30 * time.Second
}
