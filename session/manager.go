// Package session implements the credential lifecycle for the dashboard's
// identity-provider session: a one-shot silent initializer, a background
// refresh scheduler, reactive renewal for requests that hit a 401, and
// deterministic teardown. All renewal triggers share a single in-flight
// guard so at most one renewal network call is ever running.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/campusboard/sessionkit/provider"
	"github.com/campusboard/sessionkit/tokencache"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defaultTickInterval    = 60 * time.Second
	defaultScheduledMargin = 70 * time.Second
	defaultReactiveMargin  = 30 * time.Second
)

// NavigateFunc receives the URL the user agent should be sent to after a
// login or teardown transition. The HTTP layer decides how to deliver it.
type NavigateFunc func(url string)

// Manager owns the live session: the authentication flag, the current
// token and identity, the refresh scheduler handle, and the single-slot
// in-flight renewal guard. One Manager is live per process.
type Manager struct {
	providerClient provider.Client
	cache          tokencache.Repo
	logger         zerolog.Logger
	nowFunc        func() time.Time
	navigate       NavigateFunc
	rootURL        string

	tickInterval    time.Duration
	scheduledMargin time.Duration
	reactiveMargin  time.Duration

	lock          sync.RWMutex
	initialised   bool // init latch: silent init runs at most once
	loading       bool
	authenticated bool
	token         *Token
	identity      *provider.Identity
	scheduler     *refreshScheduler
	generation    int // bumped on teardown so late async results are discarded

	renewalLock sync.Mutex
	inflight    *renewalCall
}

// Option defines a function type to modify the Manager instance.
type Option func(*Manager)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithLogger sets the logger used for lifecycle and failure reporting.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithNavigate sets the redirect callback invoked on login and teardown.
func WithNavigate(navigate NavigateFunc) Option {
	return func(m *Manager) {
		m.navigate = navigate
	}
}

// WithRootURL sets the unauthenticated fallback target used when the
// provider logout call fails.
func WithRootURL(rootURL string) Option {
	return func(m *Manager) {
		m.rootURL = rootURL
	}
}

// WithRefreshIntervals sets the scheduler tick interval and the renewal
// margin requested on each tick. The tick must stay strictly shorter than
// the margin so a renewal always lands before expiry under tick jitter.
func WithRefreshIntervals(tickInterval, scheduledMargin time.Duration) Option {
	return func(m *Manager) {
		m.tickInterval = tickInterval
		m.scheduledMargin = scheduledMargin
	}
}

// WithReactiveMargin sets the short margin used by 401-triggered and
// manual renewals.
func WithReactiveMargin(margin time.Duration) Option {
	return func(m *Manager) {
		m.reactiveMargin = margin
	}
}

// New initializes a Manager with required dependencies. The session
// starts in its loading state; callers must treat loading as "decision
// not yet available", never as unauthenticated.
func New(providerClient provider.Client, cache tokencache.Repo, options ...Option) (*Manager, error) {
	if providerClient == nil {
		return nil, errors.New("[session.New] provider client is required")
	}
	if cache == nil {
		return nil, errors.New("[session.New] token cache is required")
	}

	m := &Manager{
		providerClient:  providerClient,
		cache:           cache,
		logger:          zerolog.Nop(),
		nowFunc:         time.Now,
		navigate:        func(string) {},
		rootURL:         "/",
		tickInterval:    defaultTickInterval,
		scheduledMargin: defaultScheduledMargin,
		reactiveMargin:  defaultReactiveMargin,
		loading:         true,
	}

	for _, opt := range options {
		opt(m)
	}

	return m, nil
}

// Init performs the one silent session check against the identity
// provider. A second invocation is a no-op: the latch guarantees only one
// refresh scheduler is ever started from initialization. On completion,
// whatever the outcome, the loading flag drops; route guards wait on
// that. Returns whether the session came up authenticated.
func (m *Manager) Init(ctx context.Context) bool {
	m.lock.Lock()
	if m.initialised {
		authenticated := m.authenticated
		m.lock.Unlock()
		return authenticated
	}
	m.initialised = true
	m.lock.Unlock()

	defer m.settleLoading()

	result, err := m.providerClient.InitSilent(ctx)
	if err != nil {
		// Silent init failure is not a user-facing error; it resolves to
		// an unauthenticated session.
		m.logger.Debug().Err(err).Msg("silent session check failed")
		return false
	}
	if !result.Authenticated {
		m.logger.Debug().Msg("no active provider session")
		return false
	}

	token, err := NewToken(result.RawToken, m.nowFunc())
	if err != nil {
		m.logger.Warn().Err(err).Msg("silent session returned an unusable token")
		return false
	}

	m.adoptToken(token)
	m.fetchIdentityAsync(ctx)
	m.startScheduler()
	m.logger.Debug().Time("expires_at", token.ExpiresAt).Msg("session restored silently")
	return true
}

// CompleteLogin installs the token obtained from a fresh interactive
// login redirect, fetches the identity, and starts the refresh scheduler.
func (m *Manager) CompleteLogin(ctx context.Context, rawToken string) error {
	token, err := NewToken(rawToken, m.nowFunc())
	if err != nil {
		return errors.Wrap(err, "[Manager.CompleteLogin] invalid token")
	}

	m.adoptToken(token)
	m.settleLoading()
	m.fetchIdentityAsync(ctx)
	m.startScheduler()
	m.logger.Debug().Time("expires_at", token.ExpiresAt).Msg("interactive login completed")
	return nil
}

// Login triggers an interactive redirect to the identity provider and
// returns the authorization URL it navigated to.
func (m *Manager) Login() string {
	loginURL := m.providerClient.LoginURL(uuid.New().String())
	m.navigate(loginURL)
	return loginURL
}

// IsAuthenticated reports whether a valid session is live.
func (m *Manager) IsAuthenticated() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.authenticated
}

// Loading reports whether the initializer has not yet resolved.
func (m *Manager) Loading() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.loading
}

// Token returns the current raw bearer token, or the empty string when
// unauthenticated. Replacement is atomic: readers see either the previous
// valid token or the new one.
func (m *Manager) Token() string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.token == nil {
		return ""
	}
	return m.token.Raw
}

// User returns the fetched identity, or nil before the profile fetch
// resolves or after logout.
func (m *Manager) User() *provider.Identity {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.identity
}

// Close cancels the refresh scheduler without ending the session,
// for the owner's shutdown path. Safe to call more than once.
func (m *Manager) Close() {
	m.lock.Lock()
	scheduler := m.scheduler
	m.scheduler = nil
	m.lock.Unlock()

	if scheduler != nil {
		scheduler.cancel()
	}
}

// adoptToken stores a freshly accepted token as a full-field replacement.
func (m *Manager) adoptToken(token *Token) {
	m.lock.Lock()
	m.authenticated = true
	m.token = token
	m.lock.Unlock()
}

func (m *Manager) settleLoading() {
	m.lock.Lock()
	m.loading = false
	m.lock.Unlock()
}

// fetchIdentityAsync loads the user profile in the background. A fetch
// failure leaves the identity nil and is reported, never fatal, and a
// result arriving after teardown is discarded.
func (m *Manager) fetchIdentityAsync(ctx context.Context) {
	m.lock.RLock()
	generation := m.generation
	m.lock.RUnlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		identity, err := m.providerClient.FetchProfile(ctx)
		if err != nil {
			m.logger.Warn().Err(err).Msg("identity fetch failed; session stays authenticated")
			return
		}

		m.lock.Lock()
		if m.generation == generation && m.authenticated {
			m.identity = identity
		}
		m.lock.Unlock()
	}()
}
