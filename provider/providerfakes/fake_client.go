package providerfakes

import (
	"context"
	"sync"
	"time"

	"github.com/campusboard/sessionkit/provider"
)

var _ provider.Client = (*FakeClient)(nil)

// FakeClient is a scriptable provider.Client for tests. Each operation
// returns the configured result and counts its calls; RenewFunc, when
// set, overrides the static renewal result (used to inject delays and
// per-call behavior).
type FakeClient struct {
	SilentResult *provider.SilentResult
	SilentErr    error
	RenewResult  *provider.RenewResult
	RenewErr     error
	RenewFunc    func(ctx context.Context, margin time.Duration) (*provider.RenewResult, error)
	Profile      *provider.Identity
	ProfileErr   error
	ProfileGate  chan struct{} // when set, FetchProfile blocks until it closes
	LogoutErr    error
	AuthURL      string

	lock         sync.Mutex
	silentCalls  int
	renewCalls   int
	profileCalls int
	logoutCalls  int
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		SilentResult: &provider.SilentResult{Authenticated: false},
		AuthURL:      "https://idp.example.com/authorize",
	}
}

func (f *FakeClient) InitSilent(_ context.Context) (*provider.SilentResult, error) {
	f.lock.Lock()
	f.silentCalls++
	f.lock.Unlock()
	if f.SilentErr != nil {
		return nil, f.SilentErr
	}
	return f.SilentResult, nil
}

func (f *FakeClient) Renew(ctx context.Context, margin time.Duration) (*provider.RenewResult, error) {
	f.lock.Lock()
	f.renewCalls++
	renewFunc := f.RenewFunc
	f.lock.Unlock()

	if renewFunc != nil {
		return renewFunc(ctx, margin)
	}
	if f.RenewErr != nil {
		return nil, f.RenewErr
	}
	return f.RenewResult, nil
}

func (f *FakeClient) FetchProfile(_ context.Context) (*provider.Identity, error) {
	if f.ProfileGate != nil {
		<-f.ProfileGate
	}
	f.lock.Lock()
	f.profileCalls++
	f.lock.Unlock()
	if f.ProfileErr != nil {
		return nil, f.ProfileErr
	}
	return f.Profile, nil
}

func (f *FakeClient) LoginURL(state string) string {
	return f.AuthURL + "?state=" + state
}

func (f *FakeClient) Logout(_ context.Context) error {
	f.lock.Lock()
	f.logoutCalls++
	f.lock.Unlock()
	return f.LogoutErr
}

func (f *FakeClient) SilentCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.silentCalls
}

func (f *FakeClient) RenewCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.renewCalls
}

func (f *FakeClient) ProfileCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.profileCalls
}

func (f *FakeClient) LogoutCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.logoutCalls
}
