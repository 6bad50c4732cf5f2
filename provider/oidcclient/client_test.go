package oidcclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/campusboard/sessionkit/provider"
	"github.com/campusboard/sessionkit/provider/oidcclient"
	"github.com/campusboard/sessionkit/tokencache"
	"github.com/campusboard/sessionkit/tokencache/memoryrepo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeIDP is a minimal OIDC provider: discovery, token, userinfo and
// end-session endpoints, with scripted token responses.
type fakeIDP struct {
	server *httptest.Server

	lock          sync.Mutex
	tokenCalls    int
	logoutCalls   int
	rejectGrants  bool
	accessToken   string
	refreshToken  string
	expiresIn     int
	lastGrantType string
}

func newFakeIDP(t *testing.T) *fakeIDP {
	t.Helper()

	idp := &fakeIDP{
		accessToken:  "access-1",
		refreshToken: "refresh-1",
		expiresIn:    300,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 idp.server.URL,
			"authorization_endpoint": idp.server.URL + "/authorize",
			"token_endpoint":         idp.server.URL + "/token",
			"userinfo_endpoint":      idp.server.URL + "/userinfo",
			"jwks_uri":               idp.server.URL + "/jwks",
			"end_session_endpoint":   idp.server.URL + "/logout",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		idp.lock.Lock()
		idp.tokenCalls++
		idp.lastGrantType = r.PostFormValue("grant_type")
		reject := idp.rejectGrants
		response := map[string]any{
			"access_token":  idp.accessToken,
			"token_type":    "Bearer",
			"expires_in":    idp.expiresIn,
			"refresh_token": idp.refreshToken,
		}
		idp.lock.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if reject {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		_ = json.NewEncoder(w).Encode(response)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":                "user-1",
			"name":               "John Doe",
			"email":              "john.doe@example.com",
			"preferred_username": "john.doe",
		})
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, _ *http.Request) {
		idp.lock.Lock()
		idp.logoutCalls++
		idp.lock.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

func (idp *fakeIDP) setRejectGrants(reject bool) {
	idp.lock.Lock()
	defer idp.lock.Unlock()
	idp.rejectGrants = reject
}

func (idp *fakeIDP) counts() (tokenCalls, logoutCalls int) {
	idp.lock.Lock()
	defer idp.lock.Unlock()
	return idp.tokenCalls, idp.logoutCalls
}

func setupClient(t *testing.T, idp *fakeIDP, cache tokencache.Repo) *oidcclient.Client {
	t.Helper()

	client, err := oidcclient.New(context.Background(), oidcclient.Config{
		IssuerURL:   idp.server.URL,
		ClientID:    "campusboard-dashboard",
		RedirectURL: "http://localhost:8080/callback",
	}, cache)
	require.NoError(t, err)
	return client
}

func TestInitSilentWithoutCachedArtifacts(t *testing.T) {
	idp := newFakeIDP(t)
	client := setupClient(t, idp, memoryrepo.New())

	result, err := client.InitSilent(context.Background())
	require.NoError(t, err)
	require.False(t, result.Authenticated)

	tokenCalls, _ := idp.counts()
	require.Equal(t, 0, tokenCalls)
}

func TestInitSilentRedeemsCachedRefreshToken(t *testing.T) {
	idp := newFakeIDP(t)
	cache := memoryrepo.New()
	require.NoError(t, cache.Save(context.Background(), &tokencache.Entry{
		SessionID:    "session-1",
		RefreshToken: "cached-refresh",
	}))
	client := setupClient(t, idp, cache)

	result, err := client.InitSilent(context.Background())
	require.NoError(t, err)
	require.True(t, result.Authenticated)
	require.Equal(t, "access-1", result.RawToken)

	idp.lock.Lock()
	grantType := idp.lastGrantType
	idp.lock.Unlock()
	require.Equal(t, "refresh_token", grantType)

	// The rotated refresh token replaces the cached one.
	entry, err := cache.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "refresh-1", entry.RefreshToken)
	require.Equal(t, "session-1", entry.SessionID)
}

func TestInitSilentClearsCacheWhenProviderRejectsGrant(t *testing.T) {
	idp := newFakeIDP(t)
	idp.setRejectGrants(true)

	cache := memoryrepo.New()
	require.NoError(t, cache.Save(context.Background(), &tokencache.Entry{RefreshToken: "dead-refresh"}))
	client := setupClient(t, idp, cache)

	result, err := client.InitSilent(context.Background())
	require.NoError(t, err)
	require.False(t, result.Authenticated)

	_, err = cache.Load(context.Background())
	require.True(t, errors.Is(err, tokencache.NotFoundErr))
}

func TestRenewWithoutSession(t *testing.T) {
	idp := newFakeIDP(t)
	client := setupClient(t, idp, memoryrepo.New())

	_, err := client.Renew(context.Background(), 30*time.Second)
	require.True(t, errors.Is(err, provider.NoSessionErr))
}

func TestRenewNoOpAboveMargin(t *testing.T) {
	idp := newFakeIDP(t)
	cache := memoryrepo.New()
	require.NoError(t, cache.Save(context.Background(), &tokencache.Entry{RefreshToken: "cached-refresh"}))
	client := setupClient(t, idp, cache)

	_, err := client.InitSilent(context.Background())
	require.NoError(t, err)

	// 300s remain on the granted token; a 30s margin needs no renewal.
	result, err := client.Renew(context.Background(), 30*time.Second)
	require.NoError(t, err)
	require.False(t, result.Renewed)
	require.Equal(t, "access-1", result.RawToken)

	tokenCalls, _ := idp.counts()
	require.Equal(t, 1, tokenCalls)
}

func TestRenewReplacesTokenBelowMargin(t *testing.T) {
	idp := newFakeIDP(t)
	cache := memoryrepo.New()
	require.NoError(t, cache.Save(context.Background(), &tokencache.Entry{RefreshToken: "cached-refresh"}))
	client := setupClient(t, idp, cache)

	_, err := client.InitSilent(context.Background())
	require.NoError(t, err)

	idp.lock.Lock()
	idp.accessToken = "access-2"
	idp.refreshToken = "refresh-2"
	idp.lock.Unlock()

	// Margin longer than the token lifetime forces a renewal.
	result, err := client.Renew(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	require.True(t, result.Renewed)
	require.Equal(t, "access-2", result.RawToken)

	entry, err := cache.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "refresh-2", entry.RefreshToken)
}

func TestRenewRejectionMapsToRenewalRejected(t *testing.T) {
	idp := newFakeIDP(t)
	cache := memoryrepo.New()
	require.NoError(t, cache.Save(context.Background(), &tokencache.Entry{RefreshToken: "cached-refresh"}))
	client := setupClient(t, idp, cache)

	_, err := client.InitSilent(context.Background())
	require.NoError(t, err)

	idp.setRejectGrants(true)
	_, err = client.Renew(context.Background(), 10*time.Minute)
	require.True(t, errors.Is(err, provider.RenewalRejectedErr))
}

func TestFetchProfile(t *testing.T) {
	idp := newFakeIDP(t)
	cache := memoryrepo.New()
	require.NoError(t, cache.Save(context.Background(), &tokencache.Entry{RefreshToken: "cached-refresh"}))
	client := setupClient(t, idp, cache)

	_, err := client.InitSilent(context.Background())
	require.NoError(t, err)

	identity, err := client.FetchProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, &provider.Identity{
		Subject:     "user-1",
		DisplayName: "John Doe",
		Email:       "john.doe@example.com",
		Username:    "john.doe",
	}, identity)
}

func TestLoginURLCarriesState(t *testing.T) {
	idp := newFakeIDP(t)
	client := setupClient(t, idp, memoryrepo.New())

	loginURL := client.LoginURL("state-123")
	require.Contains(t, loginURL, idp.server.URL+"/authorize")
	require.Contains(t, loginURL, "state=state-123")
	require.Contains(t, loginURL, "client_id=campusboard-dashboard")
}

func TestExchangeStartsFreshSession(t *testing.T) {
	idp := newFakeIDP(t)
	cache := memoryrepo.New()
	client := setupClient(t, idp, cache)

	raw, err := client.Exchange(context.Background(), "auth-code-1")
	require.NoError(t, err)
	require.Equal(t, "access-1", raw)

	entry, err := cache.Load(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, entry.SessionID)
	require.Equal(t, "refresh-1", entry.RefreshToken)
}

func TestLogoutCallsEndSessionEndpoint(t *testing.T) {
	idp := newFakeIDP(t)
	cache := memoryrepo.New()
	require.NoError(t, cache.Save(context.Background(), &tokencache.Entry{RefreshToken: "cached-refresh"}))
	client := setupClient(t, idp, cache)

	_, err := client.InitSilent(context.Background())
	require.NoError(t, err)

	require.NoError(t, client.Logout(context.Background()))
	_, logoutCalls := idp.counts()
	require.Equal(t, 1, logoutCalls)

	// The current token is gone; renewals need a new session.
	_, err = client.Renew(context.Background(), time.Second)
	require.True(t, errors.Is(err, provider.NoSessionErr))
}

func TestLogoutWithoutSessionIsSafe(t *testing.T) {
	idp := newFakeIDP(t)
	client := setupClient(t, idp, memoryrepo.New())

	require.NoError(t, client.Logout(context.Background()))
	_, logoutCalls := idp.counts()
	require.Equal(t, 0, logoutCalls)
}
