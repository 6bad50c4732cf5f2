// Package oidcclient implements provider.Client against a standard OIDC
// identity provider: issuer discovery, refresh_token grants for silent
// init and renewal, UserInfo for the profile, and the end-session
// endpoint for logout.
package oidcclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/campusboard/sessionkit/provider"
	"github.com/campusboard/sessionkit/tokencache"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Config carries the provider registration for this client.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string // empty for public PKCE-style clients
	RedirectURL  string
	Scopes       []string
}

type Client struct {
	oidcProvider  *oidc.Provider
	oauthConfig   *oauth2.Config
	endSessionURL string
	cache         tokencache.Repo
	httpClient    *http.Client
	nowFunc       func() time.Time

	lock      sync.Mutex
	current   *oauth2.Token
	sessionID string
}

var _ provider.Client = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient sets the client used for discovery, token grants and
// logout calls (primarily for testing).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(c *Client) {
		c.nowFunc = now
	}
}

// New discovers the issuer's endpoints and returns a ready client. The
// cache holds the refresh token across restarts; it is required.
func New(ctx context.Context, config Config, cache tokencache.Repo, options ...Option) (*Client, error) {
	if cache == nil {
		return nil, errors.New("[oidcclient.New] cache is required")
	}

	c := &Client{
		cache:      cache,
		httpClient: http.DefaultClient,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}

	ctx = oidc.ClientContext(ctx, c.httpClient)
	oidcProvider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "[oidcclient.New] issuer discovery")
	}

	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	c.oidcProvider = oidcProvider
	c.oauthConfig = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Endpoint:     oidcProvider.Endpoint(),
		Scopes:       scopes,
	}

	// end_session_endpoint is not part of the core discovery struct
	var discoveryExtras struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := oidcProvider.Claims(&discoveryExtras); err == nil {
		c.endSessionURL = discoveryExtras.EndSessionEndpoint
	}

	return c, nil
}

// InitSilent resumes a provider session from the cached refresh token
// without any interactive redirect. A missing cache entry or a refresh
// token the provider rejects both resolve to an unauthenticated result,
// not an error; only transport failures are errors.
func (c *Client) InitSilent(ctx context.Context) (*provider.SilentResult, error) {
	entry, err := c.cache.Load(ctx)
	if errors.Is(err, tokencache.NotFoundErr) {
		return &provider.SilentResult{Authenticated: false}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Client.InitSilent] cache.Load")
	}

	token, err := c.redeemRefreshToken(ctx, entry.RefreshToken)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			// The provider no longer recognises the refresh token; the
			// cached artifact is dead weight.
			_ = c.cache.Clear(ctx)
			return &provider.SilentResult{Authenticated: false}, nil
		}
		return nil, errors.Wrap(err, "[Client.InitSilent] token grant")
	}

	c.lock.Lock()
	c.current = token
	c.sessionID = entry.SessionID
	c.lock.Unlock()

	if err := c.persist(ctx, token); err != nil {
		return nil, errors.Wrap(err, "[Client.InitSilent] persist")
	}

	return &provider.SilentResult{Authenticated: true, RawToken: token.AccessToken}, nil
}

// Renew issues a refresh grant if fewer than margin remain on the current
// token. A token with more than the margin left is reported as not
// renewed, with no network call.
func (c *Client) Renew(ctx context.Context, margin time.Duration) (*provider.RenewResult, error) {
	c.lock.Lock()
	current := c.current
	c.lock.Unlock()

	if current == nil {
		return nil, provider.NoSessionErr
	}
	if current.Expiry.Sub(c.nowFunc()) > margin {
		return &provider.RenewResult{Renewed: false, RawToken: current.AccessToken}, nil
	}
	if current.RefreshToken == "" {
		return nil, errors.Wrap(provider.RenewalRejectedErr, "[Client.Renew] no refresh token")
	}

	token, err := c.redeemRefreshToken(ctx, current.RefreshToken)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, errors.Wrap(provider.RenewalRejectedErr, retrieveErr.Error())
		}
		return nil, errors.Wrap(err, "[Client.Renew] token grant")
	}

	c.lock.Lock()
	c.current = token
	c.lock.Unlock()

	if err := c.persist(ctx, token); err != nil {
		return nil, errors.Wrap(err, "[Client.Renew] persist")
	}

	return &provider.RenewResult{Renewed: true, RawToken: token.AccessToken}, nil
}

// FetchProfile loads the UserInfo profile for the current token.
func (c *Client) FetchProfile(ctx context.Context) (*provider.Identity, error) {
	c.lock.Lock()
	current := c.current
	c.lock.Unlock()

	if current == nil {
		return nil, provider.NoSessionErr
	}

	ctx = oidc.ClientContext(ctx, c.httpClient)
	userInfo, err := c.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(current))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.FetchProfile] userinfo")
	}

	var profileClaims struct {
		Name              string `json:"name"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := userInfo.Claims(&profileClaims); err != nil {
		return nil, errors.Wrap(err, "[Client.FetchProfile] decode claims")
	}

	return &provider.Identity{
		Subject:     userInfo.Subject,
		DisplayName: profileClaims.Name,
		Email:       userInfo.Email,
		Username:    profileClaims.PreferredUsername,
	}, nil
}

// LoginURL returns the interactive authorization URL for a fresh login.
func (c *Client) LoginURL(state string) string {
	return c.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange completes an interactive login by redeeming the authorization
// code from the provider's redirect. It starts a fresh local session ID.
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	ctx = oidc.ClientContext(ctx, c.httpClient)
	token, err := c.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return "", errors.Wrap(err, "[Client.Exchange] code exchange")
	}

	c.lock.Lock()
	c.current = token
	c.sessionID = uuid.New().String()
	c.lock.Unlock()

	if err := c.persist(ctx, token); err != nil {
		return "", errors.Wrap(err, "[Client.Exchange] persist")
	}

	return token.AccessToken, nil
}

// Logout revokes the provider-side session via the end-session endpoint
// and drops the current token either way.
func (c *Client) Logout(ctx context.Context) error {
	c.lock.Lock()
	current := c.current
	c.current = nil
	c.sessionID = ""
	c.lock.Unlock()

	if c.endSessionURL == "" || current == nil {
		return nil
	}

	form := url.Values{}
	form.Set("client_id", c.oauthConfig.ClientID)
	if c.oauthConfig.ClientSecret != "" {
		form.Set("client_secret", c.oauthConfig.ClientSecret)
	}
	if current.RefreshToken != "" {
		form.Set("refresh_token", current.RefreshToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endSessionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "[Client.Logout] build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[Client.Logout] end-session call")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("[Client.Logout] end-session returned %d", resp.StatusCode)
	}
	return nil
}

// redeemRefreshToken runs a refresh_token grant through the standard
// oauth2 token source.
func (c *Client) redeemRefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return c.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

// persist writes the rotated refresh token back to the cache. Providers
// that do not rotate return an empty refresh token on the grant response;
// the previous one stays valid and stays cached.
func (c *Client) persist(ctx context.Context, token *oauth2.Token) error {
	if token.RefreshToken == "" {
		return nil
	}

	c.lock.Lock()
	sessionID := c.sessionID
	c.lock.Unlock()
	if sessionID == "" {
		sessionID = uuid.New().String()
		c.lock.Lock()
		c.sessionID = sessionID
		c.lock.Unlock()
	}

	return c.cache.Save(ctx, &tokencache.Entry{
		SessionID:    sessionID,
		RefreshToken: token.RefreshToken,
		IssuedAt:     c.nowFunc(),
	})
}
