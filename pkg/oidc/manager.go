package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/mindrush/portal/pkg/auth"
	"github.com/mindrush/portal/pkg/observability"
)

// Scopes requested from the identity provider. offline_access asks for a
// refresh token so sessions survive access-token expiry.
var Scopes = []string{gooidc.ScopeOpenID, "email", "profile", "offline_access"}

const (
	stateCookieName = "mr_oidc_state"
	stateCookieAge  = 600 // seconds

	// discoveryTTL bounds how long provider metadata is memoized
	discoveryTTL = time.Hour
)

var (
	// ErrNoRefreshToken means the session cannot be refreshed and the user
	// must log in again.
	ErrNoRefreshToken = errors.New("no refresh token on session")

	// ErrStateMismatch means the callback state did not match the cookie
	ErrStateMismatch = errors.New("state parameter mismatch")
)

// Config holds identity provider settings
type Config struct {
	IssuerURL             string
	ClientID              string
	ClientSecret          string
	RedirectURL           string
	PostLogoutRedirectURL string
}

// Configured reports whether enough settings are present to attempt OIDC
func (c Config) Configured() bool {
	return c.IssuerURL != "" && c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

// Manager performs delegated authentication and keeps access tokens fresh.
// Provider metadata is discovered lazily and memoized for up to an hour; a
// stale-but-present entry always beats a failed refetch.
type Manager struct {
	cfg    Config
	logger *observability.Logger
	clock  func() time.Time
	client *http.Client

	cache discoveryCache
}

// NewManager creates an OIDC session manager. Discovery happens on first
// use, not construction, so a down provider never blocks startup.
func NewManager(cfg Config, logger *observability.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger,
		clock:  time.Now,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithClock overrides the manager clock, for tests
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.clock = now
	return m
}

// oauthConfig builds the OAuth2 exchange config for a discovered provider
func (m *Manager) oauthConfig(provider *gooidc.Provider) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  m.cfg.RedirectURL,
		Scopes:       Scopes,
	}
}

// httpContext bounds all provider round trips with the manager's client
func (m *Manager) httpContext(ctx context.Context) context.Context {
	ctx = gooidc.ClientContext(ctx, m.client)
	return context.WithValue(ctx, oauth2.HTTPClient, m.client)
}

// BeginLogin redirects the user agent to the provider's authorization
// endpoint with a fresh state cookie.
func (m *Manager) BeginLogin(w http.ResponseWriter, r *http.Request) error {
	provider, _, err := m.discover(r.Context())
	if err != nil {
		return err
	}

	stateBytes := make([]byte, 32)
	if _, err := rand.Read(stateBytes); err != nil {
		return fmt.Errorf("failed to generate state: %w", err)
	}
	state := base64.URLEncoding.EncodeToString(stateBytes)

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   stateCookieAge,
	})

	authURL := m.oauthConfig(provider).AuthCodeURL(state, oauth2.AccessTypeOffline)
	http.Redirect(w, r, authURL, http.StatusFound)
	return nil
}

// idTokenClaims is the subset of ID token claims the portal consumes
type idTokenClaims struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

// CompleteLogin exchanges the callback's authorization code for tokens,
// verifies the ID token, and constructs an OIDC principal.
func (m *Manager) CompleteLogin(w http.ResponseWriter, r *http.Request) (*auth.OIDCPrincipal, error) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		return nil, fmt.Errorf("missing state cookie: %w", err)
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		return nil, ErrStateMismatch
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, MaxAge: -1, Path: "/"})

	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, errors.New("missing authorization code")
	}

	provider, _, err := m.discover(r.Context())
	if err != nil {
		return nil, err
	}

	ctx := m.httpContext(r.Context())
	token, err := m.oauthConfig(provider).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	principal, err := m.principalFromToken(ctx, provider, token)
	if err != nil {
		return nil, err
	}
	return principal, nil
}

// principalFromToken verifies the id_token and maps tokens and claims onto
// a principal.
func (m *Manager) principalFromToken(ctx context.Context, provider *gooidc.Provider, token *oauth2.Token) (*auth.OIDCPrincipal, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("missing id_token in token response")
	}

	verifier := provider.Verifier(&gooidc.Config{ClientID: m.cfg.ClientID})
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	return &auth.OIDCPrincipal{
		Claims: auth.Claims{
			Subject:         idToken.Subject,
			Email:           claims.Email,
			FirstName:       claims.GivenName,
			LastName:        claims.FamilyName,
			ProfileImageURL: claims.Picture,
			ExpiresAt:       token.Expiry.Unix(),
		},
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}, nil
}

// Refresh exchanges the refresh token for a new access token and overwrites
// the principal's claims and tokens in place. Called only once per request
// and only when the claims report expiry; a rejection is final, the caller
// signals unauthenticated.
func (m *Manager) Refresh(ctx context.Context, p *auth.OIDCPrincipal) error {
	if p.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	provider, _, err := m.discover(ctx)
	if err != nil {
		return err
	}

	ctx = m.httpContext(ctx)
	source := m.oauthConfig(provider).TokenSource(ctx, &oauth2.Token{RefreshToken: p.RefreshToken})
	token, err := source.Token()
	if err != nil {
		return fmt.Errorf("refresh token exchange failed: %w", err)
	}

	// Providers may rotate identity claims alongside the token pair; prefer
	// a fresh id_token when one is issued.
	if _, ok := token.Extra("id_token").(string); ok {
		refreshed, err := m.principalFromToken(ctx, provider, token)
		if err != nil {
			return err
		}
		*p = *refreshed
		if p.RefreshToken == "" {
			p.RefreshToken = token.RefreshToken
		}
	} else {
		p.AccessToken = token.AccessToken
		p.Claims.ExpiresAt = token.Expiry.Unix()
		if token.RefreshToken != "" {
			p.RefreshToken = token.RefreshToken
		}
	}

	return nil
}

// LogoutURL builds the provider's end-session URL. Empty when the provider
// does not advertise one; the caller falls back to a local redirect. The
// local session is cleared regardless.
func (m *Manager) LogoutURL(ctx context.Context) string {
	_, endSession, err := m.discover(ctx)
	if err != nil || endSession == "" {
		return ""
	}

	u, err := url.Parse(endSession)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("client_id", m.cfg.ClientID)
	if m.cfg.PostLogoutRedirectURL != "" {
		q.Set("post_logout_redirect_uri", m.cfg.PostLogoutRedirectURL)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
