// Package auth signs users in to Microsoft Graph and keeps their tokens fresh.
//
// Two flows are supported: the browser authorization-code flow with PKCE
// (golang.org/x/oauth2) and the device-code flow (MSAL). Tokens are kept per
// account in a Store and refreshed transparently by TokenSource.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/yourname/outlook-cli/internal/config"
)

const (
	// LoginMaxAttempts bounds how often the browser flow is restarted
	LoginMaxAttempts = 3

	// CallbackTimeout is how long to wait for the browser redirect
	CallbackTimeout = 120 * time.Second

	// ExpiryDelta refreshes tokens this long before they expire
	ExpiryDelta = 5 * time.Minute
)

// Scopes requested by the browser flow.
// Mail.ReadWrite reads, moves and tags messages; MailboxSettings.Read lists
// categories; offline_access yields a refresh token.
var Scopes = []string{
	"Mail.ReadWrite",
	"Mail.Send",
	"MailboxSettings.Read",
	"User.Read",
	"offline_access",
}

// ErrNotConfigured is returned when no client id has been set.
var ErrNotConfigured = errors.New("not configured. Run 'outlook config <client-id>' first")

// Config holds the app registration used to sign in.
type Config struct {
	ClientID     string
	ClientSecret string
	Tenant       string
}

// Manager runs logins and hands out token sources for stored accounts.
type Manager struct {
	cfg      Config
	store    Store
	endpoint oauth2.Endpoint

	httpClient      *http.Client
	opener          func(url string) error
	out             io.Writer
	log             logrus.FieldLogger
	callbackTimeout time.Duration

	msal msalClient
}

// Option configures a Manager.
type Option func(*Manager)

// WithEndpoint overrides the Azure AD authorize and token URLs.
func WithEndpoint(e oauth2.Endpoint) Option {
	return func(m *Manager) { m.endpoint = e }
}

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(m *Manager) { m.httpClient = hc }
}

// WithOpener replaces the function that opens the login URL.
func WithOpener(open func(url string) error) Option {
	return func(m *Manager) { m.opener = open }
}

// WithOutput sets where login prompts are printed.
func WithOutput(w io.Writer) Option {
	return func(m *Manager) { m.out = w }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = l }
}

// WithCallbackTimeout overrides CallbackTimeout.
func WithCallbackTimeout(d time.Duration) Option {
	return func(m *Manager) { m.callbackTimeout = d }
}

// WithMSALClient injects the device-code client.
func WithMSALClient(c msalClient) Option {
	return func(m *Manager) { m.msal = c }
}

// NewManager creates a Manager for the given app registration and store.
func NewManager(cfg Config, store Store, opts ...Option) *Manager {
	if cfg.Tenant == "" {
		cfg.Tenant = config.DefaultTenant
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	endpoint := microsoft.AzureADEndpoint(cfg.Tenant)
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	m := &Manager{
		cfg:             cfg,
		store:           store,
		endpoint:        endpoint,
		opener:          browser.OpenURL,
		out:             io.Discard,
		log:             discard,
		callbackTimeout: CallbackTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) oauthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		Endpoint:     m.endpoint,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
	}
}

func (m *Manager) withHTTPClient(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// Result is a completed login, not yet tied to an account.
type Result struct {
	Flow          string
	Token         *oauth2.Token
	HomeAccountID string
	// Username is the sign-in name reported by the identity provider, if any
	Username string
}

// Login runs the browser flow, retrying up to LoginMaxAttempts times.
func (m *Manager) Login(ctx context.Context) (*Result, error) {
	if m.cfg.ClientID == "" {
		return nil, ErrNotConfigured
	}

	var lastErr error
	for attempt := 0; attempt < LoginMaxAttempts; attempt++ {
		if attempt > 0 {
			fmt.Fprintf(m.out, "Retrying login (attempt %d/%d)...\n", attempt+1, LoginMaxAttempts)
		}

		tok, err := m.tryLogin(ctx)
		if err == nil {
			return &Result{Flow: FlowBrowser, Token: tok}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		m.log.Warnf("Login failed: %v", err)
		lastErr = err
	}

	return nil, fmt.Errorf("login failed after %d attempts: %w", LoginMaxAttempts, lastErr)
}

func (m *Manager) tryLogin(ctx context.Context) (*oauth2.Token, error) {
	state := uuid.NewString()

	srv, err := startCallbackServer(state)
	if err != nil {
		return nil, err
	}
	defer srv.Close()

	conf := m.oauthConfig(srv.RedirectURL())
	verifier := oauth2.GenerateVerifier()
	authURL := conf.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("response_mode", "query"),
	)

	fmt.Fprintln(m.out, "Opening browser for authentication...")
	fmt.Fprintf(m.out, "If the browser doesn't open, visit:\n%s\n", authURL)
	if err := m.opener(authURL); err != nil {
		m.log.Warnf("Failed to open browser: %v", err)
	}

	fmt.Fprintf(m.out, "Waiting for OAuth callback on port %d (timeout: %s)...\n", srv.Port(), m.callbackTimeout)
	code, err := srv.Wait(ctx, m.callbackTimeout)
	if err != nil {
		return nil, err
	}

	tok, err := conf.Exchange(m.withHTTPClient(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}
	if tok.RefreshToken == "" {
		return nil, errors.New("no refresh token received")
	}

	return tok, nil
}

// Save stores a login result under account.
func (m *Manager) Save(account string, res *Result) error {
	return SaveRecord(m.store, &Record{
		Account:       account,
		Flow:          res.Flow,
		Token:         res.Token,
		HomeAccountID: res.HomeAccountID,
	})
}
