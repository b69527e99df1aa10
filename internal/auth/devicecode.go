package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
	"golang.org/x/oauth2"
)

// AuthorityHost is the Microsoft identity platform host
const AuthorityHost = "https://login.microsoftonline.com/"

// msalScopes are the device-code scopes. MSAL adds offline_access itself and
// rejects it when passed explicitly.
var msalScopes = func() []string {
	out := make([]string, 0, len(Scopes))
	for _, s := range Scopes {
		if s != "offline_access" {
			out = append(out, s)
		}
	}
	return out
}()

// msalClient is the part of public.Client the device flow uses.
type msalClient interface {
	AcquireTokenByDeviceCode(ctx context.Context, scopes []string, opts ...public.AcquireByDeviceCodeOption) (public.DeviceCode, error)
	AcquireTokenSilent(ctx context.Context, scopes []string, opts ...public.AcquireSilentOption) (public.AuthResult, error)
	Accounts(ctx context.Context) ([]public.Account, error)
	RemoveAccount(ctx context.Context, account public.Account) error
}

func (m *Manager) msalApp() (msalClient, error) {
	if m.msal != nil {
		return m.msal, nil
	}
	if m.cfg.ClientID == "" {
		return nil, ErrNotConfigured
	}

	app, err := public.New(m.cfg.ClientID,
		public.WithAuthority(AuthorityHost+m.cfg.Tenant),
		public.WithCache(NewTokenCache(m.store)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create MSAL app: %w", err)
	}

	m.msal = app
	return app, nil
}

// LoginDevice runs the device-code flow. The user code and verification URL
// are printed to the manager's output.
func (m *Manager) LoginDevice(ctx context.Context) (*Result, error) {
	app, err := m.msalApp()
	if err != nil {
		return nil, err
	}

	deviceCode, err := app.AcquireTokenByDeviceCode(ctx, msalScopes)
	if err != nil {
		return nil, fmt.Errorf("failed to start device code flow: %w", err)
	}

	if deviceCode.Result.Message != "" {
		fmt.Fprintln(m.out, deviceCode.Result.Message)
	} else {
		fmt.Fprintf(m.out, "To sign in, open %s and enter the code %s\n",
			deviceCode.Result.VerificationURL, deviceCode.Result.UserCode)
	}

	result, err := deviceCode.AuthenticationResult(ctx)
	if err != nil {
		return nil, fmt.Errorf("device code login failed: %w", err)
	}

	return &Result{
		Flow:          FlowDevice,
		Token:         tokenFromMSAL(result),
		HomeAccountID: result.Account.HomeAccountID,
		Username:      result.Account.PreferredUsername,
	}, nil
}

func tokenFromMSAL(result public.AuthResult) *oauth2.Token {
	return &oauth2.Token{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		Expiry:      result.ExpiresOn,
	}
}

// findMSALAccount looks an account up by home account id, falling back to
// the sign-in name.
func findMSALAccount(ctx context.Context, app msalClient, rec *Record) (public.Account, bool, error) {
	accounts, err := app.Accounts(ctx)
	if err != nil {
		return public.Account{}, false, fmt.Errorf("failed to get accounts: %w", err)
	}

	for _, acc := range accounts {
		if rec.HomeAccountID != "" && acc.HomeAccountID == rec.HomeAccountID {
			return acc, true, nil
		}
	}
	for _, acc := range accounts {
		if strings.EqualFold(acc.PreferredUsername, rec.Account) {
			return acc, true, nil
		}
	}
	return public.Account{}, false, nil
}

// msalSource refreshes device-code logins through MSAL's silent flow.
type msalSource struct {
	ctx context.Context
	m   *Manager
	rec *Record
}

func (s *msalSource) Token() (*oauth2.Token, error) {
	app, err := s.m.msalApp()
	if err != nil {
		return nil, err
	}

	account, ok, err := findMSALAccount(s.ctx, app, s.rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no token found for %s, please run 'outlook login --device-code' again", s.rec.Account)
	}

	result, err := app.AcquireTokenSilent(s.ctx, msalScopes, public.WithSilentAccount(account))
	if err != nil {
		return nil, fmt.Errorf("token expired for %s, please run 'outlook login --device-code' again: %w", s.rec.Account, err)
	}

	return tokenFromMSAL(result), nil
}
