package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status describes the stored login of one account. It is computed from the
// store alone, without contacting the identity provider.
type Status struct {
	Account     string    `json:"account"`
	LoggedIn    bool      `json:"logged_in"`
	Flow        string    `json:"flow,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	Expired     bool      `json:"expired"`
	Refreshable bool      `json:"refreshable"`
	SavedAt     time.Time `json:"saved_at,omitempty"`
}

// Status reports the login state of account.
func (m *Manager) Status(account string) (*Status, error) {
	rec, err := LoadRecord(m.store, account)
	if errors.Is(err, ErrNotLoggedIn) {
		return &Status{Account: account}, nil
	}
	if err != nil {
		return nil, err
	}

	st := &Status{
		Account:   account,
		LoggedIn:  true,
		Flow:      rec.Flow,
		ExpiresAt: rec.Token.Expiry,
		SavedAt:   rec.SavedAt,
	}
	st.Expired = !rec.Token.Expiry.IsZero() && time.Now().After(rec.Token.Expiry)

	switch rec.Flow {
	case FlowDevice:
		st.Refreshable = rec.HomeAccountID != ""
	default:
		st.Refreshable = rec.Token.RefreshToken != ""
	}

	return st, nil
}

// Logout forgets the tokens of account. Device-code logins are also removed
// from the MSAL cache.
func (m *Manager) Logout(ctx context.Context, account string) error {
	rec, err := LoadRecord(m.store, account)
	if err != nil && !errors.Is(err, ErrNotLoggedIn) {
		return err
	}

	if rec != nil && rec.Flow == FlowDevice {
		if err := m.removeMSALAccount(ctx, rec); err != nil {
			m.log.Warnf("Failed to remove %s from the MSAL cache: %v", account, err)
		}
	}

	if err := DeleteRecord(m.store, account); err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return nil
}

// LogoutAll logs out every listed account and drops the MSAL cache.
func (m *Manager) LogoutAll(ctx context.Context, accounts []string) error {
	for _, account := range accounts {
		if err := m.Logout(ctx, account); err != nil {
			return err
		}
	}
	return NewTokenCache(m.store).Clear()
}

func (m *Manager) removeMSALAccount(ctx context.Context, rec *Record) error {
	app, err := m.msalApp()
	if err != nil {
		return err
	}

	account, ok, err := findMSALAccount(ctx, app, rec)
	if err != nil || !ok {
		return err
	}
	if err := app.RemoveAccount(ctx, account); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}
	return nil
}
