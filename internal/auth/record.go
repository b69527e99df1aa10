package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Login flows.
const (
	FlowBrowser = "browser"
	FlowDevice  = "device"
)

// ErrNotLoggedIn is returned when no token record exists for the account.
var ErrNotLoggedIn = errors.New("not logged in. Run 'outlook login' first")

// Record is the persisted login state of one account.
type Record struct {
	Account string        `json:"account"`
	Flow    string        `json:"flow"`
	Token   *oauth2.Token `json:"token"`
	// HomeAccountID identifies the MSAL account for device-code logins
	HomeAccountID string    `json:"home_account_id,omitempty"`
	SavedAt       time.Time `json:"saved_at"`
}

func recordKey(account string) string {
	return "token/" + strings.ToLower(account)
}

// LoadRecord reads the record of account from store.
func LoadRecord(store Store, account string) (*Record, error) {
	data, err := store.Get(recordKey(account))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse token record for %s: %w", account, err)
	}
	if rec.Token == nil {
		return nil, ErrNotLoggedIn
	}
	return &rec, nil
}

// SaveRecord writes rec, stamping SavedAt.
func SaveRecord(store Store, rec *Record) error {
	rec.SavedAt = time.Now()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}
	return store.Set(recordKey(rec.Account), data)
}

// DeleteRecord removes the record of account.
func DeleteRecord(store Store, account string) error {
	return store.Delete(recordKey(account))
}
