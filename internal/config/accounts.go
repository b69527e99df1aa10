package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const AccountsFileName = "accounts.yaml"

// Account represents a logged-in mailbox
type Account struct {
	Email   string    `yaml:"email"`
	AddedAt time.Time `yaml:"added_at"`
	Flow    string    `yaml:"flow,omitempty"`
}

// AccountList is the on-disk shape of accounts.yaml
type AccountList struct {
	Accounts []Account `yaml:"accounts"`
}

func accountsFilePath() string {
	return filepath.Join(Dir(), AccountsFileName)
}

// LoadAccounts loads the list of all logged-in accounts
func LoadAccounts() ([]Account, error) {
	data, err := os.ReadFile(accountsFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return []Account{}, nil
		}
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}

	var list AccountList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file: %w", err)
	}
	if list.Accounts == nil {
		list.Accounts = []Account{}
	}

	return list.Accounts, nil
}

// SaveAccounts saves the list of all accounts
func SaveAccounts(accounts []Account) error {
	if err := os.MkdirAll(Dir(), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(&AccountList{Accounts: accounts})
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}

	if err := os.WriteFile(accountsFilePath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write accounts file: %w", err)
	}

	return nil
}

// AddAccount adds a new account or refreshes an existing one
func AddAccount(email, flow string) error {
	accounts, err := LoadAccounts()
	if err != nil {
		return err
	}

	for i, acc := range accounts {
		if strings.EqualFold(acc.Email, email) {
			accounts[i].AddedAt = time.Now()
			accounts[i].Flow = flow
			return SaveAccounts(accounts)
		}
	}

	accounts = append(accounts, Account{
		Email:   email,
		AddedAt: time.Now(),
		Flow:    flow,
	})

	return SaveAccounts(accounts)
}

// RemoveAccount removes an account from the list
func RemoveAccount(email string) error {
	accounts, err := LoadAccounts()
	if err != nil {
		return err
	}

	kept := make([]Account, 0, len(accounts))
	for _, acc := range accounts {
		if !strings.EqualFold(acc.Email, email) {
			kept = append(kept, acc)
		}
	}

	return SaveAccounts(kept)
}

// RemoveAllAccounts removes all accounts
func RemoveAllAccounts() error {
	return SaveAccounts([]Account{})
}

// AccountExists checks if an account is known
func AccountExists(email string) bool {
	accounts, err := LoadAccounts()
	if err != nil {
		return false
	}

	for _, acc := range accounts {
		if strings.EqualFold(acc.Email, email) {
			return true
		}
	}
	return false
}

// FirstAccount returns the first known account, or "" when there is none
func FirstAccount() string {
	accounts, err := LoadAccounts()
	if err != nil || len(accounts) == 0 {
		return ""
	}
	return accounts[0].Email
}
