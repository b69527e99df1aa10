package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/yourname/outlook-cli/internal/auth"
	"github.com/yourname/outlook-cli/internal/config"
	"github.com/yourname/outlook-cli/internal/graph"
)

var (
	loginDeviceCode bool
	logoutAll       bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with Microsoft (opens browser)",
	Long: `Signs in with OAuth2 and stores the tokens locally.

By default the authorization-code flow with PKCE is used: a browser opens,
and the redirect is received on a local port. With --device-code you get a
code to enter at microsoft.com/devicelogin instead, which also works over SSH.

The signed-in account becomes the active account.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [email]",
	Short: "Logout and delete token",
	Long: `Logs out an account and deletes its token.

Without argument, logs out the active account.
With --all, logs out all accounts.

Examples:
  outlook logout
  outlook logout user@example.com
  outlook logout --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current auth status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List all logged-in accounts",
	Args:  cobra.NoArgs,
	RunE:  runAccounts,
}

var switchCmd = &cobra.Command{
	Use:   "switch <email>",
	Short: "Switch default account",
	Long: `Switches the default account.

The selected account is used as default when no --account flag
or OUTLOOK_ACCOUNT environment variable is set.

Examples:
  outlook switch user@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: runSwitch,
}

func init() {
	loginCmd.Flags().BoolVar(&loginDeviceCode, "device-code", false, "Use the device code flow instead of a browser redirect")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "Logout all accounts")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(switchCmd)
}

// identify asks Graph who the token belongs to.
var identify = func(ctx context.Context, tok *oauth2.Token) (string, error) {
	client := graph.NewClient(oauth2.StaticTokenSource(tok), graph.WithLogger(logger), graph.WithRateLimiter(graphLimiter))
	me, err := client.Me(ctx)
	if err != nil {
		return "", err
	}
	return me.Email(), nil
}

// startLogin runs the browser or device code flow.
var startLogin = func(ctx context.Context, mgr *auth.Manager, device bool) (*auth.Result, error) {
	if device {
		return mgr.LoginDevice(ctx)
	}
	return mgr.Login(ctx)
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	if cfg.ClientID == "" {
		return auth.ErrNotConfigured
	}

	mgr, err := newAuthManager(cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if loginDeviceCode {
		printInfo(cmd, "Starting device code login...")
	}
	res, err := startLogin(ctx, mgr, loginDeviceCode)
	if err != nil {
		return err
	}

	email, err := identify(ctx, res.Token)
	if err != nil {
		if res.Username == "" {
			return fmt.Errorf("failed to identify account: %w", err)
		}
		logger.Warnf("Could not read profile, using sign-in name: %v", err)
		email = res.Username
	}

	if err := mgr.Save(email, res); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	// Add account to accounts.yaml
	if err := config.AddAccount(email, res.Flow); err != nil {
		printError(cmd.ErrOrStderr(), fmt.Errorf("failed to save account: %w", err))
	}

	// Set as current_account
	if err := config.SetCurrentAccount(cfg, email); err != nil {
		printError(cmd.ErrOrStderr(), fmt.Errorf("failed to set current account: %w", err))
	}

	if jsonOutput {
		return printJSON(cmd, map[string]any{
			"account":   email,
			"flow":      res.Flow,
			"expiresAt": res.Token.Expiry,
		})
	}

	fmt.Fprintln(cmd.OutOrStdout())
	printSuccess(cmd, "Login successful! Logged in as %s", email)
	printInfo(cmd, "Token valid until: %s", res.Token.Expiry.Format(time.RFC1123))
	printInfo(cmd, "Account set as active account.")

	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	mgr, err := newAuthManager(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	// --all flag: Logout all accounts
	if logoutAll {
		accounts, err := config.LoadAccounts()
		if err != nil {
			return err
		}
		emails := make([]string, len(accounts))
		for i, acc := range accounts {
			emails[i] = acc.Email
		}

		if err := mgr.LogoutAll(ctx, emails); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}
		if err := config.RemoveAllAccounts(); err != nil {
			printError(cmd.ErrOrStderr(), fmt.Errorf("failed to remove accounts from config: %w", err))
		}
		if err := config.SetCurrentAccount(cfg, ""); err != nil {
			printError(cmd.ErrOrStderr(), fmt.Errorf("failed to clear current account: %w", err))
		}
		printSuccess(cmd, "All accounts logged out")
		printInfo(cmd, "Local tokens deleted.")
		return nil
	}

	// Determine email: argument > active account
	var email string
	if len(args) > 0 {
		email = args[0]
	} else {
		email = getActiveAccount()
	}

	if email == "" {
		printInfo(cmd, "No account to logout.")
		return nil
	}

	// Check if account exists
	status, err := mgr.Status(email)
	if err != nil {
		return err
	}
	if !status.LoggedIn && !config.AccountExists(email) {
		printInfo(cmd, "Account %s is not logged in.", email)
		return nil
	}

	if err := mgr.Logout(ctx, email); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	// Remove from accounts.yaml
	if err := config.RemoveAccount(email); err != nil {
		printError(cmd.ErrOrStderr(), fmt.Errorf("failed to remove account from config: %w", err))
	}

	// If it was the current_account, switch to another
	if strings.EqualFold(cfg.CurrentAccount, email) {
		newCurrent := config.FirstAccount()
		if err := config.SetCurrentAccount(cfg, newCurrent); err != nil {
			printError(cmd.ErrOrStderr(), fmt.Errorf("failed to update current account: %w", err))
		}
		if newCurrent != "" {
			printInfo(cmd, "Active account switched to: %s", newCurrent)
		}
	}

	printSuccess(cmd, "Successfully logged out from %s", email)
	printInfo(cmd, "Token deleted.")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	mgr, err := newAuthManager(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	accounts, err := config.LoadAccounts()
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	statuses := make([]*auth.Status, 0, len(accounts))
	for _, acc := range accounts {
		st, err := mgr.Status(acc.Email)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		statuses = append(statuses, st)
	}

	if jsonOutput {
		return printJSON(cmd, statuses)
	}

	fmt.Fprintln(cmd.OutOrStdout())
	printHeading(cmd, "Auth Status")

	if len(statuses) == 0 {
		printInfo(cmd, "Status: Not logged in")
		printInfo(cmd, "\nUse 'outlook login' to sign in.")
		return nil
	}

	currentAccount := getActiveAccount()

	for _, status := range statuses {
		marker := "  "
		if strings.EqualFold(status.Account, currentAccount) {
			marker = "* "
		}

		switch {
		case !status.LoggedIn:
			printInfo(cmd, "%s%s (no token, run 'outlook login')", marker, status.Account)
		case status.Expired && status.Refreshable:
			printInfo(cmd, "%s%s (%s, token expired, will refresh)", marker, status.Account, status.Flow)
		case status.Expired:
			printInfo(cmd, "%s%s (%s, token expired)", marker, status.Account, status.Flow)
		default:
			printInfo(cmd, "%s%s (%s, valid, %s remaining)", marker, status.Account, status.Flow, formatRemaining(time.Until(status.ExpiresAt)))
		}
	}

	fmt.Fprintln(cmd.OutOrStdout())
	printInfo(cmd, "* = active account")

	return nil
}

func formatRemaining(remaining time.Duration) string {
	if remaining > time.Hour {
		return fmt.Sprintf("%.0fh", remaining.Hours())
	}
	return fmt.Sprintf("%.0fm", remaining.Minutes())
}

func runAccounts(cmd *cobra.Command, args []string) error {
	accounts, err := config.LoadAccounts()
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	currentAccount := getActiveAccount()

	if jsonOutput {
		type accountJSON struct {
			Email   string    `json:"email"`
			Flow    string    `json:"flow,omitempty"`
			AddedAt time.Time `json:"addedAt"`
			Active  bool      `json:"active"`
		}
		out := make([]accountJSON, len(accounts))
		for i, acc := range accounts {
			out[i] = accountJSON{
				Email:   acc.Email,
				Flow:    acc.Flow,
				AddedAt: acc.AddedAt,
				Active:  strings.EqualFold(acc.Email, currentAccount),
			}
		}
		return printJSON(cmd, out)
	}

	if len(accounts) == 0 {
		printInfo(cmd, "No accounts logged in.")
		printInfo(cmd, "\nUse 'outlook login' to sign in.")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout())
	printHeading(cmd, "Logged-in Accounts")

	for _, acc := range accounts {
		marker := "  "
		if strings.EqualFold(acc.Email, currentAccount) {
			marker = "* "
		}
		addedAt := acc.AddedAt.Format("2006-01-02 15:04")
		printInfo(cmd, "%s%s (added: %s)", marker, acc.Email, addedAt)
	}

	fmt.Fprintln(cmd.OutOrStdout())
	printInfo(cmd, "* = active account")
	printInfo(cmd, "\nUse 'outlook switch <email>' to change the active account.")

	return nil
}

func runSwitch(cmd *cobra.Command, args []string) error {
	email := args[0]

	// Check if account exists
	if !config.AccountExists(email) {
		return fmt.Errorf("account %s not found. Use 'outlook accounts' to show all accounts", email)
	}

	// Set as current_account
	if err := config.SetCurrentAccount(cfg, email); err != nil {
		return fmt.Errorf("failed to set current account: %w", err)
	}

	printSuccess(cmd, "Active account switched to: %s", email)

	return nil
}
