package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourname/outlook-cli/internal/auth"
	"github.com/yourname/outlook-cli/internal/config"
	"github.com/yourname/outlook-cli/internal/graph"
	"github.com/yourname/outlook-cli/internal/logging"
)

// version is overridden at build time with -ldflags "-X ...cmd.version=..."
var version = "0.3.0"

// AccountEnv selects the account when --account is not given
const AccountEnv = "OUTLOOK_ACCOUNT"

// logger is replaced in PersistentPreRunE once the config is known
var logger = logging.Discard()

var (
	cfg         *config.Config
	cfgFile     string
	debug       bool
	jsonOutput  bool
	accountFlag string
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "outlook",
	Short: "CLI tool to access Microsoft Graph Mail API",
	Long: `A command-line client for Outlook / Microsoft 365 mail via Microsoft Graph.

Sign in once with OAuth2 (browser or device code), then list, read,
archive, tag and unsubscribe from mail.

Examples:
  # Register your Azure app and sign in
  outlook config <client-id>
  outlook login

  # Unread mail in the inbox
  outlook list --unread

  # Read, label and archive
  outlook read <id>
  outlook label <id> Receipts
  outlook archive <id>`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// --debug applies to this run only and is never saved
		logger = logging.New(cmd.ErrOrStderr(), debug || cfg.Debug)
		logger.WithField("config", cfg.Path()).Debug("configuration loaded")

		return nil
	},
}

// Execute runs the root command and prints any error once.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: <user config dir>/outlook-cli/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVar(&accountFlag, "account", "", "Account to use (email address)")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// getActiveAccount returns the active account
// Priority: 1. --account flag, 2. OUTLOOK_ACCOUNT env, 3. current_account from config
func getActiveAccount() string {
	// 1. --account flag
	if accountFlag != "" {
		return accountFlag
	}

	// 2. OUTLOOK_ACCOUNT environment variable
	if envAccount := os.Getenv(AccountEnv); envAccount != "" {
		return envAccount
	}

	// 3. current_account from config
	if cfg != nil && cfg.CurrentAccount != "" {
		return cfg.CurrentAccount
	}

	// Fallback: First account from accounts.yaml
	return config.FirstAccount()
}

// commandContext returns the command's context, or Background when run
// without one (tests call RunE directly).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newAuthManager builds the auth manager from the loaded config.
// Tests replace it.
var newAuthManager = func(out io.Writer) (*auth.Manager, error) {
	store, err := auth.OpenStore(cfg.TokenStore, config.Dir())
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	return auth.NewManager(auth.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Tenant:       cfg.Tenant,
	}, store, auth.WithOutput(out), auth.WithLogger(logger)), nil
}

// graphLimiter is shared by every Graph client of this process so a 429
// on one request holds back the others.
var graphLimiter = graph.NewRateLimiter(graph.DefaultRequestsPerSecond, graph.DefaultBurst)

// newGraphClient returns a Graph client for the active account.
// Tests replace it.
var newGraphClient = func(ctx context.Context, cmd *cobra.Command) (*graph.Client, error) {
	account := getActiveAccount()
	if account == "" {
		return nil, auth.ErrNotLoggedIn
	}
	logger.WithField("account", account).Debug("using account")

	mgr, err := newAuthManager(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	ts, err := mgr.TokenSource(ctx, account)
	if err != nil {
		return nil, err
	}

	return graph.NewClient(ts, graph.WithLogger(logger), graph.WithRateLimiter(graphLimiter)), nil
}

// versionCmd shows the version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			_ = printJSON(cmd, map[string]string{"version": version})
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "outlook v%s\n", version)
	},
}
