package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yourname/outlook-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [client-id] [client-secret]",
	Short: "Set OAuth client credentials or manage configuration",
	Long: `Sets the OAuth client credentials from your Azure App Registration.

The secret is prompted for (without echo) when stdin is a terminal and it is
not given as an argument. Leave it empty for a public client.
Without arguments, shows the current configuration.

Examples:
  outlook config 00000000-0000-0000-0000-000000000000
  outlook config <client-id> <client-secret>
  outlook config set tenant contoso.onmicrosoft.com`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set configuration value",
	Long: `Sets a configuration value.

Available keys:
  client_id       - Azure App Client ID
  client_secret   - Azure App Client Secret (optional)
  tenant          - Azure AD tenant (default: common)
  current_account - Active account (email address)
  token_store     - Where tokens are kept: file or keyring (default: file)
  page_size       - Default number of messages for 'list' (default: 100)
  debug           - Enable debug logging (true/false)

Examples:
  outlook config set client_id "your-client-id"
  outlook config set token_store keyring`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run:   runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)
}

// readSecret prompts for the client secret. Tests replace it.
var readSecret = func(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Client Secret (leave empty for a public client): ")
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read client secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return runConfigShow(cmd, args)
	}

	cfg.ClientID = args[0]
	if len(args) == 2 {
		cfg.ClientSecret = args[1]
	} else {
		secret, err := readSecret(cmd)
		if err != nil {
			return err
		}
		cfg.ClientSecret = secret
	}

	if err := config.Save(cfg, "client_id", "client_secret"); err != nil {
		return err
	}

	printSuccess(cmd, "Credentials saved to %s", cfg.Path())
	if cfg.ClientSecret == "" {
		printInfo(cmd, "No client secret set; signing in as a public client.")
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if jsonOutput {
		values := make(map[string]string, len(config.Keys()))
		for _, key := range config.Keys() {
			v, _ := config.GetValue(cfg, key)
			values[key] = v
		}
		if values["client_secret"] != "" {
			values["client_secret"] = "********"
		}
		values["active_account"] = getActiveAccount()
		values["path"] = cfg.Path()
		return printJSON(cmd, values)
	}

	secret := ""
	if cfg.ClientSecret != "" {
		secret = "********"
	}

	fmt.Fprintln(cmd.OutOrStdout())
	printHeading(cmd, "Current Configuration")
	printInfo(cmd, "Client ID:       %s", valueOrNone(maskIfLong(cfg.ClientID, 20)))
	printInfo(cmd, "Client Secret:   %s", valueOrNone(secret))
	printInfo(cmd, "Tenant:          %s", cfg.Tenant)
	printInfo(cmd, "Current Account: %s", valueOrNone(cfg.CurrentAccount))
	printInfo(cmd, "Active Account:  %s", valueOrNone(getActiveAccount()))
	printInfo(cmd, "Token Store:     %s", cfg.TokenStore)
	printInfo(cmd, "Page Size:       %d", cfg.PageSize)
	printInfo(cmd, "Debug:           %v", cfg.Debug)
	printInfo(cmd, "\nConfig file: %s", cfg.Path())

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	if err := config.SetValue(cfg, key, value); err != nil {
		return err
	}

	if key == "client_secret" {
		value = "********"
	}
	printSuccess(cmd, "%s = %s", key, value)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	value, err := config.GetValue(cfg, key)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) {
	fmt.Fprintln(cmd.OutOrStdout(), cfg.Path())
}
