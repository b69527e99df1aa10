package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

const (
	ConfigDirName  = "outlook-cli"
	ConfigFileName = "config"
	EnvPrefix      = "OUTLOOK"

	// DirEnv overrides the configuration directory
	DirEnv = "OUTLOOK_CONFIG_DIR"

	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"

	DefaultTenant   = "common"
	DefaultPageSize = 100
)

// Config holds all configuration options
type Config struct {
	ClientID       string `mapstructure:"client_id"`
	ClientSecret   string `mapstructure:"client_secret"`
	Tenant         string `mapstructure:"tenant"`
	CurrentAccount string `mapstructure:"current_account"`
	TokenStore     string `mapstructure:"token_store"`
	PageSize       int    `mapstructure:"page_size"`
	Debug          bool   `mapstructure:"debug"`

	// path is the file the config was loaded from and is saved to
	path string
}

// keys lists every persisted key in the order they are written
var keys = []string{
	"client_id",
	"client_secret",
	"tenant",
	"current_account",
	"token_store",
	"page_size",
	"debug",
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Tenant:     DefaultTenant,
		TokenStore: TokenStoreFile,
		PageSize:   DefaultPageSize,
	}
}

// Dir returns the configuration directory
func Dir() string {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, ConfigDirName)
}

// DefaultPath returns the default config file path
func DefaultPath() string {
	return filepath.Join(Dir(), ConfigFileName+".yaml")
}

// Path returns the file this config is bound to
func (c *Config) Path() string {
	if c.path == "" {
		return DefaultPath()
	}
	return c.path
}

// Load loads the configuration from file and environment variables.
// An empty path means the default location.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// loadFile loads only what is stored in the file at path
func loadFile(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, withEnv bool) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultPath()
	}
	cfg.path = path

	v := newViper(path, withEnv)

	v.SetDefault("client_id", cfg.ClientID)
	v.SetDefault("client_secret", cfg.ClientSecret)
	v.SetDefault("tenant", cfg.Tenant)
	v.SetDefault("current_account", cfg.CurrentAccount)
	v.SetDefault("token_store", cfg.TokenStore)
	v.SetDefault("page_size", cfg.PageSize)
	v.SetDefault("debug", cfg.Debug)

	// Read config file (if exists)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the changed keys of cfg to its file with owner-only
// permissions. Every other key keeps the value already stored in the file,
// so environment overrides loaded into cfg are never written back.
func Save(cfg *Config, changed ...string) error {
	for _, key := range changed {
		if !isKey(key) {
			return fmt.Errorf("unknown config key: %s", key)
		}
	}

	path := cfg.Path()
	stored, err := loadFile(path)
	if err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for _, key := range keys {
		v.Set(key, stored.get(key))
	}
	for _, key := range changed {
		v.Set(key, cfg.get(key))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	// client_secret lives here; create the file 0600 before viper writes it
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	f.Close()
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to restrict config file permissions: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SetValue sets a single configuration value and saves the file
func SetValue(cfg *Config, key, value string) error {
	switch key {
	case "client_id":
		cfg.ClientID = value
	case "client_secret":
		cfg.ClientSecret = value
	case "tenant":
		if value == "" {
			value = DefaultTenant
		}
		cfg.Tenant = value
	case "current_account":
		cfg.CurrentAccount = value
	case "token_store":
		if value != TokenStoreFile && value != TokenStoreKeyring {
			return fmt.Errorf("invalid token_store %q (use %q or %q)", value, TokenStoreFile, TokenStoreKeyring)
		}
		cfg.TokenStore = value
	case "page_size":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("page_size must be a positive integer, got %q", value)
		}
		cfg.PageSize = n
	case "debug":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("debug must be true or false, got %q", value)
		}
		cfg.Debug = b
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	return Save(cfg, key)
}

// GetValue gets a single configuration value
func GetValue(cfg *Config, key string) (string, error) {
	if !isKey(key) {
		return "", fmt.Errorf("unknown config key: %s", key)
	}
	return fmt.Sprint(cfg.get(key)), nil
}

// Keys returns the known configuration keys
func Keys() []string {
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// SetCurrentAccount sets the active account and saves the file
func SetCurrentAccount(cfg *Config, email string) error {
	cfg.CurrentAccount = email
	return Save(cfg, "current_account")
}

func (c *Config) get(key string) any {
	switch key {
	case "client_id":
		return c.ClientID
	case "client_secret":
		return c.ClientSecret
	case "tenant":
		return c.Tenant
	case "current_account":
		return c.CurrentAccount
	case "token_store":
		return c.TokenStore
	case "page_size":
		return c.PageSize
	case "debug":
		return c.Debug
	}
	return nil
}

func isKey(key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

func newViper(path string, withEnv bool) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if withEnv {
		v.SetEnvPrefix(EnvPrefix)
		v.AutomaticEnv()
	}

	return v
}
