package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/yourname/outlook-cli/internal/config"
	"github.com/yourname/outlook-cli/internal/graph"
)

// setupTest isolates config and accounts in a temp dir and restores the
// package hooks afterwards.
func setupTest(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv(config.DirEnv, dir)
	t.Setenv(AccountEnv, "")
	// viper ignores empty variables
	for _, key := range config.Keys() {
		t.Setenv(config.EnvPrefix+"_"+strings.ToUpper(key), "")
	}

	resetFlags(rootCmd)

	origGraph := newGraphClient
	origAuth := newAuthManager
	origSecret := readSecret
	origOpen := openURL
	origUnsub := unsubscribeClient
	origIdentify := identify
	origLogin := startLogin
	t.Cleanup(func() {
		newGraphClient = origGraph
		newAuthManager = origAuth
		readSecret = origSecret
		openURL = origOpen
		unsubscribeClient = origUnsub
		identify = origIdentify
		startLogin = origLogin
		resetFlags(rootCmd)
	})

	openURL = func(string) error {
		t.Error("unexpected browser open")
		return nil
	}

	return dir
}

// resetFlags puts every flag of c and its children back to its default.
// cobra keeps flag values between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCommand runs the root command with args and returns stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

// fakeGraph points the commands at a test Graph server.
func fakeGraph(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	newGraphClient = func(ctx context.Context, cmd *cobra.Command) (*graph.Client, error) {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
		return graph.NewClient(ts,
			graph.WithBaseURL(srv.URL),
			graph.WithHTTPClient(srv.Client()),
			graph.WithRetry(0, time.Millisecond),
			graph.WithLogger(logger),
		), nil
	}
	return srv
}

func TestVersion(t *testing.T) {
	setupTest(t)

	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "outlook v"+version+"\n", out)

	out, err = executeCommand(t, "version", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"`+version+`"}`, out)
}

func TestUnknownCommand(t *testing.T) {
	setupTest(t)

	_, err := executeCommand(t, "frobnicate")
	assert.Error(t, err)
}

func TestGetActiveAccount_Priority(t *testing.T) {
	setupTest(t)
	require.NoError(t, config.AddAccount("first@example.com", "browser"))
	require.NoError(t, config.AddAccount("second@example.com", "browser"))

	var err error
	cfg, err = config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "first@example.com", getActiveAccount(), "falls back to first account")

	cfg.CurrentAccount = "second@example.com"
	assert.Equal(t, "second@example.com", getActiveAccount())

	t.Setenv(AccountEnv, "env@example.com")
	assert.Equal(t, "env@example.com", getActiveAccount())

	accountFlag = "flag@example.com"
	assert.Equal(t, "flag@example.com", getActiveAccount())
	accountFlag = ""
}

func TestGraphCommand_NotLoggedIn(t *testing.T) {
	setupTest(t)

	_, err := executeCommand(t, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, assert.AnError)
	assert.Contains(t, buf.String(), "Error: "+assert.AnError.Error())
}
