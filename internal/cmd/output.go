package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// printError prints a formatted error
func printError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("Error:")+" "+err.Error())
}

// printSuccess prints a success message
func printSuccess(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓")+" "+fmt.Sprintf(format, args...))
}

// printInfo prints an info message
func printInfo(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}

// printHeading prints a section title
func printHeading(cmd *cobra.Command, title string) {
	fmt.Fprintln(cmd.OutOrStdout(), headingStyle.Render(title))
}

// printJSON writes v as a single line of JSON
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func valueOrNone(s string) string {
	if s == "" {
		return mutedStyle.Render("(not set)")
	}
	return s
}

func maskIfLong(s string, maxShow int) string {
	if len(s) <= maxShow {
		return s
	}
	return s[:maxShow] + "..."
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
