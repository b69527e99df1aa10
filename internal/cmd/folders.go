package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List all mail folders",
	Long: `Lists all mail folders with their unread and total counts.

Child folders are shown by path, e.g. "Inbox/Receipts". Any name shown
here can be passed to 'outlook list -l'.`,
	Args: cobra.NoArgs,
	RunE: runFolders,
}

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "List categories",
	Args:  cobra.NoArgs,
	RunE:  runLabels,
}

func init() {
	rootCmd.AddCommand(foldersCmd)
	rootCmd.AddCommand(labelsCmd)
}

func runFolders(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	client, err := newGraphClient(ctx, cmd)
	if err != nil {
		return err
	}

	folders, err := client.ListFolders(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		type folderJSON struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Unread int    `json:"unread"`
			Total  int    `json:"total"`
		}
		out := make([]folderJSON, len(folders))
		for i, f := range folders {
			out[i] = folderJSON{ID: f.ID, Name: f.Name, Unread: f.UnreadItemCount, Total: f.TotalItemCount}
		}
		return printJSON(cmd, out)
	}

	if len(folders) == 0 {
		printInfo(cmd, "No folders found.")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout())
	printHeading(cmd, "Available Folders")

	for _, folder := range folders {
		indent := strings.Repeat("  ", folder.Depth)

		displayName := folder.DisplayName
		if displayName == "" {
			displayName = folder.Name
		}

		counts := fmt.Sprintf("%d/%d", folder.UnreadItemCount, folder.TotalItemCount)
		printInfo(cmd, "%s%-*s %s", indent, 30-len(indent), displayName, mutedStyle.Render(counts))
	}

	fmt.Fprintln(cmd.OutOrStdout())
	printInfo(cmd, "%d folders (unread/total)", len(folders))

	return nil
}

func runLabels(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	client, err := newGraphClient(ctx, cmd)
	if err != nil {
		return err
	}

	categories, err := client.ListCategories(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd, categories)
	}

	if len(categories) == 0 {
		printInfo(cmd, "No categories found.")
		return nil
	}

	printInfo(cmd, "Categories:")
	for _, cat := range categories {
		printInfo(cmd, "  %s (color: %s)", cat.DisplayName, orDefault(cat.Color, "none"))
	}

	return nil
}
