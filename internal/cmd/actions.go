package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/yourname/outlook-cli/internal/graph"
	"github.com/yourname/outlook-cli/internal/unsubscribe"
)

var (
	spamNoUnsubscribe bool
	unsubscribeOpen   bool
)

// openURL opens a link in the default browser. Tests replace it.
var openURL = browser.OpenURL

// unsubscribeClient sends one-click unsubscribe requests. Tests replace it.
var unsubscribeClient unsubscribe.Doer = &http.Client{Timeout: 30 * time.Second}

var archiveCmd = &cobra.Command{
	Use:   "archive <id>...",
	Short: "Move messages to the Archive folder",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMove(cmd, args, (*graph.Client).Archive, graph.FolderArchive, "Archived")
	},
}

var spamCmd = &cobra.Command{
	Use:   "spam <id>...",
	Short: "Move messages to Junk Email",
	Long: `Moves messages to the Junk Email folder.

Before moving, the http(s) unsubscribe link of each message is opened in the
browser if it has one. Use --no-unsubscribe to skip that.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSpam,
}

var unspamCmd = &cobra.Command{
	Use:   "unspam <id>...",
	Short: "Move messages back to the inbox",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMove(cmd, args, (*graph.Client).Unspam, graph.FolderInbox, "Moved to inbox")
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Move messages to Deleted Items",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMove(cmd, args, (*graph.Client).Trash, graph.FolderDeletedItems, "Moved to trash")
	},
}

var labelCmd = &cobra.Command{
	Use:   "label <id> <category>",
	Short: "Add a category to a message",
	Long: `Adds an Outlook category to a message. Categories are Outlook's labels;
see 'outlook labels' for the ones defined in the mailbox.

Examples:
  outlook label AAMkAD... Receipts`,
	Args: cobra.ExactArgs(2),
	RunE: runLabel,
}

var unlabelCmd = &cobra.Command{
	Use:   "unlabel <id> <category>",
	Short: "Remove a category from a message",
	Args:  cobra.ExactArgs(2),
	RunE:  runUnlabel,
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <id>",
	Short: "Unsubscribe from a mailing list",
	Long: `Unsubscribes using the List-Unsubscribe header of a message.

When the sender supports RFC 8058 one-click unsubscribe, the request is sent
directly. Otherwise the link is opened in the browser. Use --open to always
open the link.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnsubscribe,
}

func init() {
	spamCmd.Flags().BoolVar(&spamNoUnsubscribe, "no-unsubscribe", false, "Do not open the unsubscribe link")
	unsubscribeCmd.Flags().BoolVar(&unsubscribeOpen, "open", false, "Always open the link instead of sending a one-click request")

	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(spamCmd)
	rootCmd.AddCommand(unspamCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(unlabelCmd)
	rootCmd.AddCommand(unsubscribeCmd)
}

type moveResult struct {
	ID          string `json:"id"`
	NewID       string `json:"newId,omitempty"`
	Destination string `json:"destination"`
}

// moveFunc moves one message and returns it with its new id.
type moveFunc func(c *graph.Client, ctx context.Context, id string) (*graph.Message, error)

func runMove(cmd *cobra.Command, ids []string, move moveFunc, destination, verb string) error {
	ctx := commandContext(cmd)

	client, err := newGraphClient(ctx, cmd)
	if err != nil {
		return err
	}
	return moveAll(ctx, cmd, client, ids, move, destination, verb)
}

func moveAll(ctx context.Context, cmd *cobra.Command, client *graph.Client, ids []string, move moveFunc, destination, verb string) error {
	results := make([]moveResult, 0, len(ids))
	for _, id := range ids {
		moved, err := move(client, ctx, id)
		if err != nil {
			return fmt.Errorf("failed to move %s: %w", id, err)
		}

		res := moveResult{ID: id, Destination: destination}
		if moved != nil {
			res.NewID = moved.ID
		}
		results = append(results, res)

		if !jsonOutput {
			printInfo(cmd, "%s %s", verb, id)
		}
	}

	if jsonOutput {
		return printJSON(cmd, results)
	}
	return nil
}

func runSpam(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	client, err := newGraphClient(ctx, cmd)
	if err != nil {
		return err
	}

	if !spamNoUnsubscribe {
		for _, id := range args {
			openSpamUnsubscribe(ctx, client, id)
		}
	}

	return moveAll(ctx, cmd, client, args, (*graph.Client).MarkSpam, graph.FolderJunk, "Marked as spam")
}

// openSpamUnsubscribe opens the http unsubscribe link of a message, if any.
// Failures are logged and never stop the move.
func openSpamUnsubscribe(ctx context.Context, client *graph.Client, id string) {
	log := logger.WithField("id", id)

	msg, err := client.GetMessage(ctx, id)
	if err != nil {
		log.WithError(err).Warn("could not read message for unsubscribe link")
		return
	}

	header, _ := msg.Header(unsubscribe.HeaderName)
	post, _ := msg.Header(unsubscribe.PostHeaderName)
	link := unsubscribe.Parse(header, post).HTTP()
	if link == "" {
		log.Debug("no http unsubscribe link")
		return
	}

	if err := openURL(link); err != nil {
		log.WithError(err).Warn("could not open unsubscribe link")
	}
}

func runLabel(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	id, category := args[0], args[1]

	client, err := newGraphClient(ctx, cmd)
	if err != nil {
		return err
	}

	changed, err := client.AddCategory(ctx, id, category)
	if err != nil {
		return fmt.Errorf("failed to add category: %w", err)
	}
	if !changed {
		logger.WithField("category", category).Debug("category already present")
	}

	printInfo(cmd, "Added category %s to %s", category, id)
	return nil
}

func runUnlabel(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	id, category := args[0], args[1]

	client, err := newGraphClient(ctx, cmd)
	if err != nil {
		return err
	}

	if err := client.RemoveCategory(ctx, id, category); err != nil {
		return fmt.Errorf("failed to remove category: %w", err)
	}

	printInfo(cmd, "Removed category %s from %s", category, id)
	return nil
}

func runUnsubscribe(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	id := args[0]

	client, err := newGraphClient(ctx, cmd)
	if err != nil {
		return err
	}

	links, err := unsubscribeLinks(ctx, client, id)
	if err != nil {
		return err
	}
	if links.Empty() {
		return unsubscribe.ErrNoLink
	}

	if target := links.OneClickURL(); target != "" && !unsubscribeOpen {
		err := unsubscribe.OneClick(ctx, unsubscribeClient, target)
		if err == nil {
			printSuccess(cmd, "Unsubscribed via one-click request: %s", target)
			return nil
		}
		logger.WithError(err).Warn("one-click unsubscribe failed, opening link instead")
	}

	target := links.Preferred()
	printInfo(cmd, "Opening unsubscribe link: %s", target)
	if err := openURL(target); err != nil {
		return fmt.Errorf("failed to open unsubscribe link: %w", err)
	}
	return nil
}

// unsubscribeLinks reads the List-Unsubscribe headers of a message. Graph
// omits internetMessageHeaders for some messages; the raw MIME is used then.
func unsubscribeLinks(ctx context.Context, client *graph.Client, id string) (unsubscribe.Links, error) {
	msg, err := client.GetMessage(ctx, id)
	if err != nil {
		return unsubscribe.Links{}, err
	}

	if header, ok := msg.Header(unsubscribe.HeaderName); ok {
		post, _ := msg.Header(unsubscribe.PostHeaderName)
		return unsubscribe.Parse(header, post), nil
	}

	logger.WithField("id", id).Debug("no internet headers, reading MIME")
	raw, err := client.GetMIME(ctx, id)
	if err != nil {
		return unsubscribe.Links{}, err
	}
	return unsubscribe.HeadersFromMIME(bytes.NewReader(raw))
}
