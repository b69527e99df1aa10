package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourname/outlook-cli/internal/graph"
)

// List Command
var (
	listMax        int
	listQuery      string
	listLabel      string
	listUnreadOnly bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List messages",
	Long: `Lists messages from a folder, newest first.

Folders accept well-known names (inbox, sent, drafts, archive, spam, trash)
or the display name of any folder. With --query the whole mailbox is searched.

Examples:
  outlook list
  outlook list --unread -n 20
  outlook list -l "Projects/2024"
  outlook list -q "invoice" --json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

// Read Command
var readRaw bool

var readCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Read a message",
	Long: `Shows the headers and body of a message.

Find the id in the output of 'outlook list'.

Examples:
  outlook read AAMkAD...
  outlook read AAMkAD... --raw > message.eml`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

// Send Command
var (
	sendTo       []string
	sendCc       []string
	sendBcc      []string
	sendSubject  string
	sendBody     string
	sendBodyFile string
	sendHTML     bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a message",
	Long: `Sends a message and saves it to Sent Items.

Examples:
  outlook send --to user@example.com --subject "Test" --body "Hello!"
  outlook send --to user@example.com --subject "Report" --body-file report.txt
  outlook send --to "Jane <jane@example.com>" --cc boss@example.com --subject "Info" --body "Text"`,
	Args: cobra.NoArgs,
	RunE: runSend,
}

var markReadCmd = &cobra.Command{
	Use:   "mark-read <id>...",
	Short: "Mark messages as read",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetRead(cmd, args, true)
	},
}

var markUnreadCmd = &cobra.Command{
	Use:   "mark-unread <id>...",
	Short: "Mark messages as unread",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetRead(cmd, args, false)
	},
}

func init() {
	// List flags
	listCmd.Flags().IntVarP(&listMax, "max", "n", 100, "Maximum number of messages")
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Search query (searches all folders)")
	listCmd.Flags().StringVarP(&listLabel, "label", "l", graph.FolderInbox, "Folder to list")
	listCmd.Flags().BoolVarP(&listUnreadOnly, "unread", "u", false, "Only unread messages")

	// Read flags
	readCmd.Flags().BoolVar(&readRaw, "raw", false, "Print the raw MIME message")

	// Send flags
	sendCmd.Flags().StringArrayVar(&sendTo, "to", nil, "Recipients (can be specified multiple times)")
	sendCmd.Flags().StringArrayVar(&sendCc, "cc", nil, "CC recipients")
	sendCmd.Flags().StringArrayVar(&sendBcc, "bcc", nil, "BCC recipients")
	sendCmd.Flags().StringVar(&sendSubject, "subject", "", "Subject")
	sendCmd.Flags().StringVar(&sendBody, "body", "", "Message body")
	sendCmd.Flags().StringVar(&sendBodyFile, "body-file", "", "Read message body from file")
	sendCmd.Flags().BoolVar(&sendHTML, "html", false, "Send body as HTML")

	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("subject")
	sendCmd.MarkFlagsMutuallyExclusive("body", "body-file")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(markReadCmd)
	rootCmd.AddCommand(markUnreadCmd)
}

// messageSummary is the JSON shape of a listed message.
type messageSummary struct {
	ID         string   `json:"id"`
	From       *string  `json:"from"`
	Subject    string   `json:"subject"`
	Date       string   `json:"date"`
	Snippet    string   `json:"snippet"`
	IsRead     bool     `json:"isRead"`
	Categories []string `json:"categories"`
}

// messageDetail is the JSON shape of a read message.
type messageDetail struct {
	messageSummary
	To   *string `json:"to"`
	Body string  `json:"body"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func summarize(msg *graph.Message) messageSummary {
	categories := msg.Categories
	if categories == nil {
		categories = []string{}
	}
	return messageSummary{
		ID:         msg.ID,
		From:       optional(msg.FromString()),
		Subject:    msg.Subject,
		Date:       msg.ReceivedDateTime,
		Snippet:    msg.BodyPreview,
		IsRead:     msg.IsRead,
		Categories: categories,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	max := listMax
	if !cmd.Flags().Changed("max") && cfg.PageSize > 0 {
		max = cfg.PageSize
	}
	if max <= 0 {
		return fmt.Errorf("--max must be positive, got %d", max)
	}

	client, err := newGraphClient(ctx, cmd)
	if err != nil {
		return err
	}

	var messages []graph.Message
	if listQuery != "" {
		logger.WithField("query", listQuery).Debug("searching messages")
		messages, err = client.SearchMessages(ctx, listQuery, max)
		if err != nil {
			return err
		}
		// $search cannot be combined with $filter
		if listUnreadOnly {
			messages = unreadOnly(messages)
		}
	} else {
		folder, err := client.ResolveFolder(ctx, listLabel)
		if err != nil {
			return err
		}
		logger.WithField("folder", folder).Debug("listing messages")
		messages, err = client.ListMessages(ctx, folder, listUnreadOnly, max)
		if err != nil {
			return err
		}
	}

	if jsonOutput {
		items := make([]messageSummary, len(messages))
		for i := range messages {
			items[i] = summarize(&messages[i])
		}
		return printJSON(cmd, items)
	}

	if len(messages) == 0 {
		printInfo(cmd, "No messages found.")
		return nil
	}

	for i := range messages {
		msg := &messages[i]
		printInfo(cmd, "%s | %s | %s", msg.ID, orDefault(msg.FromString(), "Unknown"), orDefault(msg.Subject, "(no subject)"))
	}

	return nil
}

func unreadOnly(messages []graph.Message) []graph.Message {
	out := messages[:0]
	for _, m := range messages {
		if !m.IsRead {
			out = append(out, m)
		}
	}
	return out
}

func runRead(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	id := args[0]

	client, err := newGraphClient(ctx, cmd)
	if err != nil {
		return err
	}

	if readRaw {
		raw, err := client.GetMIME(ctx, id)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(raw)
		return err
	}

	msg, err := client.GetMessage(ctx, id)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd, messageDetail{
			messageSummary: summarize(msg),
			To:             optional(msg.ToString()),
			Body:           msg.BodyText(),
		})
	}

	printInfo(cmd, "From: %s", orDefault(msg.FromString(), "Unknown"))
	printInfo(cmd, "To: %s", orDefault(msg.ToString(), "Unknown"))
	printInfo(cmd, "Subject: %s", orDefault(msg.Subject, "(no subject)"))
	printInfo(cmd, "Date: %s", orDefault(msg.ReceivedDateTime, "Unknown"))
	printInfo(cmd, "---")
	printInfo(cmd, "%s", msg.BodyText())

	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	body := sendBody
	if sendBodyFile != "" {
		data, err := os.ReadFile(sendBodyFile)
		if err != nil {
			return fmt.Errorf("failed to read body file: %w", err)
		}
		body = string(data)
	}

	client, err := newGraphClient(ctx, cmd)
	if err != nil {
		return err
	}

	err = client.SendMail(ctx, graph.SendOptions{
		To:      sendTo,
		Cc:      sendCc,
		Bcc:     sendBcc,
		Subject: sendSubject,
		Body:    body,
		HTML:    sendHTML,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	printSuccess(cmd, "Message sent to %d recipient(s)", len(sendTo)+len(sendCc)+len(sendBcc))
	return nil
}

func runSetRead(cmd *cobra.Command, ids []string, read bool) error {
	ctx := commandContext(cmd)

	client, err := newGraphClient(ctx, cmd)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if read {
			err = client.MarkRead(ctx, id)
		} else {
			err = client.MarkUnread(ctx, id)
		}
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", id, err)
		}

		if read {
			printInfo(cmd, "Marked as read %s", id)
		} else {
			printInfo(cmd, "Marked as unread %s", id)
		}
	}

	return nil
}
