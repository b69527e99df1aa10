package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	listSelect = "id,subject,from,receivedDateTime,bodyPreview,isRead,categories"
	readSelect = "id,subject,from,toRecipients,ccRecipients,body,bodyPreview,receivedDateTime," +
		"isRead,categories,internetMessageHeaders,parentFolderId,hasAttachments,importance"

	// maxPageSize is the largest $top Graph accepts for messages
	maxPageSize = 1000
)

// Well-known destination folders for moves.
const (
	FolderInbox        = "inbox"
	FolderArchive      = "archive"
	FolderJunk         = "junkemail"
	FolderDeletedItems = "deleteditems"
)

// ListMessages lists up to max messages from a folder, newest first.
// The folder is a well-known name or a folder id.
func (c *Client) ListMessages(ctx context.Context, folder string, unreadOnly bool, max int) ([]Message, error) {
	params := url.Values{}
	params.Set("$top", strconv.Itoa(pageSize(max)))
	params.Set("$select", listSelect)

	if unreadOnly {
		params.Set("$filter", "isRead eq false")
	} else {
		// Graph rejects $orderby on a property missing from $filter
		params.Set("$orderby", "receivedDateTime desc")
	}

	endpoint := fmt.Sprintf("/me/mailFolders/%s/messages?%s", url.PathEscape(folder), params.Encode())
	return c.collectMessages(ctx, endpoint, max)
}

// SearchMessages runs a $search query across all folders.
func (c *Client) SearchMessages(ctx context.Context, query string, max int) ([]Message, error) {
	params := url.Values{}
	params.Set("$search", `"`+strings.ReplaceAll(query, `"`, `\"`)+`"`)
	params.Set("$top", strconv.Itoa(pageSize(max)))
	params.Set("$select", listSelect)

	return c.collectMessages(ctx, "/me/messages?"+params.Encode(), max)
}

// collectMessages follows @odata.nextLink until max messages are gathered.
func (c *Client) collectMessages(ctx context.Context, endpoint string, max int) ([]Message, error) {
	messages := []Message{}

	for endpoint != "" {
		var page messageList
		if err := c.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		messages = append(messages, page.Value...)
		if max > 0 && len(messages) >= max {
			return messages[:max], nil
		}

		endpoint = page.NextLink
	}

	return messages, nil
}

// GetMessage fetches a message with its body, recipients and internet headers.
func (c *Client) GetMessage(ctx context.Context, id string) (*Message, error) {
	params := url.Values{}
	params.Set("$select", readSelect)

	var msg Message
	if err := c.get(ctx, messagePath(id)+"?"+params.Encode(), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetMIME fetches the raw RFC 822 content of a message.
func (c *Client) GetMIME(ctx context.Context, id string) ([]byte, error) {
	var raw []byte
	if err := c.get(ctx, messagePath(id)+"/$value", &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// MoveMessage moves a message to a folder. Graph gives the moved copy a new
// id, so the returned message is the one to use afterwards.
func (c *Client) MoveMessage(ctx context.Context, id, destination string) (*Message, error) {
	body := map[string]string{"destinationId": destination}

	var moved Message
	if err := c.do(ctx, http.MethodPost, messagePath(id)+"/move", body, &moved); err != nil {
		return nil, err
	}
	return &moved, nil
}

// Archive moves a message to the Archive folder.
func (c *Client) Archive(ctx context.Context, id string) (*Message, error) {
	return c.MoveMessage(ctx, id, FolderArchive)
}

// MarkSpam moves a message to Junk Email.
func (c *Client) MarkSpam(ctx context.Context, id string) (*Message, error) {
	return c.MoveMessage(ctx, id, FolderJunk)
}

// Unspam moves a message back to the Inbox.
func (c *Client) Unspam(ctx context.Context, id string) (*Message, error) {
	return c.MoveMessage(ctx, id, FolderInbox)
}

// Trash moves a message to Deleted Items.
func (c *Client) Trash(ctx context.Context, id string) (*Message, error) {
	return c.MoveMessage(ctx, id, FolderDeletedItems)
}

// SetCategories replaces the categories of a message.
func (c *Client) SetCategories(ctx context.Context, id string, categories []string) error {
	if categories == nil {
		categories = []string{}
	}
	body := map[string][]string{"categories": categories}
	return c.do(ctx, http.MethodPatch, messagePath(id), body, nil)
}

// AddCategory adds a category unless the message already has it (ignoring case).
// It reports whether the message was changed.
func (c *Client) AddCategory(ctx context.Context, id, category string) (bool, error) {
	msg, err := c.messageCategories(ctx, id)
	if err != nil {
		return false, err
	}
	if msg.HasCategory(category) {
		return false, nil
	}

	categories := append(msg.Categories, category)
	if err := c.SetCategories(ctx, id, categories); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveCategory drops every category matching category, ignoring case.
func (c *Client) RemoveCategory(ctx context.Context, id, category string) error {
	msg, err := c.messageCategories(ctx, id)
	if err != nil {
		return err
	}

	kept := make([]string, 0, len(msg.Categories))
	for _, cat := range msg.Categories {
		if !strings.EqualFold(cat, category) {
			kept = append(kept, cat)
		}
	}
	return c.SetCategories(ctx, id, kept)
}

func (c *Client) messageCategories(ctx context.Context, id string) (*Message, error) {
	var msg Message
	if err := c.get(ctx, messagePath(id)+"?$select=id,categories", &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead marks a message as read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.setRead(ctx, id, true)
}

// MarkUnread marks a message as unread.
func (c *Client) MarkUnread(ctx context.Context, id string) error {
	return c.setRead(ctx, id, false)
}

func (c *Client) setRead(ctx context.Context, id string, read bool) error {
	body := map[string]bool{"isRead": read}
	return c.do(ctx, http.MethodPatch, messagePath(id), body, nil)
}

func messagePath(id string) string {
	return "/me/messages/" + url.PathEscape(id)
}

func pageSize(max int) int {
	if max <= 0 || max > maxPageSize {
		return maxPageSize
	}
	return max
}
