package graph

import (
	"fmt"
	"strings"
)

// Message is a Graph message resource, limited to the fields this tool selects.
type Message struct {
	ID                     string          `json:"id"`
	Subject                string          `json:"subject"`
	From                   *Recipient      `json:"from,omitempty"`
	ToRecipients           []Recipient     `json:"toRecipients,omitempty"`
	CcRecipients           []Recipient     `json:"ccRecipients,omitempty"`
	Body                   *ItemBody       `json:"body,omitempty"`
	BodyPreview            string          `json:"bodyPreview"`
	ReceivedDateTime       string          `json:"receivedDateTime"`
	IsRead                 bool            `json:"isRead"`
	Categories             []string        `json:"categories"`
	InternetMessageHeaders []MessageHeader `json:"internetMessageHeaders,omitempty"`
	ParentFolderID         string          `json:"parentFolderId,omitempty"`
	HasAttachments         bool            `json:"hasAttachments"`
	Importance             string          `json:"importance,omitempty"`
}

// Recipient wraps an email address the way Graph does.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// EmailAddress is a display name and address pair.
type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// ItemBody is message content with its type ("text" or "html").
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// MessageHeader is one RFC 5322 header as returned in internetMessageHeaders.
type MessageHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type messageList struct {
	Value    []Message `json:"value"`
	NextLink string    `json:"@odata.nextLink"`
}

// Folder is a mail folder. Name holds the slash-joined path for child folders.
type Folder struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	Name             string `json:"-"`
	// Depth is 0 for top-level folders
	Depth            int    `json:"-"`
	ParentFolderID   string `json:"parentFolderId,omitempty"`
	ChildFolderCount int    `json:"childFolderCount"`
	TotalItemCount   int    `json:"totalItemCount"`
	UnreadItemCount  int    `json:"unreadItemCount"`
}

type folderList struct {
	Value    []Folder `json:"value"`
	NextLink string   `json:"@odata.nextLink"`
}

// Category is an Outlook master category, the closest thing to a label.
type Category struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color,omitempty"`
}

type categoryList struct {
	Value []Category `json:"value"`
}

// User is the signed-in user's profile.
type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Email returns the mail address, falling back to the principal name.
func (u *User) Email() string {
	if u.Mail != "" {
		return u.Mail
	}
	return u.UserPrincipalName
}

// String formats an address as "Name <addr>" or just "addr".
func (a EmailAddress) String() string {
	if a.Name != "" && a.Address != "" {
		return fmt.Sprintf("%s <%s>", a.Name, a.Address)
	}
	if a.Address == "" {
		return a.Name
	}
	return a.Address
}

// FromString returns the formatted sender, or "" when there is none.
func (m *Message) FromString() string {
	if m.From == nil {
		return ""
	}
	return m.From.EmailAddress.String()
}

// ToString returns the To addresses joined with ", ".
func (m *Message) ToString() string {
	addrs := make([]string, 0, len(m.ToRecipients))
	for _, r := range m.ToRecipients {
		if r.EmailAddress.Address != "" {
			addrs = append(addrs, r.EmailAddress.Address)
		}
	}
	return strings.Join(addrs, ", ")
}

// BodyText returns the body content, or the preview when no body was fetched.
func (m *Message) BodyText() string {
	if m.Body != nil && m.Body.Content != "" {
		return m.Body.Content
	}
	return m.BodyPreview
}

// Header looks up an internet message header by case-insensitive name.
func (m *Message) Header(name string) (string, bool) {
	for _, h := range m.InternetMessageHeaders {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// HasCategory reports whether the message carries category, ignoring case.
func (m *Message) HasCategory(category string) bool {
	for _, c := range m.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}
