package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/emersion/go-message/mail"
)

// SendOptions contains options for sending an email
type SendOptions struct {
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Body    string
	HTML    bool
}

type outgoingMessage struct {
	Subject       string      `json:"subject"`
	Body          ItemBody    `json:"body"`
	ToRecipients  []Recipient `json:"toRecipients"`
	CcRecipients  []Recipient `json:"ccRecipients,omitempty"`
	BccRecipients []Recipient `json:"bccRecipients,omitempty"`
}

type sendMailRequest struct {
	Message         outgoingMessage `json:"message"`
	SaveToSentItems bool            `json:"saveToSentItems"`
}

// SendMail sends a message and saves it to Sent Items.
func (c *Client) SendMail(ctx context.Context, opts SendOptions) error {
	if len(opts.To) == 0 {
		return errors.New("at least one recipient is required")
	}

	to, err := ParseRecipients(opts.To)
	if err != nil {
		return err
	}
	cc, err := ParseRecipients(opts.Cc)
	if err != nil {
		return err
	}
	bcc, err := ParseRecipients(opts.Bcc)
	if err != nil {
		return err
	}

	contentType := "text"
	if opts.HTML {
		contentType = "html"
	}

	req := sendMailRequest{
		Message: outgoingMessage{
			Subject:       opts.Subject,
			Body:          ItemBody{ContentType: contentType, Content: opts.Body},
			ToRecipients:  to,
			CcRecipients:  cc,
			BccRecipients: bcc,
		},
		SaveToSentItems: true,
	}

	return c.do(ctx, http.MethodPost, "/me/sendMail", req, nil)
}

// ParseRecipients parses addresses such as "Jane <jane@example.com>" or
// comma-separated lists of them.
func ParseRecipients(addrs []string) ([]Recipient, error) {
	var out []Recipient
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		list, err := mail.ParseAddressList(a)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", a, err)
		}
		for _, addr := range list {
			out = append(out, Recipient{EmailAddress: EmailAddress{Name: addr.Name, Address: addr.Address}})
		}
	}
	return out, nil
}
