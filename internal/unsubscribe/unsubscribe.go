// Package unsubscribe parses List-Unsubscribe headers (RFC 2369) and sends
// one-click unsubscribe requests (RFC 8058).
package unsubscribe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/emersion/go-message/textproto"
)

const (
	HeaderName     = "List-Unsubscribe"
	PostHeaderName = "List-Unsubscribe-Post"

	// oneClickBody is the only value RFC 8058 allows in List-Unsubscribe-Post
	oneClickBody = "List-Unsubscribe=One-Click"
)

// ErrNoLink is returned when a message carries no usable unsubscribe target.
var ErrNoLink = errors.New("No unsubscribe link found in message headers")

// Links holds the targets of a List-Unsubscribe header in header order.
type Links struct {
	Targets  []string
	OneClick bool
}

// Parse extracts the <...> targets of a List-Unsubscribe header value.
// postValue is the List-Unsubscribe-Post header, possibly empty.
func Parse(header, postValue string) Links {
	var links Links
	rest := header
	for {
		start := strings.IndexByte(rest, '<')
		if start < 0 {
			break
		}
		end := strings.IndexByte(rest[start:], '>')
		if end < 0 {
			break
		}
		target := strings.TrimSpace(rest[start+1 : start+end])
		// folded headers may leave whitespace inside the brackets
		target = strings.Join(strings.Fields(target), "")
		if target != "" {
			links.Targets = append(links.Targets, target)
		}
		rest = rest[start+end+1:]
	}

	links.OneClick = strings.EqualFold(strings.TrimSpace(postValue), oneClickBody)
	return links
}

// Empty reports whether no target was found.
func (l Links) Empty() bool {
	return len(l.Targets) == 0
}

// Preferred returns the first http(s) target, else the first target.
func (l Links) Preferred() string {
	if u := l.HTTP(); u != "" {
		return u
	}
	if len(l.Targets) > 0 {
		return l.Targets[0]
	}
	return ""
}

// HTTP returns the first http or https target, or "".
func (l Links) HTTP() string {
	for _, t := range l.Targets {
		if isHTTP(t) {
			return t
		}
	}
	return ""
}

// OneClickURL returns the https target usable for an RFC 8058 POST, or "".
func (l Links) OneClickURL() string {
	if !l.OneClick {
		return ""
	}
	for _, t := range l.Targets {
		if strings.HasPrefix(strings.ToLower(t), "https://") {
			return t
		}
	}
	return ""
}

func isHTTP(target string) bool {
	lower := strings.ToLower(target)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// HeadersFromMIME reads the unsubscribe headers from a raw RFC 822 message.
// Only the header block is consumed.
func HeadersFromMIME(r io.Reader) (Links, error) {
	h, err := textproto.ReadHeader(bufio.NewReader(r))
	if err != nil {
		return Links{}, fmt.Errorf("failed to read message headers: %w", err)
	}
	return Parse(h.Get(HeaderName), h.Get(PostHeaderName)), nil
}

// Doer is the subset of *http.Client used for one-click requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// OneClick sends the RFC 8058 unsubscribe POST to target.
func OneClick(ctx context.Context, client Doer, target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid unsubscribe URL: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("one-click unsubscribe requires https, got %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(oneClickBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send unsubscribe request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unsubscribe request failed with status %d", resp.StatusCode)
	}
	return nil
}
