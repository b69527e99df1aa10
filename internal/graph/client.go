// Package graph is a small client for the Microsoft Graph mail endpoints.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	BaseURL = "https://graph.microsoft.com/v1.0"

	DefaultMaxRetries     = 3
	DefaultInitialBackoff = time.Second
	DefaultTimeout        = 30 * time.Second
)

// Client for Microsoft Graph API operations
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         oauth2.TokenSource
	limiter        *RateLimiter
	maxRetries     int
	initialBackoff time.Duration
	log            logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Graph root, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry sets the retry budget and the first backoff delay.
func WithRetry(maxRetries int, initialBackoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.initialBackoff = initialBackoff
	}
}

// WithRateLimiter shares a limiter between clients.
func WithRateLimiter(l *RateLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets the logger for retry and request diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a Graph client authenticating with tokens from ts.
func NewClient(ts oauth2.TokenSource, opts ...Option) *Client {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Client{
		baseURL:        BaseURL,
		httpClient:     &http.Client{Timeout: DefaultTimeout},
		tokens:         ts,
		maxRetries:     DefaultMaxRetries,
		initialBackoff: DefaultInitialBackoff,
		log:            discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = NewRateLimiter(DefaultRequestsPerSecond, DefaultBurst)
	}
	return c
}

// get decodes a JSON response into out.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

// do sends a request with retries. endpoint is either a path below the base
// URL or an absolute URL such as an @odata.nextLink. If out is a *[]byte the
// raw body is stored, otherwise the body is decoded as JSON.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	target := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		target = c.baseURL + endpoint
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := c.send(ctx, method, target, payload)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var tokenErr *tokenError
			if errors.As(err, &tokenErr) {
				return err
			}
			lastErr = fmt.Errorf("failed to send request: %w", err)
			if attempt < c.maxRetries {
				delay := c.backoff(attempt)
				c.log.Warnf("Request failed (%v), retrying in %s...", err, delay)
				if err := sleep(ctx, delay); err != nil {
					return err
				}
				continue
			}
			return lastErr
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		c.log.WithFields(logrus.Fields{
			"method":  method,
			"url":     target,
			"status":  resp.StatusCode,
			"attempt": attempt,
		}).Debug("graph request")

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if readErr != nil {
				return fmt.Errorf("failed to read response: %w", readErr)
			}
			return decode(respBody, resp.StatusCode, out)
		}

		lastErr = newAPIError(resp.StatusCode, respBody)
		if IsRetryable(resp.StatusCode) && attempt < c.maxRetries {
			delay := retryDelay(resp.Header.Get("Retry-After"), attempt, c.initialBackoff)
			c.log.Warnf("Rate limited (%d), retrying in %s...", resp.StatusCode, delay)
			if resp.StatusCode == http.StatusTooManyRequests {
				// the limiter holds this and any other request back
				c.limiter.Backoff(delay)
				continue
			}
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}

		return lastErr
	}

	return lastErr
}

// tokenError marks a failure to obtain an access token; those are not retried.
type tokenError struct{ err error }

func (e *tokenError) Error() string { return "failed to get access token: " + e.err.Error() }
func (e *tokenError) Unwrap() error { return e.err }

func (c *Client) send(ctx context.Context, method, target string, payload []byte) (*http.Response, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, &tokenError{err: err}
	}

	var reader io.Reader = http.NoBody
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("client-request-id", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func decode(body []byte, status int, out any) error {
	if out == nil || status == http.StatusNoContent {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = body
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) backoff(attempt int) time.Duration {
	return c.initialBackoff * time.Duration(1<<attempt)
}

// retryDelay prefers the server's Retry-After seconds, falling back to
// exponential backoff: initial, 2*initial, 4*initial...
func retryDelay(retryAfter string, attempt int, initial time.Duration) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return initial * time.Duration(1<<attempt)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
