package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

const successPage = `<html><body><h1>Authentication successful!</h1><p>You can close this window.</p></body></html>`

const failurePage = `<html><body><h1>Authentication failed</h1><p>%s</p></body></html>`

// ErrCallbackTimeout is returned when the browser never redirects back.
var ErrCallbackTimeout = errors.New("timeout waiting for OAuth callback")

type callbackResult struct {
	code string
	err  error
}

// callbackServer receives the authorization redirect on a loopback port.
type callbackServer struct {
	listener net.Listener
	server   *http.Server
	state    string
	results  chan callbackResult
}

// startCallbackServer binds an OS-assigned port on 127.0.0.1 and serves the redirect.
func startCallbackServer(state string) (*callbackServer, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to bind to local port: %w", err)
	}

	s := &callbackServer{
		listener: listener,
		state:    state,
		results:  make(chan callbackResult, 1),
	}
	s.server = &http.Server{
		Handler:           http.HandlerFunc(s.handle),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() { _ = s.server.Serve(listener) }()

	return s, nil
}

// Port returns the bound port.
func (s *callbackServer) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// RedirectURL is the redirect URI registered for native apps.
func (s *callbackServer) RedirectURL() string {
	return fmt.Sprintf("http://localhost:%d", s.Port())
}

func (s *callbackServer) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	// browsers also ask for /favicon.ico and the like
	if !q.Has("code") && !q.Has("error") && !q.Has("state") {
		http.NotFound(w, r)
		return
	}

	var res callbackResult
	switch {
	case q.Get("error") != "":
		res.err = fmt.Errorf("authorization failed: %s: %s", q.Get("error"), q.Get("error_description"))
	case q.Get("state") != s.state:
		res.err = errors.New("CSRF state mismatch in OAuth callback")
	case q.Get("code") == "":
		res.err = errors.New("no code in OAuth callback")
	default:
		res.code = q.Get("code")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if res.err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, failurePage, "Return to the terminal for details.")
	} else {
		_, _ = w.Write([]byte(successPage))
	}

	select {
	case s.results <- res:
	default:
	}
}

// Wait blocks until the redirect arrives, ctx ends, or timeout passes.
func (s *callbackServer) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-s.results:
		return res.code, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", ErrCallbackTimeout
	}
}

// Close stops the server.
func (s *callbackServer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}
