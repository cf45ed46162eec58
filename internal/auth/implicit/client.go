// Package implicit implements the browser-platform token client: an OAuth
// implicit grant that yields a short-lived access token, never a refresh
// token, and persists nothing. Re-authentication is required whenever the
// in-memory token is gone.
//
// The shared fragment relay is the one process-wide mutable resource: it is
// initialized lazily exactly once, concurrent callers during initialization
// share the same in-flight attempt, and a failed initialization stays failed
// for the process (Unloaded -> Loading -> Ready | Failed).
package implicit

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/inkstone-app/inkstone/internal/auth"
)

// DefaultTimeout bounds a single token acquisition round trip.
const DefaultTimeout = 3 * time.Minute

// defaultReadyTimeout bounds the relay readiness polling.
const defaultReadyTimeout = 5 * time.Second

// Config carries the provider endpoint and client registration for the
// implicit flow.
type Config struct {
	ClientID   string
	AuthURL    string
	Scope      string
	ListenAddr string
	Timeout    time.Duration
}

// Client acquires tokens through the implicit grant and holds the current
// one in memory for the session.
type Client struct {
	cfg    Config
	logger *slog.Logger

	openURL func(string) error

	mu       sync.Mutex
	relay    *relay
	relayErr error
	loading  chan struct{}
	token    *auth.TokenSet
}

var _ auth.TokenSource = (*Client)(nil)

// NewClient creates a Client. A nil logger discards log output.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		cfg:     cfg,
		logger:  logger,
		openURL: auth.OpenBrowser,
	}
}

// ensureRelay returns the process-wide relay, initializing it on first use.
// Callers arriving during initialization wait on the same in-flight attempt
// instead of starting a second relay.
func (c *Client) ensureRelay(ctx context.Context) (*relay, error) {
	c.mu.Lock()
	if c.relay != nil {
		r := c.relay
		c.mu.Unlock()
		return r, nil
	}
	if c.relayErr != nil {
		err := c.relayErr
		c.mu.Unlock()
		return nil, err
	}
	if c.loading == nil {
		c.loading = make(chan struct{})
		go func() {
			r, err := startRelay(c.cfg.ListenAddr, defaultReadyTimeout)
			c.mu.Lock()
			c.relay, c.relayErr = r, err
			close(c.loading)
			c.mu.Unlock()
		}()
	}
	loading := c.loading
	c.mu.Unlock()

	select {
	case <-loading:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.relayErr != nil {
		return nil, c.relayErr
	}
	return c.relay, nil
}

// Authenticate requests a fresh access token with a forced consent prompt.
func (c *Client) Authenticate(ctx context.Context) error {
	r, err := c.ensureRelay(ctx)
	if err != nil {
		return fmt.Errorf("token relay unavailable: %w", err)
	}

	stateBytes := make([]byte, 32)
	if _, err := rand.Read(stateBytes); err != nil {
		return fmt.Errorf("failed to generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(stateBytes)

	resultCh := r.expect(state)
	defer r.forget(state)

	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", r.redirectURI())
	q.Set("response_type", "token")
	q.Set("scope", c.cfg.Scope)
	q.Set("prompt", "consent")
	q.Set("state", state)
	authURL := c.cfg.AuthURL + "?" + q.Encode()

	c.logger.Info("opening browser for sign-in", "url", authURL)
	if err := c.openURL(authURL); err != nil {
		c.logger.Warn("could not launch browser, open the URL manually", "error", err)
	}

	timeout := time.NewTimer(c.cfg.Timeout)
	defer timeout.Stop()

	var res tokenResult
	select {
	case res = <-resultCh:
	case <-timeout.C:
		return &auth.AuthorizationError{Reason: "timed out waiting for token"}
	case <-ctx.Done():
		return &auth.AuthorizationError{Reason: fmt.Sprintf("sign-in canceled: %v", ctx.Err())}
	}

	if res.errParam != "" {
		return &auth.AuthorizationError{Reason: fmt.Sprintf("provider returned error: %s", res.errParam)}
	}
	if res.accessToken == "" {
		return &auth.AuthorizationError{Reason: "response is missing access token"}
	}

	tokens := &auth.TokenSet{AccessToken: res.accessToken}
	if res.expiresIn > 0 {
		tokens.ExpiresAt = time.Now().Unix() + res.expiresIn
	}

	c.mu.Lock()
	c.token = tokens
	c.mu.Unlock()
	return nil
}

// AccessToken returns the session token, acquiring one interactively when
// none is held. There is no refresh path in this mode.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token.Valid(0) {
		return token.AccessToken, nil
	}

	if err := c.Authenticate(ctx); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token.AccessToken, nil
}

// IsAuthenticated is a presence check: the provider's widgetry enforces its
// own expiry semantics, so a held token counts as signed in.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != nil && c.token.AccessToken != ""
}

// Logout drops the in-memory token. Nothing was persisted.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
	return nil
}
