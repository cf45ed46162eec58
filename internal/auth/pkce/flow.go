package pkce

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/inkstone-app/inkstone/internal/auth"
)

// DefaultTimeout bounds the whole browser round trip: listener up, user
// consent, redirect back, token exchange. A dismissed browser simply never
// delivers the callback and resolves here.
const DefaultTimeout = 3 * time.Minute

// Config carries the provider endpoints and client registration for the
// native flow.
type Config struct {
	ClientID string
	// ClientSecret is sent when the provider issued one for the native
	// client; Google's installed-app clients have a non-confidential one.
	ClientSecret string
	AuthURL      string
	TokenURL     string
	Scope        string
	// ListenAddr is the loopback address for the redirect listener.
	// "127.0.0.1:0" picks an ephemeral port.
	ListenAddr string
	Timeout    time.Duration
}

// Flow runs Authorization-Code + PKCE exchanges through the system browser.
// The provider forbids embedded web views for this grant type, so the
// redirect comes back through a loopback listener that is armed before the
// browser opens — otherwise the provider could redirect before anyone is
// listening.
type Flow struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	// openURL is swapped out in tests to drive the callback directly.
	openURL func(string) error
}

// NewFlow creates a Flow. A nil logger discards log output.
func NewFlow(cfg Config, logger *slog.Logger) *Flow {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Flow{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		openURL: auth.OpenBrowser,
	}
}

// callbackResult is what the redirect handler extracted from the provider's
// callback URL.
type callbackResult struct {
	code     string
	state    string
	errParam string
}

// Authorize runs one complete authorization attempt and returns the token
// set. The PKCE triple lives only for the duration of the call.
func (f *Flow) Authorize(ctx context.Context) (*auth.TokenSet, error) {
	ch, err := newChallenge()
	if err != nil {
		return nil, err
	}

	// Arm the listener before opening the browser.
	ln, err := net.Listen("tcp", f.cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to start redirect listener: %w", err)
	}

	redirectURI := fmt.Sprintf("http://%s/callback", ln.Addr().String())

	// Buffered so the handler never blocks; only the first callback wins.
	resultCh := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res := callbackResult{
			code:     q.Get("code"),
			state:    q.Get("state"),
			errParam: q.Get("error"),
		}
		select {
		case resultCh <- res:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, callbackPage)
		default:
			http.Error(w, "authorization flow already completed", http.StatusGone)
		}
	})

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			f.logger.Warn("redirect listener stopped", "error", err)
		}
	}()
	defer server.Close()

	authURL := f.buildAuthURL(ch, redirectURI)
	f.logger.Info("opening browser for authorization", "url", authURL)
	if err := f.openURL(authURL); err != nil {
		// Not fatal: the user can still navigate manually.
		f.logger.Warn("could not launch browser, open the URL manually", "error", err)
	}

	timeout := time.NewTimer(f.cfg.Timeout)
	defer timeout.Stop()

	var res callbackResult
	select {
	case res = <-resultCh:
	case <-timeout.C:
		return nil, &auth.AuthorizationError{Reason: "timed out waiting for authorization callback"}
	case <-ctx.Done():
		return nil, &auth.AuthorizationError{Reason: fmt.Sprintf("authorization canceled: %v", ctx.Err())}
	}

	if res.errParam != "" {
		return nil, &auth.AuthorizationError{Reason: fmt.Sprintf("provider returned error: %s", res.errParam)}
	}
	if res.code == "" {
		return nil, &auth.AuthorizationError{Reason: "callback is missing authorization code"}
	}
	// CSRF protection: the callback must echo the state generated for this
	// attempt. A mismatch never advances to token exchange.
	if res.state != ch.State {
		return nil, &auth.AuthorizationError{Reason: "state mismatch in authorization callback"}
	}

	return f.exchange(ctx, res.code, ch.Verifier, redirectURI)
}

func (f *Flow) buildAuthURL(ch *challenge, redirectURI string) string {
	q := url.Values{}
	q.Set("client_id", f.cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", f.cfg.Scope)
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	q.Set("code_challenge", ch.CodeChallenge)
	q.Set("code_challenge_method", "S256")
	q.Set("state", ch.State)
	return f.cfg.AuthURL + "?" + q.Encode()
}

const callbackPage = `<!DOCTYPE html>
<html>
<head><title>Inkstone</title></head>
<body>
<p>Authorization complete. You can close this window and return to Inkstone.</p>
</body>
</html>`
