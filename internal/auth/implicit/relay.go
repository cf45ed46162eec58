package implicit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// tokenResult is what the fragment relay received back from the consent page.
type tokenResult struct {
	accessToken string
	expiresIn   int64
	errParam    string
}

// relay is the loopback server that recovers the implicit grant's URL
// fragment. The provider redirects to /capture, whose inline script reads
// location.hash (fragments never reach a server on their own) and posts the
// parameters to /token. One relay serves every acquisition in the process.
type relay struct {
	addr   string
	server *http.Server

	mu      sync.Mutex
	pending map[string]chan tokenResult
}

// startRelay binds the preferred address, falling back to an ephemeral
// loopback port when the preferred one is taken, then starts serving and
// polls its own health endpoint until ready or the bounded timeout elapses.
func startRelay(listenAddr string, readyTimeout time.Duration) (*relay, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		ln, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("failed to bind relay listener: %w", err)
		}
	}

	r := &relay{
		addr:    ln.Addr().String(),
		pending: make(map[string]chan tokenResult),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /capture", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, capturePage)
	})
	mux.HandleFunc("POST /token", r.handleToken)

	r.server = &http.Server{Handler: mux}
	go func() {
		_ = r.server.Serve(ln)
	}()

	if err := r.waitReady(readyTimeout); err != nil {
		r.close()
		return nil, err
	}
	return r, nil
}

// waitReady polls the health endpoint until the relay answers. The polling is
// bounded; a relay that never comes up is reported as failed, not retried
// forever.
func (r *relay) waitReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := fmt.Sprintf("http://%s/healthz", r.addr)
	client := &http.Client{Timeout: time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("relay did not become ready within %s", timeout)
}

func (r *relay) close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = r.server.Shutdown(ctx)
}

// redirectURI is where the provider sends the consent response.
func (r *relay) redirectURI() string {
	return fmt.Sprintf("http://%s/capture", r.addr)
}

// expect registers a waiter for the given state value.
func (r *relay) expect(state string) chan tokenResult {
	ch := make(chan tokenResult, 1)
	r.mu.Lock()
	r.pending[state] = ch
	r.mu.Unlock()
	return ch
}

// forget drops the waiter for state; called when an acquisition ends.
func (r *relay) forget(state string) {
	r.mu.Lock()
	delete(r.pending, state)
	r.mu.Unlock()
}

func (r *relay) handleToken(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	state := req.PostForm.Get("state")

	r.mu.Lock()
	ch, ok := r.pending[state]
	if ok {
		delete(r.pending, state)
	}
	r.mu.Unlock()

	if !ok {
		// Unknown or stale state: nothing is waiting for it.
		http.Error(w, "no pending authorization for state", http.StatusGone)
		return
	}

	var expiresIn int64
	fmt.Sscanf(req.PostForm.Get("expires_in"), "%d", &expiresIn)

	ch <- tokenResult{
		accessToken: req.PostForm.Get("access_token"),
		expiresIn:   expiresIn,
		errParam:    req.PostForm.Get("error"),
	}
	w.WriteHeader(http.StatusNoContent)
}

// capturePage relays the URL fragment back to the loopback server. The
// fragment carries the access token, so this page is the only place it is
// ever visible.
const capturePage = `<!DOCTYPE html>
<html>
<head><title>Inkstone</title></head>
<body>
<p id="msg">Completing sign-in…</p>
<script>
(function () {
  var params = new URLSearchParams(window.location.hash.slice(1));
  fetch('/token', {
    method: 'POST',
    headers: {'Content-Type': 'application/x-www-form-urlencoded'},
    body: params.toString()
  }).then(function () {
    document.getElementById('msg').textContent = 'Signed in. You can close this window and return to Inkstone.';
    window.location.hash = '';
  }).catch(function () {
    document.getElementById('msg').textContent = 'Sign-in could not be completed. Return to Inkstone and try again.';
  });
})();
</script>
</body>
</html>`
