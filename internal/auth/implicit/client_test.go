package implicit

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkstone-app/inkstone/internal/auth"
)

// postFragment simulates the capture page relaying the URL fragment: it
// parses the authorization URL the client built and posts the given fragment
// parameters to the relay's /token endpoint.
func postFragment(t *testing.T, authURL string, params func(q url.Values) url.Values) {
	t.Helper()

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	q := parsed.Query()

	redirect, err := url.Parse(q.Get("redirect_uri"))
	require.NoError(t, err)

	tokenURL := "http://" + redirect.Host + "/token"
	form := params(q)

	resp, err := http.Post(tokenURL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	resp.Body.Close()
}

func TestClient_Authenticate_Success(t *testing.T) {
	client := NewClient(Config{
		ClientID: "web-client",
		AuthURL:  "https://provider.example/auth",
		Scope:    "drive.file",
	}, nil)
	client.openURL = func(authURL string) error {
		parsed, err := url.Parse(authURL)
		require.NoError(t, err)
		q := parsed.Query()
		// Forced consent prompt and token response type.
		assert.Equal(t, "token", q.Get("response_type"))
		assert.Equal(t, "consent", q.Get("prompt"))

		postFragment(t, authURL, func(q url.Values) url.Values {
			out := url.Values{}
			out.Set("access_token", "session-token")
			out.Set("expires_in", "3599")
			out.Set("state", q.Get("state"))
			return out
		})
		return nil
	}

	ctx := context.Background()
	assert.False(t, client.IsAuthenticated(ctx))

	require.NoError(t, client.Authenticate(ctx))
	assert.True(t, client.IsAuthenticated(ctx))

	token, err := client.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "session-token", token)

	// Nothing persisted: logout just drops the session token.
	require.NoError(t, client.Logout(ctx))
	assert.False(t, client.IsAuthenticated(ctx))
}

func TestClient_Authenticate_ProviderError(t *testing.T) {
	client := NewClient(Config{ClientID: "c", AuthURL: "https://p.example/auth"}, nil)
	client.openURL = func(authURL string) error {
		postFragment(t, authURL, func(q url.Values) url.Values {
			out := url.Values{}
			out.Set("error", "access_denied")
			out.Set("state", q.Get("state"))
			return out
		})
		return nil
	}

	err := client.Authenticate(context.Background())
	var authErr *auth.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Reason, "access_denied")
}

func TestClient_Authenticate_UnknownStateIgnored(t *testing.T) {
	client := NewClient(Config{
		ClientID: "c",
		AuthURL:  "https://p.example/auth",
		Timeout:  200 * time.Millisecond,
	}, nil)
	client.openURL = func(authURL string) error {
		postFragment(t, authURL, func(q url.Values) url.Values {
			out := url.Values{}
			out.Set("access_token", "forged")
			out.Set("state", "forged-state")
			return out
		})
		return nil
	}

	// A response with an unknown state never reaches the waiter; the
	// attempt times out instead of accepting a forged token.
	err := client.Authenticate(context.Background())
	var authErr *auth.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Reason, "timed out")
	assert.False(t, client.IsAuthenticated(context.Background()))
}

func TestClient_Authenticate_Timeout(t *testing.T) {
	client := NewClient(Config{
		ClientID: "c",
		AuthURL:  "https://p.example/auth",
		Timeout:  50 * time.Millisecond,
	}, nil)
	client.openURL = func(string) error { return nil }

	err := client.Authenticate(context.Background())
	var authErr *auth.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Reason, "timed out")
}

func TestClient_EnsureRelay_SharedAcrossCallers(t *testing.T) {
	client := NewClient(Config{ClientID: "c", AuthURL: "https://p.example/auth"}, nil)

	const callers = 8
	relays := make([]*relay, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := client.ensureRelay(context.Background())
			require.NoError(t, err)
			relays[i] = r
		}()
	}
	wg.Wait()

	// Every caller shares the single process-wide relay.
	for i := 1; i < callers; i++ {
		assert.Same(t, relays[0], relays[i])
	}
}

func TestStartRelay_FallsBackToEphemeralPort(t *testing.T) {
	// Occupy a port so the preferred bind fails.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	r, err := startRelay(ln.Addr().String(), defaultReadyTimeout)
	require.NoError(t, err)
	defer r.close()

	assert.NotEqual(t, ln.Addr().String(), r.addr)
}

func TestRelay_ServesCapturePage(t *testing.T) {
	r, err := startRelay("127.0.0.1:0", defaultReadyTimeout)
	require.NoError(t, err)
	defer r.close()

	resp, err := http.Get(r.redirectURI())
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "location.hash")
}
