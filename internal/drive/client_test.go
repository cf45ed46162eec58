package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticTokenSource hands out a fixed token and counts how often the client
// asked for it.
type staticTokenSource struct {
	token      string
	tokenCalls int
	authCalls  int
}

func (s *staticTokenSource) Authenticate(ctx context.Context) error {
	s.authCalls++
	return nil
}

func (s *staticTokenSource) AccessToken(ctx context.Context) (string, error) {
	s.tokenCalls++
	return s.token, nil
}

func (s *staticTokenSource) IsAuthenticated(ctx context.Context) bool { return s.token != "" }
func (s *staticTokenSource) Logout(ctx context.Context) error         { s.token = ""; return nil }

// fakeDrive is an in-memory stand-in for the Drive files API.
type fakeDrive struct {
	t *testing.T

	files   map[string]*fakeFile // keyed by id
	nextID  int
	creates int
	updates int
}

type fakeFile struct {
	name string
	data []byte
}

func newFakeDrive(t *testing.T) (*fakeDrive, *httptest.Server) {
	fd := &fakeDrive{t: t, files: map[string]*fakeFile{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /files", fd.handleList)
	mux.HandleFunc("GET /files/{id}", fd.handleDownload)
	mux.HandleFunc("POST /upload/files", fd.handleCreate)
	mux.HandleFunc("PATCH /upload/files/{id}", fd.handleUpdate)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return fd, srv
}

func (fd *fakeDrive) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	// Expected shape: name = '<name>' and trashed = false
	require.Contains(fd.t, q, "trashed = false")
	start := strings.Index(q, "'")
	end := strings.LastIndex(q, "'")
	name := q[start+1 : end]

	type entry struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	out := struct {
		Files []entry `json:"files"`
	}{Files: []entry{}}
	for id, f := range fd.files {
		if f.name == name {
			out.Files = append(out.Files, entry{ID: id, Name: f.name})
		}
	}
	json.NewEncoder(w).Encode(out)
}

func (fd *fakeDrive) readMultipart(r *http.Request) (string, []byte) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	require.NoError(fd.t, err)
	mr := multipart.NewReader(r.Body, params["boundary"])

	metaPart, err := mr.NextPart()
	require.NoError(fd.t, err)
	var meta struct {
		Name string `json:"name"`
	}
	require.NoError(fd.t, json.NewDecoder(metaPart).Decode(&meta))

	contentPart, err := mr.NextPart()
	require.NoError(fd.t, err)
	data, err := io.ReadAll(contentPart)
	require.NoError(fd.t, err)

	return meta.Name, data
}

func (fd *fakeDrive) handleCreate(w http.ResponseWriter, r *http.Request) {
	name, data := fd.readMultipart(r)
	fd.nextID++
	id := fmt.Sprintf("file-%d", fd.nextID)
	fd.files[id] = &fakeFile{name: name, data: data}
	fd.creates++
	json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (fd *fakeDrive) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f, ok := fd.files[id]
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	_, data := fd.readMultipart(r)
	f.data = data
	fd.updates++
	json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (fd *fakeDrive) handleDownload(w http.ResponseWriter, r *http.Request) {
	f, ok := fd.files[r.PathValue("id")]
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	w.Write(f.data)
}

func newTestClient(t *testing.T) (*Client, *fakeDrive, *staticTokenSource) {
	fd, srv := newFakeDrive(t)
	ts := &staticTokenSource{token: "test-token"}
	client := NewClient(ts, nil, WithBaseURLs(srv.URL, srv.URL+"/upload"))
	return client, fd, ts
}

func TestClient_UploadCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	client, fd, _ := newTestClient(t)

	require.NoError(t, client.Upload(ctx, "inkstone-backup.enc", []byte("first")))
	require.NoError(t, client.Upload(ctx, "inkstone-backup.enc", []byte("second")))

	// Exactly one remote object under the fixed name: the second upload
	// updated in place instead of creating a duplicate.
	assert.Len(t, fd.files, 1)
	assert.Equal(t, 1, fd.creates)
	assert.Equal(t, 1, fd.updates)

	data, err := client.Download(ctx, "inkstone-backup.enc")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestClient_DownloadMissing(t *testing.T) {
	client, _, _ := newTestClient(t)

	_, err := client.Download(context.Background(), "never-uploaded.enc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_UploadDownloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, _, _ := newTestClient(t)

	payload := []byte{0x00, 0x01, 0xfe, 0xff}
	require.NoError(t, client.Upload(ctx, "blob.enc", payload))

	got, err := client.Download(ctx, "blob.enc")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestClient_TransferErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	ts := &staticTokenSource{token: "test-token"}
	client := NewClient(ts, nil, WithBaseURLs(srv.URL, srv.URL+"/upload"))

	_, err := client.Download(context.Background(), "x.enc")
	var transferErr *TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, http.StatusForbidden, transferErr.Status)
	assert.Contains(t, transferErr.Body, "rate limited")
}

func TestClient_TokenSourceErrorsPropagate(t *testing.T) {
	failing := &failingTokenSource{err: errors.New("re-authentication required")}
	client := NewClient(failing, nil)

	_, err := client.Download(context.Background(), "x.enc")
	assert.ErrorIs(t, err, failing.err)
}

type failingTokenSource struct {
	err error
}

func (f *failingTokenSource) Authenticate(ctx context.Context) error          { return f.err }
func (f *failingTokenSource) AccessToken(ctx context.Context) (string, error) { return "", f.err }
func (f *failingTokenSource) IsAuthenticated(ctx context.Context) bool        { return false }
func (f *failingTokenSource) Logout(ctx context.Context) error                { return nil }

func TestClient_EveryOperationEnsuresToken(t *testing.T) {
	ctx := context.Background()
	client, _, ts := newTestClient(t)

	require.NoError(t, client.Upload(ctx, "a.enc", []byte("x")))
	before := ts.tokenCalls
	_, err := client.Download(ctx, "a.enc")
	require.NoError(t, err)

	// Each underlying request re-checks token validity first.
	assert.Greater(t, ts.tokenCalls, before)
}
