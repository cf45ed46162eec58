// Package drive implements authenticated file operations against the Google
// Drive v3 REST API: find-by-name, create-or-replace upload, and media
// download. The engine keeps at most one backup object per account by always
// searching before writing (find-then-act) instead of blindly creating.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/inkstone-app/inkstone/internal/auth"
)

const (
	defaultAPIBase    = "https://www.googleapis.com/drive/v3"
	defaultUploadBase = "https://www.googleapis.com/upload/drive/v3"
)

// Provider is the storage capability interface the orchestrator depends on.
// A concrete implementation is selected once at construction time.
type Provider interface {
	Authenticate(ctx context.Context) error
	IsAuthenticated(ctx context.Context) bool

	// Upload stores data under name, replacing an existing object with the
	// same name in place rather than creating a duplicate.
	Upload(ctx context.Context, name string, data []byte) error

	// Download fetches the object with the given name. Returns ErrNotFound
	// when no such object exists.
	Download(ctx context.Context, name string) ([]byte, error)
}

// Client talks to the Drive API with bearer tokens from a TokenSource.
type Client struct {
	ts         auth.TokenSource
	httpClient *http.Client
	apiBase    string
	uploadBase string
	logger     *slog.Logger
}

var _ Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs overrides the API endpoints; used by tests.
func WithBaseURLs(apiBase, uploadBase string) Option {
	return func(c *Client) {
		c.apiBase = apiBase
		c.uploadBase = uploadBase
	}
}

// NewClient builds a Drive client over the given token source.
func NewClient(ts auth.TokenSource, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Client{
		ts:         ts,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiBase:    defaultAPIBase,
		uploadBase: defaultUploadBase,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate runs the underlying flow's interactive authorization.
func (c *Client) Authenticate(ctx context.Context) error {
	return c.ts.Authenticate(ctx)
}

// IsAuthenticated reports whether a usable token is available.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	return c.ts.IsAuthenticated(ctx)
}

// fileList is the subset of the files.list response the client reads.
type fileList struct {
	Files []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"files"`
}

// findByName returns the id of the file with the exact given name, or ""
// when no such file exists. Trashed files do not count.
func (c *Client) findByName(ctx context.Context, name string) (string, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("name = '%s' and trashed = false", name))
	q.Set("spaces", "drive")
	q.Set("fields", "files(id, name)")

	body, err := c.doRequest(ctx, http.MethodGet, c.apiBase+"/files?"+q.Encode(), "", nil)
	if err != nil {
		return "", err
	}

	var list fileList
	if err := json.Unmarshal(body, &list); err != nil {
		return "", fmt.Errorf("failed to decode file list: %w", err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].ID, nil
}

// Upload stores data under name. An existing object is updated in place
// (PATCH); otherwise a new one is created (POST). The find-then-act sequence
// is not transactional against concurrent writers; last write wins.
func (c *Client) Upload(ctx context.Context, name string, data []byte) error {
	fileID, err := c.findByName(ctx, name)
	if err != nil {
		return err
	}

	var method, endpoint string
	metadata := map[string]any{"name": name}
	if fileID == "" {
		method = http.MethodPost
		endpoint = c.uploadBase + "/files?uploadType=multipart"
	} else {
		method = http.MethodPatch
		endpoint = c.uploadBase + "/files/" + fileID + "?uploadType=multipart"
		// Renaming on update is a no-op, but the metadata part is still
		// required by the multipart upload protocol.
	}

	contentType, body, err := encodeMultipart(metadata, data)
	if err != nil {
		return err
	}

	if _, err := c.doRequest(ctx, method, endpoint, contentType, body); err != nil {
		return err
	}

	c.logger.Debug("uploaded backup object", "name", name, "bytes", len(data), "created", fileID == "")
	return nil
}

// Download fetches the object with the given name, or ErrNotFound.
func (c *Client) Download(ctx context.Context, name string) ([]byte, error) {
	fileID, err := c.findByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if fileID == "" {
		return nil, ErrNotFound
	}

	return c.doRequest(ctx, http.MethodGet, c.apiBase+"/files/"+fileID+"?alt=media", "", nil)
}

// doRequest performs one authenticated request, ensuring a valid token
// first. Non-2xx responses become a *TransferError carrying the status and
// response body.
func (c *Client) doRequest(ctx context.Context, method, endpoint, contentType string, body []byte) ([]byte, error) {
	token, err := c.ts.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransferError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// encodeMultipart builds a multipart/related body with a JSON metadata part
// followed by the raw content part, per the Drive multipart upload protocol.
func encodeMultipart(metadata map[string]any, data []byte) (string, []byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := w.CreatePart(metaHeader)
	if err != nil {
		return "", nil, err
	}
	if err := json.NewEncoder(metaPart).Encode(metadata); err != nil {
		return "", nil, err
	}

	contentHeader := textproto.MIMEHeader{}
	contentHeader.Set("Content-Type", "application/octet-stream")
	contentPart, err := w.CreatePart(contentHeader)
	if err != nil {
		return "", nil, err
	}
	if _, err := contentPart.Write(data); err != nil {
		return "", nil, err
	}

	if err := w.Close(); err != nil {
		return "", nil, err
	}

	return "multipart/related; boundary=" + w.Boundary(), buf.Bytes(), nil
}
