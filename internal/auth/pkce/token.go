package pkce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inkstone-app/inkstone/internal/auth"
)

// tokenResponse is the token endpoint's JSON body for both the
// authorization_code and refresh_token grants.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// exchange redeems an authorization code plus the original verifier for a
// token set.
func (f *Flow) exchange(ctx context.Context, code, verifier, redirectURI string) (*auth.TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	form.Set("client_id", f.cfg.ClientID)
	if f.cfg.ClientSecret != "" {
		form.Set("client_secret", f.cfg.ClientSecret)
	}
	form.Set("redirect_uri", redirectURI)

	return f.postTokenForm(ctx, "exchange", form)
}

// Refresh redeems a refresh token for a fresh access token. Providers may
// omit the refresh token from the response, which means the previous one
// stays valid; the caller keeps it.
func (f *Flow) Refresh(ctx context.Context, refreshToken string) (*auth.TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", f.cfg.ClientID)
	if f.cfg.ClientSecret != "" {
		form.Set("client_secret", f.cfg.ClientSecret)
	}

	return f.postTokenForm(ctx, "refresh", form)
}

func (f *Flow) postTokenForm(ctx context.Context, op string, form url.Values) (*auth.TokenSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &auth.TokenError{Op: op, Body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &auth.TokenError{Op: op, Body: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &auth.TokenError{Op: op, Body: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &auth.TokenError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &auth.TokenError{Op: op, Status: resp.StatusCode, Body: "malformed token response"}
	}
	if tr.AccessToken == "" {
		return nil, &auth.TokenError{Op: op, Status: resp.StatusCode, Body: "token response missing access_token"}
	}

	return &auth.TokenSet{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		IDToken:      tr.IDToken,
		ExpiresAt:    time.Now().Unix() + tr.ExpiresIn,
	}, nil
}
