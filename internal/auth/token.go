// Package auth defines the common authenticated-request contract shared by
// the two OAuth acquisition flows, plus the durable token cache used by the
// native flow. Callers pick a concrete TokenSource once at construction time;
// nothing downstream branches on which flow produced the token.
package auth

import (
	"context"
	"time"
)

// DefaultLeeway is subtracted from a token's stated expiry when deciding
// whether it still counts as valid, to avoid racing the literal instant.
const DefaultLeeway = 60 * time.Second

// TokenSet is the structured result of a successful token exchange or
// refresh. ExpiresAt is absolute epoch seconds, never a duration, so
// staleness checks do not depend on wall-clock drift between issuance and
// check. RefreshToken and IDToken may be empty.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Valid reports whether the access token is present and not within leeway of
// its expiry. A zero ExpiresAt means the token carries no expiry metadata and
// is only trusted for the lifetime of the in-memory session.
func (t *TokenSet) Valid(leeway time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.ExpiresAt == 0 {
		return true
	}
	return time.Now().Add(leeway).Unix() < t.ExpiresAt
}

// TokenSource is the capability interface both authorization flows satisfy.
// AccessToken must return a token valid for at least the leeway window,
// refreshing or re-authenticating as needed.
type TokenSource interface {
	// Authenticate runs the flow's interactive authorization from scratch.
	Authenticate(ctx context.Context) error

	// AccessToken returns a currently valid bearer token, refreshing
	// silently when possible. Returns ErrReauthRequired when only a new
	// interactive authorization can produce a valid token.
	AccessToken(ctx context.Context) (string, error)

	// IsAuthenticated reports whether a usable token is available without
	// user interaction.
	IsAuthenticated(ctx context.Context) bool

	// Logout discards any cached or in-memory credentials.
	Logout(ctx context.Context) error
}
