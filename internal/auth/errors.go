package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenNotFound indicates that no token set is cached.
	ErrTokenNotFound = errors.New("no cached token found")

	// ErrReauthRequired indicates that the cached credentials are unusable
	// (expired with no refresh token, or refresh rejected) and a fresh
	// interactive authorization is needed. The cache is wiped before this
	// error is returned so the next attempt starts clean.
	ErrReauthRequired = errors.New("re-authentication required")
)

// AuthorizationError reports a failed authorization attempt: a provider
// denial, a missing code, a state mismatch, user cancellation, or a timed-out
// browser round trip. Always terminal for the attempt.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization failed: %s", e.Reason)
}

// TokenError reports a non-2xx or malformed response from the token endpoint.
// Op is "exchange" or "refresh".
type TokenError struct {
	Op     string
	Status int
	Body   string
}

func (e *TokenError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("token %s failed: status %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("token %s failed: %s", e.Op, e.Body)
}
