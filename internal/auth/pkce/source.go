package pkce

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inkstone-app/inkstone/internal/auth"
)

// authorizer is the slice of Flow the token source needs; narrowed to an
// interface so tests can fake the interactive parts.
type authorizer interface {
	Authorize(ctx context.Context) (*auth.TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenSet, error)
}

// Source is the native platform's auth.TokenSource: tokens obtained through
// the PKCE flow, persisted in the bbolt cache, refreshed silently inside the
// leeway window.
type Source struct {
	mu     sync.Mutex
	flow   authorizer
	cache  *auth.Cache
	leeway time.Duration
	logger *slog.Logger
}

var _ auth.TokenSource = (*Source)(nil)

// NewSource builds a Source over the given flow and cache.
func NewSource(flow *Flow, cache *auth.Cache, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		flow:   flow,
		cache:  cache,
		leeway: auth.DefaultLeeway,
		logger: logger,
	}
}

// Authenticate runs the interactive flow and caches the result.
func (s *Source) Authenticate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticateLocked(ctx)
}

func (s *Source) authenticateLocked(ctx context.Context) error {
	tokens, err := s.flow.Authorize(ctx)
	if err != nil {
		return err
	}
	if err := s.cache.Save(ctx, tokens); err != nil {
		return fmt.Errorf("failed to cache tokens: %w", err)
	}
	return nil
}

// AccessToken returns a bearer token valid for at least the leeway window.
//
// Nothing cached: run the interactive flow. Cached and fresh: use it. Cached
// but expiring with a refresh token present: refresh silently and persist the
// result, keeping the old refresh token if the response omitted one. Refresh
// rejected, or no refresh token: wipe the cache and report ErrReauthRequired
// instead of sending a request with a stale token.
func (s *Source) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.cache.Load(ctx)
	if err == auth.ErrTokenNotFound {
		if err := s.authenticateLocked(ctx); err != nil {
			return "", err
		}
		tokens, err = s.cache.Load(ctx)
		if err != nil {
			return "", err
		}
		return tokens.AccessToken, nil
	}
	if err != nil {
		return "", err
	}

	if tokens.Valid(s.leeway) {
		return tokens.AccessToken, nil
	}

	if tokens.RefreshToken == "" {
		if err := s.cache.Clear(ctx); err != nil {
			s.logger.Warn("failed to clear token cache", "error", err)
		}
		return "", auth.ErrReauthRequired
	}

	refreshed, err := s.flow.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		// A known-bad refresh token must not be retried forever; wipe so
		// the next attempt falls through to a full authorization.
		if clearErr := s.cache.Clear(ctx); clearErr != nil {
			s.logger.Warn("failed to clear token cache", "error", clearErr)
		}
		s.logger.Warn("token refresh failed", "error", err)
		return "", fmt.Errorf("%w: %v", auth.ErrReauthRequired, err)
	}

	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = tokens.RefreshToken
	}
	if err := s.cache.Save(ctx, refreshed); err != nil {
		return "", fmt.Errorf("failed to cache refreshed tokens: %w", err)
	}

	return refreshed.AccessToken, nil
}

// IsAuthenticated reports whether a cached token is valid past the leeway
// window or silently refreshable.
func (s *Source) IsAuthenticated(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.cache.Load(ctx)
	if err != nil {
		return false
	}
	return tokens.Valid(s.leeway) || tokens.RefreshToken != ""
}

// IDToken returns the cached identity token, if any. Used only to display
// which account is signed in.
func (s *Source) IDToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.cache.Load(ctx)
	if err != nil {
		return "", err
	}
	return tokens.IDToken, nil
}

// Logout wipes the cached token set.
func (s *Source) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Clear(ctx)
}
