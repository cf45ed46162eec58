package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/inkstone-app/inkstone/internal/auth"
	"github.com/inkstone-app/inkstone/internal/auth/implicit"
	"github.com/inkstone-app/inkstone/internal/auth/pkce"
	"github.com/inkstone-app/inkstone/internal/config"
	"github.com/inkstone-app/inkstone/internal/drive"
	"github.com/inkstone-app/inkstone/internal/store"
	"github.com/inkstone-app/inkstone/internal/store/sqlite"
	"github.com/inkstone-app/inkstone/internal/store/wasm"
	"github.com/inkstone-app/inkstone/internal/syncer"
)

// readPassword resolves the encryption password with fixed precedence:
// INKSTONE_PASSWORD, then --password-file, then --password, then an
// interactive prompt.
func (a *App) readPassword() (string, error) {
	if env := os.Getenv("INKSTONE_PASSWORD"); env != "" {
		return env, nil
	}

	if a.passwordFile != "" {
		content, err := os.ReadFile(a.passwordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		password := strings.TrimSpace(string(content))
		if password == "" {
			return "", fmt.Errorf("password file %s is empty", a.passwordFile)
		}
		return password, nil
	}

	if a.passwordFlag != "" {
		return a.passwordFlag, nil
	}

	password, err := a.io.ReadPassword("Encryption password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	return password, nil
}

// newPKCESource builds the durable token source (auth-code + PKCE over the
// bbolt cache). The returned closer releases the cache file.
func (a *App) newPKCESource() (*pkce.Source, func() error, error) {
	cache, err := auth.OpenCache(a.cfg.TokenCachePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open token cache: %w", err)
	}

	flow := pkce.NewFlow(pkce.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		AuthURL:      a.cfg.AuthURL,
		TokenURL:     a.cfg.TokenURL,
		Scope:        a.cfg.Scope,
		ListenAddr:   a.cfg.ListenAddr,
	}, a.logger)

	return pkce.NewSource(flow, cache, a.logger), cache.Close, nil
}

// tokenSource selects the auth capability once: the session-only implicit
// client with --web, the durable PKCE source otherwise.
func (a *App) tokenSource(web bool) (auth.TokenSource, func() error, error) {
	if web {
		client := implicit.NewClient(implicit.Config{
			ClientID:   a.cfg.ClientID,
			AuthURL:    a.cfg.AuthURL,
			Scope:      a.cfg.Scope,
			ListenAddr: a.cfg.ListenAddr,
		}, a.logger)
		return client, func() error { return nil }, nil
	}

	source, closer, err := a.newPKCESource()
	if err != nil {
		return nil, nil, err
	}
	return source, closer, nil
}

// openStore builds the store over the configured engine.
func (a *App) openStore(ctx context.Context) (*store.Store, error) {
	var (
		engine store.Engine
		err    error
	)
	switch a.cfg.Engine {
	case config.EngineWASM:
		engine, err = wasm.Open(ctx, a.cfg.SnapshotPath(), a.logger)
	default:
		engine, err = sqlite.Open(ctx, a.cfg.DatabasePath())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store.New(engine, a.logger), nil
}

// newOrchestrator assembles store + drive + token source. The closer tears
// all of it down.
func (a *App) newOrchestrator(ctx context.Context, web bool) (*syncer.Orchestrator, func(), error) {
	ts, closeTS, err := a.tokenSource(web)
	if err != nil {
		return nil, nil, err
	}

	st, err := a.openStore(ctx)
	if err != nil {
		_ = closeTS()
		return nil, nil, err
	}

	remote := drive.NewClient(ts, a.logger)
	cleanup := func() {
		_ = st.Close()
		_ = closeTS()
	}
	return syncer.New(st, remote, a.logger), cleanup, nil
}
