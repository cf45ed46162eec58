// Package config resolves client configuration from the environment with
// sensible defaults. Every knob is an INKSTONE_* variable so the CLI works
// without a config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Engine names accepted by INKSTONE_ENGINE.
const (
	EngineNative = "native"
	EngineWASM   = "wasm"
)

const (
	defaultAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	defaultScope    = "openid email https://www.googleapis.com/auth/drive.file"
)

// Config is the resolved client configuration.
type Config struct {
	// OAuth client registration. ClientSecret is the non-confidential
	// secret Google issues for installed applications.
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	Scope        string

	// ListenAddr is the loopback address for OAuth redirect listeners.
	ListenAddr string

	// Engine selects the store backend: EngineNative or EngineWASM.
	Engine string

	// DataDir holds the token cache and the local database.
	DataDir string
}

// Load reads configuration from the environment. Missing values fall back to
// defaults; the data directory defaults to the user config dir.
func Load() (*Config, error) {
	dataDir := os.Getenv("INKSTONE_DATA_DIR")
	if dataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config directory: %w", err)
		}
		dataDir = filepath.Join(base, "inkstone")
	}

	engine := getenv("INKSTONE_ENGINE", EngineNative)
	if engine != EngineNative && engine != EngineWASM {
		return nil, fmt.Errorf("unknown engine %q: want %q or %q", engine, EngineNative, EngineWASM)
	}

	return &Config{
		ClientID:     os.Getenv("INKSTONE_CLIENT_ID"),
		ClientSecret: os.Getenv("INKSTONE_CLIENT_SECRET"),
		AuthURL:      getenv("INKSTONE_AUTH_URL", defaultAuthURL),
		TokenURL:     getenv("INKSTONE_TOKEN_URL", defaultTokenURL),
		Scope:        getenv("INKSTONE_SCOPE", defaultScope),
		ListenAddr:   getenv("INKSTONE_LISTEN_ADDR", "127.0.0.1:0"),
		Engine:       engine,
		DataDir:      dataDir,
	}, nil
}

// TokenCachePath is the bbolt file holding the OAuth token record.
func (c *Config) TokenCachePath() string { return filepath.Join(c.DataDir, "tokens.db") }

// DatabasePath is the native engine's sqlite file.
func (c *Config) DatabasePath() string { return filepath.Join(c.DataDir, "inkstone.db") }

// SnapshotPath is the WASM engine's durable snapshot file.
func (c *Config) SnapshotPath() string { return filepath.Join(c.DataDir, "snapshot.db") }

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
