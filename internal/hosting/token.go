// SPDX-License-Identifier: MIT

package hosting

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

// Token is the OAuth grant issued by the hosting service after the device
// flow completes.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Scope       string    `json:"scope,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// Valid reports whether the token can authenticate a request right now.
// A zero ExpiresAt means the grant does not expire.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt.IsZero() || time.Now().Before(t.ExpiresAt)
}

// TokenCache persists the OAuth token across daemon restarts. Writes go
// through renameio so a crash mid-write can never leave a truncated token
// file. An empty path keeps the token in memory only.
type TokenCache struct {
	path string
	mu   sync.Mutex
	tok  *Token
}

// NewTokenCache loads any previously cached token from path.
func NewTokenCache(path string) (*TokenCache, error) {
	c := &TokenCache{path: path}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *TokenCache) load() error {
	if c.path == "" {
		return nil
	}
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading token cache: %w", err)
	}
	var tok Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		// A corrupt cache is treated as logged out, not fatal.
		return nil
	}
	c.tok = &tok
	return nil
}

// Token returns the cached token, or nil when logged out.
func (c *TokenCache) Token() *Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tok == nil {
		return nil
	}
	cp := *c.tok
	return &cp
}

// Store caches the token, replacing any previous grant.
func (c *TokenCache) Store(tok Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path != "" {
		raw, err := json.MarshalIndent(tok, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding token: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
			return fmt.Errorf("creating token cache directory: %w", err)
		}
		if err := renameio.WriteFile(c.path, raw, 0o600); err != nil {
			return fmt.Errorf("writing token cache: %w", err)
		}
	}
	c.tok = &tok
	return nil
}

// Clear forgets the token and removes the cache file.
func (c *TokenCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tok = nil
	if c.path == "" {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token cache: %w", err)
	}
	return nil
}
