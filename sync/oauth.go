// ABOUTME: OAuth configuration and token management for the Sheets API
// ABOUTME: Handles OAuth config, token storage at XDG paths, and the session token source
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"

	"github.com/harperreed/leadsheet/config"
)

// ErrNoSession is returned when no OAuth token is available.
var ErrNoSession = errors.New("no authenticated session")

// OAuthCallbackPath is served by the local login server.
const OAuthCallbackPath = "/oauth/callback"

// NewOAuthConfig creates the OAuth2 config for read/write spreadsheet access.
func NewOAuthConfig(cfg *config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  "http://localhost:8080" + OAuthCallbackPath,
		Scopes:       []string{sheets.SpreadsheetsScope},
		Endpoint:     google.Endpoint,
	}
}

// CheckOAuthConfig reports whether client credentials are configured.
func CheckOAuthConfig(cfg *config.Config) error {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return fmt.Errorf("google OAuth credentials not configured. Set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET environment variables")
	}
	return nil
}

// SaveToken saves the OAuth token to path with restricted permissions.
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return nil
}

// LoadToken loads the OAuth token from path. A missing file is ErrNoSession.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var token oauth2.Token
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &token, nil
}

// DeleteToken removes the stored token, ending the session.
func DeleteToken(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return nil
}

// persistingSource writes refreshed tokens back to disk.
type persistingSource struct {
	base oauth2.TokenSource
	path string
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		_ = SaveToken(p.path, tok)
	}
	return tok, nil
}

// SessionTokenSource returns a token source for the stored session that
// refreshes automatically and persists refreshed tokens.
func SessionTokenSource(ctx context.Context, cfg *config.Config) (oauth2.TokenSource, error) {
	if err := CheckOAuthConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	path := cfg.TokenPath()
	token, err := LoadToken(path)
	if err != nil {
		return nil, err
	}
	base := NewOAuthConfig(cfg).TokenSource(ctx, token)
	return oauth2.ReuseTokenSource(token, &persistingSource{base: base, path: path, last: token.AccessToken}), nil
}
