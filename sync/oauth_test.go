package sync

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/sheets/v4"

	"github.com/harperreed/leadsheet/config"
)

func TestOAuthConfigCreation(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ClientID = "id"
	cfg.ClientSecret = "secret"

	oc := NewOAuthConfig(cfg)
	if oc == nil {
		t.Fatal("expected config, got nil")
	}
	if len(oc.Scopes) != 1 || oc.Scopes[0] != sheets.SpreadsheetsScope {
		t.Errorf("expected the spreadsheets scope, got %v", oc.Scopes)
	}
	if oc.RedirectURL != "http://localhost:8080/oauth/callback" {
		t.Errorf("unexpected redirect URL %s", oc.RedirectURL)
	}
	if err := CheckOAuthConfig(cfg); err != nil {
		t.Errorf("expected credentials to be accepted: %v", err)
	}
	if err := CheckOAuthConfig(&config.Config{}); err == nil {
		t.Error("expected missing credentials to be rejected")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leadsheet", "google-credentials.json")

	if _, err := LoadToken(path); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession for a missing token, got %v", err)
	}

	token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour).Round(time.Second)}
	if err := SaveToken(path, token); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("token file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken failed: %v", err)
	}
	if loaded.AccessToken != "access" || loaded.RefreshToken != "refresh" {
		t.Errorf("unexpected token %+v", loaded)
	}

	if err := DeleteToken(path); err != nil {
		t.Fatalf("DeleteToken failed: %v", err)
	}
	if err := DeleteToken(path); err != nil {
		t.Errorf("deleting a missing token should succeed: %v", err)
	}
}

func TestSessionTokenSourceWithoutToken(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.ClientID = "id"
	cfg.ClientSecret = "secret"

	if _, err := SessionTokenSource(t.Context(), cfg); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}

	cfg.ClientID = ""
	if _, err := SessionTokenSource(t.Context(), cfg); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession without client credentials, got %v", err)
	}
}
