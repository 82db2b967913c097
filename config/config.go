// ABOUTME: Application configuration stored at the XDG config path
// ABOUTME: Loads .env, the JSON config file, then environment overrides, and validates the result
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// AppName names the XDG directories.
const AppName = "leadsheet"

// SheetNames are the tab names of the tables the engine reads and writes.
type SheetNames struct {
	Leads         string `json:"leads" validate:"required"`
	StageRules    string `json:"stage_rules" validate:"required"`
	SLARules      string `json:"sla_rules" validate:"required"`
	AutoActions   string `json:"auto_actions" validate:"required"`
	CategoryRules string `json:"category_rules" validate:"required"`
	Settings      string `json:"settings" validate:"required"`
}

// Config holds everything the engine needs to reach the spreadsheet and its local stores.
type Config struct {
	SpreadsheetID string     `json:"spreadsheet_id,omitempty" validate:"omitempty,min=10,max=128,excludesall=/?#"`
	APIKey        string     `json:"api_key,omitempty"`
	ClientID      string     `json:"client_id,omitempty"`
	ClientSecret  string     `json:"client_secret,omitempty"`
	DataDir       string     `json:"data_dir" validate:"required"`
	Sheets        SheetNames `json:"sheets"`
	CacheTTL      string     `json:"cache_ttl,omitempty" validate:"omitempty"`
	HTTPAddr      string     `json:"http_addr,omitempty" validate:"omitempty,hostname_port"`
	Timezone      string     `json:"timezone,omitempty" validate:"omitempty,timezone"`
}

// DefaultSheetNames returns the conventional tab names.
func DefaultSheetNames() SheetNames {
	return SheetNames{
		Leads:         "Leads",
		StageRules:    "StageRules",
		SLARules:      "SLARules",
		AutoActions:   "AutoActions",
		CategoryRules: "CategoryRules",
		Settings:      "Settings",
	}
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:  filepath.Join(xdg.DataHome, AppName),
		Sheets:   DefaultSheetNames(),
		CacheTTL: "15m",
		HTTPAddr: "localhost:8787",
	}
}

// Path returns the config file location.
func Path() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.json")
}

// Load reads the config from Path. See LoadFrom.
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom loads a .env file if present, then the JSON file at path (a
// missing file means defaults), then environment overrides:
// - LEADSHEET_SPREADSHEET_ID
// - LEADSHEET_API_KEY
// - LEADSHEET_DATA_DIR
// - LEADSHEET_LEADS_SHEET
// - LEADSHEET_CACHE_TTL
// - LEADSHEET_HTTP_ADDR
// - LEADSHEET_TIMEZONE
// - GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET.
func LoadFrom(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer func() { _ = f.Close() }()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	fillSheetDefaults(&cfg.Sheets)
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func fillSheetDefaults(s *SheetNames) {
	d := DefaultSheetNames()
	if s.Leads == "" {
		s.Leads = d.Leads
	}
	if s.StageRules == "" {
		s.StageRules = d.StageRules
	}
	if s.SLARules == "" {
		s.SLARules = d.SLARules
	}
	if s.AutoActions == "" {
		s.AutoActions = d.AutoActions
	}
	if s.CategoryRules == "" {
		s.CategoryRules = d.CategoryRules
	}
	if s.Settings == "" {
		s.Settings = d.Settings
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LEADSHEET_SPREADSHEET_ID"); v != "" {
		cfg.SpreadsheetID = v
	}
	if v := os.Getenv("LEADSHEET_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("LEADSHEET_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LEADSHEET_LEADS_SHEET"); v != "" {
		cfg.Sheets.Leads = v
	}
	if v := os.Getenv("LEADSHEET_CACHE_TTL"); v != "" {
		cfg.CacheTTL = v
	}
	if v := os.Getenv("LEADSHEET_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("LEADSHEET_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.ClientSecret = v
	}
}

// Save writes the config to Path with restricted permissions.
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo writes the config to path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// TTL parses CacheTTL, falling back to 15 minutes.
func (c *Config) TTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// Location returns the configured timezone for "today" comparisons.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// HasSpreadsheet reports whether a remote spreadsheet is configured at all.
func (c *Config) HasSpreadsheet() bool {
	return c.SpreadsheetID != ""
}

// DatabasePath is the sqlite file for the offline store, sync state and write log.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "leadsheet.db")
}

// KVDir is the badger directory for the snapshot cache and schema map.
func (c *Config) KVDir() string {
	return filepath.Join(c.DataDir, "kv")
}

// TokenPath is where the OAuth token is stored.
func (c *Config) TokenPath() string {
	return filepath.Join(c.DataDir, "google-credentials.json")
}
