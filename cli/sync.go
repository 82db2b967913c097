// ABOUTME: Google Sheets sync CLI commands
// ABOUTME: Handles OAuth setup, sync status, forced refresh, and schema diagnostics
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/harperreed/leadsheet/config"
	"github.com/harperreed/leadsheet/handlers"
	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/schema"
	"github.com/harperreed/leadsheet/sync"
)

// SyncInitCommand handles OAuth setup
func SyncInitCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("sync init", flag.ExitOnError)
	timeout := fs.Duration("timeout", 5*time.Minute, "How long to wait for the browser callback")
	_ = fs.Parse(args)

	if err := sync.CheckOAuthConfig(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	oauthConfig := sync.NewOAuthConfig(cfg)
	state := uuid.NewString()

	// Start local server for OAuth callback
	callbackChan := make(chan *oauth2.Token, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(sync.OAuthCallbackPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errChan <- fmt.Errorf("state mismatch in OAuth callback")
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			errChan <- fmt.Errorf("no authorization code received")
			return
		}

		token, err := oauthConfig.Exchange(ctx, code)
		if err != nil {
			http.Error(w, "token exchange failed", http.StatusBadGateway)
			errChan <- fmt.Errorf("failed to exchange code: %w", err)
			return
		}

		callbackChan <- token
		_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
	})

	server := &http.Server{Addr: "localhost:8080", Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	defer func() { _ = server.Shutdown(context.Background()) }()

	authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	_, _ = fmt.Fprintln(stdout, "Opening browser for Google OAuth...")
	_, _ = fmt.Fprintf(stdout, "\nIf browser doesn't open, visit this URL:\n%s\n\n", authURL)

	_ = openBrowser(authURL)

	select {
	case token := <-callbackChan:
		if err := sync.SaveToken(cfg.TokenPath(), token); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}

		_, _ = fmt.Fprintf(stdout, "\n✓ Authenticated successfully\n")
		_, _ = fmt.Fprintf(stdout, "✓ Tokens saved to %s\n\n", cfg.TokenPath())
		if !cfg.HasSpreadsheet() {
			_, _ = fmt.Fprintln(stdout, "Set LEADSHEET_SPREADSHEET_ID (or spreadsheet_id in the config file) to start syncing.")
		} else {
			_, _ = fmt.Fprintln(stdout, "Ready to sync! Run 'leadsheet sync refresh' to fetch the sheet.")
		}
		return nil

	case err := <-errChan:
		return fmt.Errorf("OAuth flow failed: %w", err)

	case <-ctx.Done():
		return fmt.Errorf("OAuth flow timed out waiting for the browser callback")
	}
}

// SyncLogoutCommand removes the stored session.
func SyncLogoutCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("sync logout", flag.ExitOnError)
	_ = fs.Parse(args)

	if err := sync.DeleteToken(cfg.TokenPath()); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, "✓ Signed out; writes will go to the offline store")
	return nil
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// SyncStatusCommand shows the state of every tier and the recent writes.
func SyncStatusCommand(p *handlers.Pipeline, args []string) error {
	fs := flag.NewFlagSet("sync status", flag.ExitOnError)
	_ = fs.Parse(args)

	status, err := p.Engine().Status(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get sync status: %w", err)
	}

	_, _ = fmt.Fprintln(stdout, "Sync Status:")
	_, _ = fmt.Fprintln(stdout)
	_, _ = fmt.Fprintf(stdout, "  Spreadsheet:  %s\n", dash(status.SpreadsheetID))
	_, _ = fmt.Fprintf(stdout, "  Session:      %s\n", yesNo(status.HasSession))
	_, _ = fmt.Fprintf(stdout, "  API key:      %s\n", yesNo(status.HasAPIKey))
	_, _ = fmt.Fprintf(stdout, "  Writes go to: %s\n", p.Engine().Writer().Target())
	switch {
	case status.CacheAge == 0 && !status.CacheFresh:
		_, _ = fmt.Fprintln(stdout, "  Cache:        empty")
	case status.CacheFresh:
		_, _ = fmt.Fprintf(stdout, "  Cache:        fresh (%s)\n", formatAge(status.CacheAge))
	default:
		_, _ = fmt.Fprintf(stdout, "  Cache:        stale (%s)\n", formatAge(status.CacheAge))
	}
	_, _ = fmt.Fprintf(stdout, "  Not in sheet: %d\n", status.PendingLeads)

	if len(status.SyncStates) > 0 {
		_, _ = fmt.Fprintln(stdout)
		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "TIER\tSTATUS\tLAST SUCCESS\tDETAIL")
		_, _ = fmt.Fprintln(w, "----\t------\t------------\t------")
		for _, state := range status.SyncStates {
			last := "never"
			if state.LastSyncTime != nil {
				last = formatAge(p.Now().Sub(*state.LastSyncTime))
			}
			detail := ""
			if state.ErrorMessage != nil && *state.ErrorMessage != "" {
				detail = *state.ErrorMessage
			} else if state.Detail != nil {
				detail = *state.Detail
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", state.Service, state.Status, last, truncate(detail, 60))
		}
		_ = w.Flush()
	}

	if len(status.RecentWrites) > 0 {
		_, _ = fmt.Fprintln(stdout)
		_, _ = fmt.Fprintln(stdout, "Recent writes:")
		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		for _, entry := range status.RecentWrites {
			result := "ok"
			if entry.ErrorMessage != "" {
				result = "failed: " + entry.ErrorMessage
			}
			_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\trow %d\t%s\t%s\n",
				entry.CreatedAt.Format("2006-01-02 15:04"), entry.Op, dash(entry.LeadID), entry.RowIndex, entry.Target, truncate(result, 60))
		}
		_ = w.Flush()
	}
	return nil
}

// SyncRefreshCommand bypasses the cache and refetches from the best available tier.
func SyncRefreshCommand(p *handlers.Pipeline, args []string) error {
	fs := flag.NewFlagSet("sync refresh", flag.ExitOnError)
	_ = fs.Parse(args)

	start := time.Now()
	data := p.Snapshot(context.Background(), true)

	_, _ = fmt.Fprintf(stdout, "✓ Loaded %d leads in %s\n", len(data.Leads), time.Since(start).Round(time.Millisecond))
	printSource(data)
	engine := p.Engine()
	if data.DataSource == models.SourceLocal && engine.Auth == nil && engine.Public == nil {
		_, _ = fmt.Fprintln(stdout, "  no spreadsheet configured; run 'leadsheet sync init' and set LEADSHEET_SPREADSHEET_ID")
	}
	return nil
}

// SyncSchemaCommand compares the sheet's header row with the expected columns.
func SyncSchemaCommand(p *handlers.Pipeline, args []string) error {
	fs := flag.NewFlagSet("sync schema", flag.ExitOnError)
	refresh := fs.Bool("refresh", false, "Refetch the header row instead of using the stored map")
	_ = fs.Parse(args)

	ctx := context.Background()
	engine := p.Engine()

	var m *schema.Map
	if *refresh {
		_ = p.Snapshot(ctx, true)
	}
	if engine.Schemas != nil && engine.SpreadsheetID != "" {
		stored, ok, err := engine.Schemas.Load(engine.SpreadsheetID)
		if err != nil {
			return fmt.Errorf("failed to load schema map: %w", err)
		}
		if ok {
			m = stored
		}
	}
	if m == nil {
		_, _ = fmt.Fprintln(stdout, "No sheet header seen yet; showing the expected layout.")
		m = schema.DefaultMap()
	}

	report := m.Report()
	if report.OK() && len(report.Unknown) == 0 {
		_, _ = fmt.Fprintln(stdout, "✓ Header matches the expected schema")
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "EXPECTED\tCOLUMN")
	_, _ = fmt.Fprintln(w, "--------\t------")
	for _, h := range schema.ExpectedHeaders() {
		col := "missing"
		if idx, ok := m.Column(h); ok {
			col = fmt.Sprintf("%d (%s)", idx+1, m.Headers[idx])
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", h, col)
	}
	_ = w.Flush()

	if len(report.Unknown) > 0 {
		_, _ = fmt.Fprintf(stdout, "\nExtra columns (kept as-is): %s\n", strings.Join(report.Unknown, ", "))
	}
	if len(report.Duplicates) > 0 {
		_, _ = fmt.Fprintf(stdout, "Duplicate columns (first one wins): %s\n", strings.Join(report.Duplicates, ", "))
	}
	return nil
}

// openBrowser attempts to open URL in default browser
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}

	command := exec.Command(cmd, args...)
	return command.Start()
}
