// ABOUTME: Maintenance utility for the local offline store
// ABOUTME: Backs up the SQLite file, imports a JSON snapshot or resets to the bundled seed

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/harperreed/leadsheet/config"
	"github.com/harperreed/leadsheet/db"
	"github.com/harperreed/leadsheet/models"
)

type options struct {
	dbPath     string
	importPath string
	reset      bool
	dryRun     bool
	backup     bool
	force      bool
}

func main() {
	opts := options{}
	flag.StringVar(&opts.dbPath, "db", "", "Path to database file (default: from config)")
	flag.StringVar(&opts.importPath, "import", "", "Replace the offline store with a JSON snapshot")
	flag.BoolVar(&opts.reset, "reset", false, "Drop the offline store so the next load reseeds it")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Show what would happen without making changes")
	flag.BoolVar(&opts.backup, "backup", true, "Create backup before changing the store")
	flag.BoolVar(&opts.force, "force", false, "Proceed even if local-only writes would be lost")
	flag.Parse()

	if opts.dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		opts.dbPath = cfg.DatabasePath()
	}

	if err := run(context.Background(), opts); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migration completed successfully")
}

func run(ctx context.Context, opts options) error {
	if _, err := os.Stat(opts.dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database file does not exist: %s", opts.dbPath)
	}
	if opts.reset && opts.importPath != "" {
		return fmt.Errorf("-reset and -import are mutually exclusive")
	}

	var snapshot *models.SystemData
	if opts.importPath != "" {
		raw, err := os.ReadFile(opts.importPath)
		if err != nil {
			return fmt.Errorf("failed to read snapshot: %w", err)
		}
		snapshot = &models.SystemData{}
		if err := json.Unmarshal(raw, snapshot); err != nil {
			return fmt.Errorf("failed to parse snapshot: %w", err)
		}
		log.Printf("Snapshot holds %d leads", len(snapshot.Leads))
	}

	if opts.backup && !opts.dryRun && (opts.reset || snapshot != nil) {
		backupPath := fmt.Sprintf("%s.backup.%s", opts.dbPath, time.Now().Format("20060102-150405"))
		log.Printf("Creating backup: %s", backupPath)

		input, err := os.ReadFile(opts.dbPath)
		if err != nil {
			return fmt.Errorf("failed to read database: %w", err)
		}

		if err := os.WriteFile(backupPath, input, 0644); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		log.Printf("Backup created successfully")
	}

	database, err := db.OpenDatabase(opts.dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	store := db.NewOfflineStore(database)
	current, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load offline store: %w", err)
	}
	pending, err := store.PendingLeads(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pending leads: %w", err)
	}
	log.Printf("Offline store: %d leads, %d not yet in the sheet, source %s", len(current.Leads), len(pending), current.DataSource)

	localWrites, err := countLocalWrites(database)
	if err != nil {
		return fmt.Errorf("failed to read write log: %w", err)
	}
	if localWrites > 0 {
		log.Printf("Found %d writes that only reached the local store", localWrites)
	}

	if !opts.reset && snapshot == nil {
		return nil
	}

	if localWrites > 0 && !opts.force {
		log.Printf("WARNING: replacing the offline store discards local-only writes")
		log.Printf("Use -force flag to proceed")
		return fmt.Errorf("migration requires -force flag")
	}

	if opts.dryRun {
		log.Printf("[DRY RUN] Would perform the following actions:")
		if opts.reset {
			log.Printf("[DRY RUN] - Delete the offline store; the next load reseeds the bundled dataset")
		} else {
			log.Printf("[DRY RUN] - Replace %d stored leads with %d from %s, keeping %d unsynced", len(current.Leads), len(snapshot.Leads), opts.importPath, len(pending))
		}
		return nil
	}

	if opts.reset {
		if err := store.Reset(ctx); err != nil {
			return err
		}
		log.Printf("Offline store reset")
		return nil
	}

	kept, err := store.Mirror(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("failed to import snapshot: %w", err)
	}
	log.Printf("Imported %d leads, kept %d not yet in the sheet", len(snapshot.Leads), len(kept))
	return nil
}

func countLocalWrites(database *sql.DB) (int, error) {
	var n int
	err := database.QueryRow(`SELECT COUNT(*) FROM write_log WHERE target = ?`, db.TargetLocal).Scan(&n)
	return n, err
}
