// ABOUTME: Entry point for the leadsheet CLI, board, HTTP API and MCP server
// ABOUTME: Loads config, builds the sync engine and routes to subcommands
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/harperreed/leadsheet/cli"
	"github.com/harperreed/leadsheet/config"
	"github.com/harperreed/leadsheet/handlers"
	"github.com/harperreed/leadsheet/sync"
	"github.com/harperreed/leadsheet/tui"
	"github.com/harperreed/leadsheet/web"
)

const version = "0.1.0"

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	debug := flag.Bool("debug", false, "Enable development logging")
	localOnly := flag.Bool("local", false, "Skip the spreadsheet and use the local store only")

	// Parse global flags but don't fail on unknown (for subcommands)
	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("leadsheet version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	logger, err := newLogger(*debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := args[0]
	commandArgs := args[1:]
	subcommand := ""
	subArgs := []string(nil)
	if len(commandArgs) > 0 {
		subcommand = commandArgs[0]
		subArgs = commandArgs[1:]
	}

	// Commands that only touch the session need no engine.
	if command == "sync" {
		switch subcommand {
		case "init":
			exitOnError(cli.SyncInitCommand(cfg, subArgs))
			return
		case "logout":
			exitOnError(cli.SyncLogoutCommand(cfg, subArgs))
			return
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engine, err := sync.Open(ctx, sync.Options{
		Config:     cfg,
		Logger:     logger,
		Registerer: registry,
		LocalOnly:  *localOnly,
	})
	if err != nil {
		log.Fatalf("Failed to open engine: %v", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("failed to close engine", zap.Error(err))
		}
	}()
	pipeline := handlers.NewPipeline(engine)

	switch command {
	case "leads":
		err = leadsCommand(pipeline, subcommand, subArgs)
	case "sync":
		err = syncCommand(pipeline, subcommand, subArgs)
	case "rules":
		err = rulesCommand(pipeline, subcommand, subArgs)
	case "viz":
		if subcommand != "pipeline" {
			usageError("viz requires a subcommand: pipeline")
		}
		err = cli.VizPipelineCommand(pipeline, subArgs)
	case "dashboard":
		err = cli.VizDashboardCommand(pipeline, commandArgs)
	case "board":
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			log.Fatalf("board requires an interactive terminal")
		}
		err = tui.Run(ctx, pipeline)
	case "serve":
		fs := flag.NewFlagSet("serve", flag.ExitOnError)
		addr := fs.String("addr", cfg.HTTPAddr, "Listen address")
		_ = fs.Parse(commandArgs)
		err = web.NewServer(pipeline, registry, logger).Start(ctx, *addr)
	case "mcp":
		err = cli.MCPCommand(ctx, pipeline, logger, version)
	default:
		usageError("Unknown command: " + command)
	}

	exitOnError(err)
}

func leadsCommand(p *handlers.Pipeline, sub string, args []string) error {
	switch sub {
	case "list":
		return cli.LeadsListCommand(p, args)
	case "show":
		return cli.LeadsShowCommand(p, args)
	case "add":
		return cli.LeadsAddCommand(p, args)
	case "update":
		return cli.LeadsUpdateCommand(p, args)
	case "move":
		return cli.LeadsMoveCommand(p, args)
	case "missing":
		return cli.LeadsMissingCommand(p, args)
	case "health":
		return cli.LeadsHealthCommand(p, args)
	}
	usageError("Unknown leads command: " + sub)
	return nil
}

func syncCommand(p *handlers.Pipeline, sub string, args []string) error {
	switch sub {
	case "status":
		return cli.SyncStatusCommand(p, args)
	case "refresh":
		return cli.SyncRefreshCommand(p, args)
	case "schema":
		return cli.SyncSchemaCommand(p, args)
	}
	usageError("Unknown sync command: " + sub)
	return nil
}

func rulesCommand(p *handlers.Pipeline, sub string, args []string) error {
	switch sub {
	case "list", "":
		return cli.RulesListCommand(p, args)
	case "export":
		return cli.RulesExportCommand(p, args)
	case "import":
		return cli.RulesImportCommand(p, args)
	}
	usageError("Unknown rules command: " + sub)
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usageError(msg string) {
	fmt.Printf("%s\n\n", msg)
	printUsage()
	os.Exit(1)
}

func printUsage() {
	fmt.Printf(`leadsheet v%s - Lead pipeline backed by Google Sheets

USAGE:
  leadsheet [global flags] <command> [subcommand] [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --debug                Development logging to stderr
  --local                Use the local store only (no spreadsheet calls)

COMMANDS:
  leads                  Lead commands
  sync                   Spreadsheet session and sync commands
  rules                  Workflow rule commands
  board                  Full-screen stage board
  dashboard              Pipeline overview in the terminal
  viz                    Visualization commands
  serve                  Start the HTTP JSON API
  mcp                    Start MCP server over stdio

LEADS COMMANDS:
  leadsheet leads list       List leads
    --stage <stage>            Filter by stage
    --category <category>      Filter by category
    --owner <name>             Filter by owner (YDS POC)
    --health <status>          Healthy, Warning or Violated
    --query <text>             Search company, contact, email, number, lead ID
    --open                     Hide Won and Lost leads
    --limit <n>                Max results (default: 50)
    --refresh                  Bypass the cache
    --json                     Print JSON

  leadsheet leads show <id>  Show one lead with its SLA health

  leadsheet leads add        Add a lead in the New stage
    --company <name>           Company name
    --contact <name>           Contact person
    --number <phone>           Phone number
    --email <email>            Email address
    --owner <name>             Owner (YDS POC)
    --allow-duplicate          Add even when email or phone matches a lead

  leadsheet leads update [flags] <id>  Update fields of a lead
    --set <key=value>          Field key or sheet header (repeatable)
    Note: flags must come before the lead ID

  leadsheet leads move <id> <stage>     Move a lead, applying auto actions
  leadsheet leads missing <id> <stage>  Show what a move would still need
  leadsheet leads health                SLA summary of open leads
    --owner <name>             Only this owner's leads

SYNC COMMANDS:
  leadsheet sync init        Authorize Google Sheets access in the browser
  leadsheet sync logout      Remove the stored session
  leadsheet sync status      Show tiers, cache and recent writes
  leadsheet sync refresh     Reload from the spreadsheet
  leadsheet sync schema      Show how sheet headers map to lead fields

RULES COMMANDS:
  leadsheet rules list       Show stage, SLA, auto-action and category rules
  leadsheet rules export     Write rules as JSON
    --output <file>            Output file (default: stdout)
  leadsheet rules import <file>  Validate and save rules

VIZ COMMANDS:
  leadsheet viz pipeline     Stage graph with lead counts
    --output <file>            Output file (default: stdout)
    --format <dot|svg|png>     Output format (default: from extension, else dot)

EXAMPLES:
  # Connect a spreadsheet
  leadsheet sync init

  # Leads owned by Ravi that are still open
  leadsheet leads list --owner Ravi --open

  # Move a lead to Proposal
  leadsheet leads move L-0002 Proposal

  # Serve the API
  leadsheet serve --addr localhost:8787

`, version)
}
