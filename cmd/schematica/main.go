package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/warnerco/schematica/internal/catalog"
	"github.com/warnerco/schematica/internal/config"
	"github.com/warnerco/schematica/internal/db"
	"github.com/warnerco/schematica/internal/graph"
	"github.com/warnerco/schematica/internal/index"
	"github.com/warnerco/schematica/internal/mcp"
	"github.com/warnerco/schematica/internal/pipeline"
	"github.com/warnerco/schematica/internal/scratchpad"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"query": true, "search": true, "get": true, "list": true,
	"create": true, "update": true, "delete": true,
	"relate": true, "neighbors": true, "path": true, "index": true,
	"scratchpad": true, "stats": true,
	"help": true,
}

// app bundles the stores and pipeline shared by CLI and MCP modes.
type app struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	graph   *graph.Store
	pad     *scratchpad.Store
	pipe    *pipeline.Pipeline
	log     *zap.Logger
}

// buildApp wires the full stack over an initialized database.
func buildApp(baseDir string, log *zap.Logger) (*app, func(), error) {
	database, err := db.Init(baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize database: %w", err)
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db.ConfigurePool(database, cfg)

	cat := catalog.New(database, index.NewMemory(log), log)
	if _, err := cat.LoadIndex(); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("load retrieval index: %w", err)
	}

	g, err := graph.NewStore(database, log)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("load graph store: %w", err)
	}

	pad := scratchpad.NewStore(scratchpad.Options{
		MaxTokens:    cfg.ScratchpadMaxTokens,
		EntryTTL:     cfg.ScratchpadEntryTTL(),
		InjectBudget: cfg.ScratchpadInjectBudgetTokens,
		Logger:       log,
	})

	pipe := pipeline.New(pipeline.Deps{
		Config:     cfg,
		Graph:      g,
		Search:     cat.Index(),
		Session:    pad,
		Recognizer: &pipeline.KeywordRecognizer{Exists: g.Exists},
		Logger:     log,
	})

	a := &app{cfg: cfg, catalog: cat, graph: g, pad: pad, pipe: pipe, log: log}
	return a, func() { database.Close() }, nil
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ____       _                          _   _
  / ___|  ___| |__   ___ _ __ ___   __ _| |_(_) ___ __ _
  \___ \ / __| '_ \ / _ \ '_ ' _ \ / _' | __| |/ __/ _' |
   ___) | (__| | | |  __/ | | | | | (_| | |_| | (_| (_| |
  |____/ \___|_| |_|\___|_| |_| |_|\__,_|\__|_|\___\__,_|

  WARNERCO robot schematic retrieval

  Usage: schematica <command> [options]
         schematica --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		cliApp := newCLIApp(nil)
		if err := cliApp.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, ".schematica")

	// Stdout carries CLI output and the MCP stdio transport; logs go to
	// stderr.
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	a, closeApp, err := buildApp(baseDir, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeApp()

	// CLI mode: known subcommand
	if isCLIMode() {
		cliApp := newCLIApp(a)
		if err := cliApp.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'schematica --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if unknown := mcp.ValidateDisabledTools(a.cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("ignoring unknown disabled tools", zap.Strings("tools", unknown))
	}
	err = mcp.Run(mcp.Deps{
		Config:     a.cfg,
		Catalog:    a.catalog,
		Graph:      a.graph,
		Scratchpad: a.pad,
		Pipeline:   a.pipe,
	}, Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
