package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hpungsan/larder/internal/config"
	"github.com/hpungsan/larder/internal/db"
	"github.com/hpungsan/larder/internal/mcp"
	"github.com/hpungsan/larder/internal/ops"
	"github.com/hpungsan/larder/internal/oracle"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"log": true, "remove": true, "today": true, "day": true,
	"resolve": true, "foods": true, "seed": true,
	"sweep": true, "repair": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion(args)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
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
   _                 _
  | | __ _ _ __ __| | ___ _ __
  | |/ _' | '__/ _' |/ _ \ '__|
  | | (_| | | | (_| |  __/ |
  |_|\__,_|_|  \__,_|\___|_|

  Daily calorie ledger with AI nutrition lookup

  Usage: larder <command> [options]
         larder --help

  MCP server mode requires piped input.`)
}

// newLogger builds the process logger. Logs always go to stderr so stdout
// stays clean for JSON output and the MCP transport.
func newLogger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if os.Getenv("LARDER_DEBUG") == "1" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(os.Args) {
		app := newCLIApp(nil, nil, nil, zap.NewNop())
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// A missing .env is normal; real environment variables still apply.
	_ = godotenv.Load()

	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		logger.Fatal("could not determine home directory", zap.Error(err))
	}

	baseDir := os.Getenv("LARDER_HOME")
	if baseDir == "" {
		baseDir = filepath.Join(homeDir, ".larder")
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	cfg = config.ApplyEnv(cfg)

	database, err := db.Init(baseDir)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	nutrition := oracle.New(oracle.NewClient(cfg), cfg, logger.Named("oracle"))
	resolver := ops.NewResolver(database, cfg, nutrition, logger.Named("resolver"))

	// CLI mode: known subcommand
	if isCLIMode(os.Args) {
		app := newCLIApp(database, cfg, resolver, logger)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'larder --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default); expired days are swept in the background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ops.NewSweeper(database, cfg, logger.Named("sweeper")).Run(ctx)

	if err := mcp.Run(database, cfg, resolver, logger.Named("mcp"), Version); err != nil {
		logger.Error("mcp server stopped", zap.Error(err))
		os.Exit(1)
	}
}
