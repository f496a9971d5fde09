// Duelcore is a data-driven, deterministic turn-based combat arena.
// Usage: duelcore [--version] [--plain] [--script <file>] [--trace] [--config <file>] <rules_directory>
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"

	"github.com/nathoo/duelcore/arena"
	"github.com/nathoo/duelcore/cli"
	"github.com/nathoo/duelcore/config"
	"github.com/nathoo/duelcore/loader"
	"github.com/nathoo/duelcore/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = "Usage: duelcore [--version] [--plain] [--script <file>] [--trace] [--config <file>] <rules_directory>"

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	plain := false
	trace := false
	configPath := envOr("DUELCORE_CONFIG", "config.yaml")
	rulesDir := os.Getenv("DUELCORE_RULES")
	var scriptFile string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("duelcore %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			plain = true
		case "--trace":
			trace = true
		case "--script", "--config":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "%s requires a file path\n", args[i])
				os.Exit(1)
			}
			if args[i] == "--script" {
				scriptFile = args[i+1]
			} else {
				configPath = args[i+1]
			}
			i++
		default:
			rulesDir = args[i]
		}
	}

	if err := run(configPath, rulesDir, scriptFile, plain, trace); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, rulesDir, scriptFile string, plain, trace bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if rulesDir == "" {
		rulesDir = cfg.Rules
	}
	if rulesDir == "" {
		return fmt.Errorf("no rules directory given\n%s", usage)
	}
	if s := os.Getenv("DUELCORE_SEED"); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("DUELCORE_SEED: %w", err)
		}
		cfg.Battle.Seed = seed
	}

	logger, err := config.NewLogger(os.Stderr, cfg.Log)
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}
	slog.SetDefault(logger)

	table, err := loader.Load(rulesDir)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	slog.Info("rules loaded", "dir", rulesDir, "skills", len(table.Skills), "monsters", len(table.Monsters))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := arena.New(table, cfg.BattleOptions(cfg.Battle.Seed, logger))
	session.Trace = trace

	// Script mode: open file, force plain, echo commands.
	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()
		c := cli.New(session)
		c.In = f
		c.EchoInput = true
		c.Run(ctx)
		return nil
	}

	// Use plain CLI if --plain flag or stdout is not a terminal.
	if plain || !isTerminal() {
		cli.New(session).Run(ctx)
		return nil
	}

	return tui.Run(ctx, session)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// isTerminal reports whether both ends of the session are a terminal.
func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) && isatty.IsTerminal(os.Stdin.Fd())
}
