package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/mmcdole/anidex/internal/adapter"
	"github.com/mmcdole/anidex/internal/domain"
	"github.com/mmcdole/anidex/internal/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: anidex [flags] [command]

Commands:
  (none)                     start the interactive browser
  search [flags] <query>     search the catalog (anidex search -h lists the filters)
  show <id>                  show an entry with its related sections
  top [filter]               top entries (airing, upcoming, bypopularity, favorite)
  home                       popular entries and the latest series and movies
  season                     entries airing this season
  config [file]              write the effective config (default location if no file)
  favorites                  list favorites
  favorites search <query>   fuzzy search the favorites
  favorites export <file>    write favorites as TOML ("-" for stdout)
  favorites import <file>    merge favorites from a TOML export

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	var showVersion bool
	var configPath string
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("anidex %s\n", Version)
		return
	}

	if err := run(configPath, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, args []string) error {
	cfg, err := adapter.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, closer, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	} else {
		defer closer.Close()
	}
	slog.SetDefault(logger)

	logger.Info("starting anidex", "version", Version)

	stack, err := adapter.NewStack(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	if len(args) > 0 {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		cli := &commands{
			stack:   stack,
			cfg:     cfg,
			out:     os.Stdout,
			limit:   cfg.UI.PageSize,
			sfw:     cfg.UI.SFW,
			spinner: term.IsTerminal(int(os.Stderr.Fd())),
		}
		return cli.dispatch(ctx, args)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal; see anidex -h for commands")
	}

	params := domain.ListParams{Limit: cfg.UI.PageSize, SFW: cfg.UI.SFW}
	model := tui.NewModel(stack.Catalog, stack.Favorites, stack.Launcher, params, logger)

	p := tea.NewProgram(model, tea.WithAltScreen())

	logger.Info("starting TUI")

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}
