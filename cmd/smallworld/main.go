package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sanonone/smallworld/internal/cli"
	"github.com/sanonone/smallworld/internal/config"
)

const usage = `usage: smallworld <command> [flags]

commands:
  generate   write a synthetic layered graph to the journal
  inspect    replay the journal and report every layer
  compact    rewrite the journal to its minimal form
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	cfg, err := loadConfig(command, os.Args[2:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.Log.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, command, cfg); err != nil {
		slog.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

// loadConfig parses the flags of a subcommand, loads the configuration file
// and applies the flags that were set on top of it. The result is validated
// after the overrides.
func loadConfig(command string, args []string) (config.Config, error) {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	configPath := fs.String("config", "", "path of the YAML configuration file")
	journalPath := fs.String("journal", "", "journal file, overrides journal.path")
	nodes := fs.Int("nodes", 0, "nodes to generate, overrides generate.nodes")
	metricsAddr := fs.String("metrics-addr", "", "serve /metrics after inspect, overrides metrics.addr")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "journal":
			cfg.Journal.Path = *journalPath
		case "nodes":
			cfg.Generate.Nodes = *nodes
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		}
	})
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("after flag overrides: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, command string, cfg config.Config) error {
	switch command {
	case "generate":
		_, err := cli.Generate(ctx, cfg)
		return err
	case "inspect":
		if _, err := cli.Inspect(cfg); err != nil {
			return err
		}
		if cfg.Metrics.Addr == "" {
			return nil
		}
		return cli.ServeMetrics(ctx, cfg.Metrics.Addr)
	case "compact":
		_, err := cli.Compact(cfg)
		return err
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}
