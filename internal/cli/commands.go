// Package cli implements the subcommands of the smallworld tool.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sanonone/smallworld/internal/config"
	"github.com/sanonone/smallworld/internal/workload"
	"github.com/sanonone/smallworld/pkg/core/graph"
	"github.com/sanonone/smallworld/pkg/persistence"
)

// Graphs built by the tool use string keys and int levels.
type (
	Key   = string
	Level = int
)

// LevelStat is the content of one layer.
type LevelStat struct {
	Level int
	Keys  int
	Edges int
}

// Report is what Inspect found in a journal.
type Report struct {
	Replay persistence.ReplayStats
	Entry  graph.Entry[Key, Level]
	Empty  bool
	Levels []LevelStat // top layer first
}

func openSink(cfg config.JournalConfig) (persistence.Sink, *persistence.AOFWriter, error) {
	w, err := persistence.NewAOFWriter(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Lazy {
		return w, w, nil
	}
	return persistence.NewLazyAOFWriter(w, persistence.LazyConfig{
		FlushInterval: cfg.FlushInterval,
		SyncInterval:  cfg.SyncInterval,
		MaxBuffered:   cfg.MaxBuffered,
	}), w, nil
}

// Generate writes a fresh synthetic graph to the configured journal.
func Generate(ctx context.Context, cfg config.Config) (workload.Summary, error) {
	sink, aof, err := openSink(cfg.Journal)
	if err != nil {
		return workload.Summary{}, err
	}
	if err := aof.Truncate(); err != nil {
		_ = sink.Close()
		return workload.Summary{}, fmt.Errorf("failed to truncate journal: %w", err)
	}

	store := graph.NewInMemory[Key, Level]()
	journal := persistence.NewJournaled[Key, Level](graph.NewInstrumented[Key, Level]("generate", store), sink)

	gen := workload.NewGenerator(workload.Options{
		Nodes:     cfg.Generate.Nodes,
		MaxDegree: cfg.Generate.MaxDegree,
		LevelMult: cfg.Generate.LevelMult,
		Seed:      cfg.Generate.Seed,
	})

	start := time.Now()
	sum, genErr := gen.Generate(ctx, journal)
	syncErr := journal.Sync()
	closeErr := sink.Close()
	if err := errors.Join(genErr, syncErr, closeErr); err != nil {
		return sum, err
	}

	slog.Info("graph generated",
		"journal", cfg.Journal.Path,
		"nodes", sum.Nodes,
		"edges", sum.Edges,
		"top_level", sum.TopLevel,
		"duration", time.Since(start),
	)
	return sum, nil
}

// load replays the configured journal into a fresh in-memory graph.
func load(cfg config.Config) (*graph.InMemory[Key, Level], persistence.ReplayStats, error) {
	store := graph.NewInMemory[Key, Level]()
	stats, err := persistence.ReplayFile[Key, Level](cfg.Journal.Path, graph.NewInstrumented[Key, Level]("replay", store))
	return store, stats, err
}

// Inspect replays the journal and reports the content of every layer.
func Inspect(cfg config.Config) (Report, error) {
	store, stats, err := load(cfg)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Replay: stats, Empty: true}
	graph.Walk[Key, Level](store, func(entry graph.Entry[Key, Level], level Level) bool {
		rep.Entry = entry
		rep.Empty = false
		rep.Levels = append(rep.Levels, LevelStat{
			Level: level,
			Keys:  len(store.Keys(level)),
			Edges: store.EdgeCount(level),
		})
		return true
	})

	if rep.Empty {
		slog.Info("journal holds an empty graph", "journal", cfg.Journal.Path, "frames", stats.Frames)
		return rep, nil
	}
	slog.Info("journal replayed",
		"journal", cfg.Journal.Path,
		"frames", stats.Frames,
		"truncated", stats.Truncated,
		"entry", rep.Entry.Key,
		"entry_level", rep.Entry.Level,
	)
	for _, ls := range rep.Levels {
		slog.Info("layer", "level", ls.Level, "keys", ls.Keys, "edges", ls.Edges)
	}
	return rep, nil
}

// Compact rewrites the journal to the minimal sequence of frames that
// rebuilds the current graph.
func Compact(cfg config.Config) (int, error) {
	store, stats, err := load(cfg)
	if err != nil {
		return 0, err
	}

	w, err := persistence.NewAOFWriter(cfg.Journal.Path)
	if err != nil {
		return 0, err
	}
	frames, err := persistence.Compact(w, store)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}

	slog.Info("journal compacted", "journal", cfg.Journal.Path, "frames_before", stats.Frames, "frames_after", frames)
	return frames, nil
}

// ServeMetrics exposes the Prometheus registry on addr until ctx is done.
func ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
