package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrWriterClosed is returned when writing to a closed LazyAOFWriter.
var ErrWriterClosed = errors.New("journal writer is closed")

// LazyAOFWriter batches journal frames in memory and hands them to an
// AOFWriter periodically or when the batch is full.
//
// Durability: frames reach the OS every FlushInterval and disk every
// SyncInterval. A crash can lose up to SyncInterval worth of mutations;
// Close flushes and syncs everything still pending.
type LazyAOFWriter struct {
	underlying *AOFWriter

	mu      sync.Mutex
	buffer  [][]byte
	stopped bool

	flushTicker *time.Ticker
	syncTicker  *time.Ticker
	stopCh      chan struct{}
	done        sync.WaitGroup

	cfg LazyConfig
}

// LazyConfig tunes the durability/throughput trade-off of a LazyAOFWriter.
type LazyConfig struct {
	FlushInterval time.Duration // how often the batch is written to the OS
	SyncInterval  time.Duration // how often the file is fsynced
	MaxBuffered   int           // batch size that triggers an immediate flush
}

// DefaultLazyConfig flushes every 100ms, syncs every second and never holds
// more than 1000 frames.
func DefaultLazyConfig() LazyConfig {
	return LazyConfig{
		FlushInterval: 100 * time.Millisecond,
		SyncInterval:  time.Second,
		MaxBuffered:   1000,
	}
}

// NewLazyAOFWriter wraps underlying and starts the background flush and sync
// loops. underlying must not be used directly afterwards. Zero fields of cfg
// take their DefaultLazyConfig value.
func NewLazyAOFWriter(underlying *AOFWriter, cfg LazyConfig) *LazyAOFWriter {
	def := DefaultLazyConfig()
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = def.SyncInterval
	}
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = def.MaxBuffered
	}

	lw := &LazyAOFWriter{
		underlying:  underlying,
		buffer:      make([][]byte, 0, cfg.MaxBuffered),
		flushTicker: time.NewTicker(cfg.FlushInterval),
		syncTicker:  time.NewTicker(cfg.SyncInterval),
		stopCh:      make(chan struct{}),
		cfg:         cfg,
	}

	lw.done.Add(1)
	go lw.loop()

	slog.Info("lazy journal writer initialized",
		"path", underlying.Path(),
		"flush_interval", cfg.FlushInterval,
		"sync_interval", cfg.SyncInterval,
		"max_buffered", cfg.MaxBuffered,
	)
	return lw
}

// Write queues one frame. The batch is flushed inline once it is full.
func (lw *LazyAOFWriter) Write(frame []byte) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if lw.stopped {
		return ErrWriterClosed
	}
	lw.buffer = append(lw.buffer, frame)
	if len(lw.buffer) >= lw.cfg.MaxBuffered {
		return lw.flushLocked()
	}
	return nil
}

// Flush writes every queued frame to the OS.
func (lw *LazyAOFWriter) Flush() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.flushLocked()
}

func (lw *LazyAOFWriter) flushLocked() error {
	if len(lw.buffer) == 0 {
		return nil
	}
	for _, frame := range lw.buffer {
		if err := lw.underlying.Write(frame); err != nil {
			return fmt.Errorf("failed to write journal frame: %w", err)
		}
	}
	if err := lw.underlying.Flush(); err != nil {
		return fmt.Errorf("failed to flush journal: %w", err)
	}
	clear(lw.buffer)
	lw.buffer = lw.buffer[:0]
	return nil
}

// Sync flushes the batch and fsyncs the file.
func (lw *LazyAOFWriter) Sync() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if err := lw.flushLocked(); err != nil {
		return err
	}
	return lw.underlying.Sync()
}

// Close stops the background loop, drains the batch and closes the file.
func (lw *LazyAOFWriter) Close() error {
	lw.mu.Lock()
	if lw.stopped {
		lw.mu.Unlock()
		return ErrWriterClosed
	}
	lw.stopped = true
	lw.mu.Unlock()

	close(lw.stopCh)
	lw.done.Wait()
	lw.flushTicker.Stop()
	lw.syncTicker.Stop()

	lw.mu.Lock()
	defer lw.mu.Unlock()

	if err := lw.flushLocked(); err != nil {
		slog.Error("failed to flush journal during close", "error", err)
	}
	if err := lw.underlying.Sync(); err != nil {
		slog.Error("failed to sync journal during close", "error", err)
	}
	return lw.underlying.Close()
}

// Path returns the file path of the underlying writer.
func (lw *LazyAOFWriter) Path() string {
	return lw.underlying.Path()
}

func (lw *LazyAOFWriter) loop() {
	defer lw.done.Done()
	for {
		select {
		case <-lw.flushTicker.C:
			if err := lw.Flush(); err != nil {
				slog.Error("periodic journal flush failed", "error", err)
			}
		case <-lw.syncTicker.C:
			if err := lw.Sync(); err != nil {
				slog.Error("periodic journal sync failed", "error", err)
			}
		case <-lw.stopCh:
			return
		}
	}
}
