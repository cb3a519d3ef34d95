package persistence

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sanonone/smallworld/pkg/core/graph"
	"github.com/sanonone/smallworld/pkg/metrics"
)

// ReplayStats summarizes a replay.
type ReplayStats struct {
	Frames     int   // frames applied
	Bytes      int64 // bytes consumed, up to the end of the last good frame
	Register   int
	Connect    int
	Disconnect int
	Truncated  bool // the journal ended inside a frame
}

// Replay decodes frames from r and re-issues them against s in order.
//
// A journal that ends in the middle of a frame (a torn write) is accepted:
// replay stops before the partial frame and sets Truncated. Any other
// corruption, including a header declaring more than MaxPayloadSize bytes,
// aborts with an error naming the offset of the bad frame.
func Replay[K comparable, L graph.Level](r io.Reader, s graph.Storage[K, L]) (ReplayStats, error) {
	var stats ReplayStats
	br := bufio.NewReader(r)

	for {
		frame, n, err := ReadFrame(br)
		if err == io.EOF {
			return stats, nil
		}
		if errors.Is(err, ErrIncompleteFrame) {
			slog.Warn("journal ends with a partial frame, ignoring tail", "offset", stats.Bytes)
			stats.Truncated = true
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("frame at offset %d: %w", stats.Bytes, err)
		}

		if err := apply(frame, s, &stats); err != nil {
			return stats, fmt.Errorf("frame at offset %d: %w", stats.Bytes, err)
		}
		stats.Frames++
		stats.Bytes += int64(n)
		metrics.JournalFramesTotal.WithLabelValues("replay").Inc()
	}
}

func apply[K comparable, L graph.Level](frame Frame, s graph.Storage[K, L], stats *ReplayStats) error {
	var rec record[K, L]
	switch frame.Op {
	case OpRegister, OpConnect, OpDisconnect:
	default:
		return fmt.Errorf("%w: 0x%02x", ErrUnknownOpCode, byte(frame.Op))
	}
	if err := json.Unmarshal(frame.Payload, &rec); err != nil {
		return fmt.Errorf("decode %s record: %w", frame.Op, err)
	}

	switch frame.Op {
	case OpRegister:
		s.Register(rec.Lhs, rec.Level)
		stats.Register++
	case OpConnect:
		s.Connect(rec.Lhs, rec.Rhs, rec.Level)
		stats.Connect++
	case OpDisconnect:
		s.Disconnect(rec.Lhs, rec.Rhs, rec.Level)
		stats.Disconnect++
	}
	return nil
}

// ReplayFile replays the journal at path into s. A missing file is an empty
// journal.
func ReplayFile[K comparable, L graph.Level](path string, s graph.Storage[K, L]) (ReplayStats, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return ReplayStats{}, nil
	}
	if err != nil {
		return ReplayStats{}, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	stats, err := Replay(f, s)
	if err != nil {
		return stats, fmt.Errorf("replay %s: %w", path, err)
	}
	return stats, nil
}
