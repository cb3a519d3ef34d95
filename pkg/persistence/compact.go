package persistence

import (
	"bufio"
	"fmt"
	"os"

	"github.com/sanonone/smallworld/pkg/core/graph"
)

// WriteSnapshot writes the minimal journal that rebuilds g: the entry point
// registration followed by one connect frame per stored edge. Registrations
// that never became the entry and edges that were later removed are dropped.
func WriteSnapshot[K comparable, L graph.Level](path string, g *graph.InMemory[K, L]) (frames int, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create snapshot: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	write := func(op OpCode, rec record[K, L]) error {
		frame, err := encodeFrame(op, rec)
		if err != nil {
			return err
		}
		if _, err := w.Write(frame); err != nil {
			return err
		}
		frames++
		return nil
	}

	if entry, ok := g.Entry(); ok {
		if err := write(OpRegister, record[K, L]{Lhs: entry.Key, Level: entry.Level}); err != nil {
			return frames, err
		}
	}
	g.Edges(func(lhs, rhs K, level L) bool {
		err = write(OpConnect, record[K, L]{Lhs: lhs, Rhs: rhs, Level: level})
		return err == nil
	})
	if err != nil {
		return frames, err
	}

	if err := w.Flush(); err != nil {
		return frames, err
	}
	return frames, f.Sync()
}

// Compact rewrites the journal behind w so that it only holds the current
// state of g, then swaps it in atomically.
func Compact[K comparable, L graph.Level](w *AOFWriter, g *graph.InMemory[K, L]) (int, error) {
	tmp := w.Path() + ".rewrite"
	frames, err := WriteSnapshot(tmp, g)
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := w.ReplaceWith(tmp); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return frames, nil
}
