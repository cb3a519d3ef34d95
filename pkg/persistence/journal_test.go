package persistence

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sanonone/smallworld/pkg/core/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSink collects frames in memory and can be told to fail.
type memSink struct {
	buf  bytes.Buffer
	fail error
}

func (m *memSink) Write(frame []byte) error {
	if m.fail != nil {
		return m.fail
	}
	_, err := m.buf.Write(frame)
	return err
}
func (m *memSink) Flush() error { return nil }
func (m *memSink) Sync() error { return nil }
func (m *memSink) Close() error { return nil }
func (m *memSink) Path() string { return "mem" }

// build issues the same mutations against any storage.
func build(s graph.Storage[string, int]) {
	s.Register("A", 2)
	s.Register("B", 1)
	s.Connect("A", "C", 2)
	s.Connect("A", "B", 1)
	s.Connect("B", "A", 1)
	s.Connect("B", "", 0)
	s.Disconnect("A", "B", 1)
	s.Disconnect("X", "Y", 0)
}

func assertSameGraph(t *testing.T, want, got *graph.InMemory[string, int]) {
	t.Helper()
	wantEntry, wantOK := want.Entry()
	gotEntry, gotOK := got.Entry()
	assert.Equal(t, wantOK, gotOK)
	assert.Equal(t, wantEntry, gotEntry)
	assert.Equal(t, want.Levels(), got.Levels())
	for _, level := range want.Levels() {
		assert.ElementsMatch(t, want.Keys(level), got.Keys(level), "keys on level %d", level)
		for _, k := range want.Keys(level) {
			assert.ElementsMatch(t, want.Neighborhood(k, level), got.Neighborhood(k, level), "neighbors of %q on %d", k, level)
		}
	}
}

func TestJournalReplayRebuildsGraph(t *testing.T) {
	sink := &memSink{}
	original := graph.NewInMemory[string, int]()
	j := NewJournaled[string, int](original, sink)
	build(j)
	require.NoError(t, j.Err())

	replayed := graph.NewInMemory[string, int]()
	stats, err := Replay[string, int](bytes.NewReader(sink.buf.Bytes()), replayed)
	require.NoError(t, err)

	assert.Equal(t, 8, stats.Frames)
	assert.Equal(t, 2, stats.Register)
	assert.Equal(t, 4, stats.Connect)
	assert.Equal(t, 2, stats.Disconnect)
	assert.Equal(t, int64(sink.buf.Len()), stats.Bytes)
	assert.False(t, stats.Truncated)
	assertSameGraph(t, original, replayed)
	assert.Equal(t, []string{""}, replayed.Neighborhood("B", 0), "zero value key survives the round trip")
}

func TestJournalLatchesFirstError(t *testing.T) {
	boom := errors.New("disk full")
	sink := &memSink{}
	j := NewJournaled[string, int](graph.NewInMemory[string, int](), sink)

	j.Connect("a", "b", 0)
	sink.fail = boom
	j.Connect("a", "c", 0)
	sink.fail = nil
	j.Connect("a", "d", 0)

	assert.ErrorIs(t, j.Err(), boom)
	assert.ErrorIs(t, j.Sync(), boom)
	// Memory keeps every mutation even though the journal stopped.
	assert.ElementsMatch(t, []string{"b", "c", "d"}, j.Neighborhood("a", 0))

	replayed := graph.NewInMemory[string, int]()
	_, err := Replay[string, int](bytes.NewReader(sink.buf.Bytes()), replayed)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, replayed.Neighborhood("a", 0))
}

func TestReplayToleratesTornTail(t *testing.T) {
	sink := &memSink{}
	j := NewJournaled[string, int](graph.NewInMemory[string, int](), sink)
	j.Register("a", 1)
	j.Connect("a", "b", 1)
	data := sink.buf.Bytes()

	replayed := graph.NewInMemory[string, int]()
	stats, err := Replay[string, int](bytes.NewReader(data[:len(data)-3]), replayed)
	require.NoError(t, err)
	assert.True(t, stats.Truncated)
	assert.Equal(t, 1, stats.Frames)

	entry, ok := replayed.Entry()
	require.True(t, ok)
	assert.Equal(t, "a", entry.Key)
	assert.Empty(t, replayed.Neighborhood("a", 1))
}

func TestReplayRejectsCorruption(t *testing.T) {
	sink := &memSink{}
	j := NewJournaled[string, int](graph.NewInMemory[string, int](), sink)
	j.Register("a", 1)
	j.Connect("a", "b", 1)

	data := bytes.Clone(sink.buf.Bytes())
	data[len(data)-2] ^= 0xff

	_, err := Replay[string, int](bytes.NewReader(data), graph.NewInMemory[string, int]())
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestReplayRejectsCorruptLengthMidJournal(t *testing.T) {
	sink := &memSink{}
	original := graph.NewInMemory[string, int]()
	j := NewJournaled[string, int](original, sink)
	j.Register("a", 1)
	j.Connect("a", "b", 1)
	j.Connect("a", "c", 1)
	j.Connect("b", "a", 1)
	require.NoError(t, j.Err())

	_, first, err := ReadFrame(bytes.NewReader(sink.buf.Bytes()))
	require.NoError(t, err)

	// Flipping the low bit of the length's high byte makes the second frame
	// claim 16 MiB more than it holds, which would otherwise read to EOF.
	data := bytes.Clone(sink.buf.Bytes())
	data[first+5] ^= 0x01

	stats, err := Replay[string, int](bytes.NewReader(data), graph.NewInMemory[string, int]())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFrame)
	assert.ErrorContains(t, err, fmt.Sprintf("offset %d", first))
	assert.False(t, stats.Truncated)
	assert.Equal(t, 1, stats.Frames)
}

func TestReplayTornTailBoundary(t *testing.T) {
	sink := &memSink{}
	j := NewJournaled[string, int](graph.NewInMemory[string, int](), sink)
	j.Register("a", 1)
	j.Connect("a", "b", 1)
	data := sink.buf.Bytes()

	_, first, err := ReadFrame(bytes.NewReader(data))
	require.NoError(t, err)

	tests := []struct {
		name   string
		cut    int
		frames int
	}{
		{"inside header", first + 4, 1},
		{"after header", first + HeaderSize, 1},
		{"inside payload", len(data) - 1, 1},
		{"inside first frame", 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, err := Replay[string, int](bytes.NewReader(data[:tt.cut]), graph.NewInMemory[string, int]())
			require.NoError(t, err)
			assert.True(t, stats.Truncated)
			assert.Equal(t, tt.frames, stats.Frames)
		})
	}
}

func TestJournalOrderMatchesConcurrentMutations(t *testing.T) {
	sink := &memSink{}
	original := graph.NewInMemory[string, int]()
	j := NewJournaled[string, int](original, sink)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				level := i % 3
				j.Connect("hub", "spoke", level)
				j.Disconnect("hub", "spoke", level)
				if (i+w)%2 == 0 {
					j.Connect("hub", "spoke", level)
				}
				j.Register(fmt.Sprintf("n%d-%d", w, i), i%5)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, j.Err())

	replayed := graph.NewInMemory[string, int]()
	stats, err := Replay[string, int](bytes.NewReader(sink.buf.Bytes()), replayed)
	require.NoError(t, err)
	assert.Equal(t, 8*200*2+4*200+8*200, stats.Frames)
	assertSameGraph(t, original, replayed)
}

func TestReplayRejectsUnknownOpCode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFrameWriter(&buf).WriteFrame(OpCode(0x42), []byte(`{}`)))

	_, err := Replay[string, int](&buf, graph.NewInMemory[string, int]())
	assert.ErrorIs(t, err, ErrUnknownOpCode)
}

func TestReplayFileMissingIsEmpty(t *testing.T) {
	g := graph.NewInMemory[string, int]()
	stats, err := ReplayFile[string, int](filepath.Join(t.TempDir(), "none.journal"), g)
	require.NoError(t, err)
	assert.Zero(t, stats.Frames)
	_, ok := g.Entry()
	assert.False(t, ok)
}

func TestAOFJournalAndCompact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.journal")
	w, err := NewAOFWriter(path)
	require.NoError(t, err)

	original := graph.NewInMemory[string, int]()
	j := NewJournaled[string, int](original, w)
	build(j)
	require.NoError(t, j.Sync())

	before, err := os.Stat(path)
	require.NoError(t, err)

	frames, err := Compact(w, original)
	require.NoError(t, err)
	// Entry registration plus the three edges still present.
	assert.Equal(t, 4, frames)
	require.NoError(t, w.Close())

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, after.Size(), before.Size())
	_, err = os.Stat(path + ".rewrite")
	assert.True(t, os.IsNotExist(err))

	replayed := graph.NewInMemory[string, int]()
	stats, err := ReplayFile[string, int](path, replayed)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Frames)
	assertSameGraph(t, original, replayed)
}

func TestLazyWriterFlushesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lazy.journal")
	w, err := NewAOFWriter(path)
	require.NoError(t, err)

	lazy := NewLazyAOFWriter(w, LazyConfig{FlushInterval: time.Hour, SyncInterval: time.Hour, MaxBuffered: 1000})
	original := graph.NewInMemory[string, int]()
	j := NewJournaled[string, int](original, lazy)
	build(j)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size(), "nothing reaches the file before a flush")

	require.NoError(t, lazy.Close())
	assert.ErrorIs(t, lazy.Close(), ErrWriterClosed)
	assert.ErrorIs(t, lazy.Write([]byte("x")), ErrWriterClosed)

	replayed := graph.NewInMemory[string, int]()
	_, err = ReplayFile[string, int](path, replayed)
	require.NoError(t, err)
	assertSameGraph(t, original, replayed)
}

func TestLazyWriterFlushesWhenFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "full.journal")
	w, err := NewAOFWriter(path)
	require.NoError(t, err)

	lazy := NewLazyAOFWriter(w, LazyConfig{FlushInterval: time.Hour, SyncInterval: time.Hour, MaxBuffered: 2})
	defer lazy.Close()

	j := NewJournaled[string, int](graph.NewInMemory[string, int](), lazy)
	j.Connect("a", "b", 0)
	j.Connect("b", "a", 0)

	replayed := graph.NewInMemory[string, int]()
	stats, err := ReplayFile[string, int](path, replayed)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Frames)
}

func TestCompactRemovesRewriteWhenSwapFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.journal")
	w, err := NewAOFWriter(path)
	require.NoError(t, err)

	g := graph.NewInMemory[string, int]()
	g.Register("a", 0)
	g.Connect("a", "b", 0)

	// A non-empty directory at the journal path makes the rename fail.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "keep"), nil, 0644))

	_, err = Compact(w, g)
	require.Error(t, err)
	_, err = os.Stat(path + ".rewrite")
	assert.True(t, os.IsNotExist(err), "rewrite file left behind")
}
