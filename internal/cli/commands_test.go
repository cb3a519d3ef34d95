package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sanonone/smallworld/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, lazy bool) config.Config {
	cfg := config.DefaultConfig()
	cfg.Journal.Path = filepath.Join(t.TempDir(), "graph.journal")
	cfg.Journal.Lazy = lazy
	cfg.Generate.Nodes = 200
	cfg.Generate.MaxDegree = 3
	return cfg
}

func TestGenerateInspectCompact(t *testing.T) {
	for _, lazy := range []bool{false, true} {
		cfg := testConfig(t, lazy)

		sum, err := Generate(context.Background(), cfg)
		require.NoError(t, err)

		rep, err := Inspect(cfg)
		require.NoError(t, err)
		require.False(t, rep.Empty)
		assert.False(t, rep.Replay.Truncated)
		assert.Equal(t, sum.TopLevel, rep.Entry.Level)
		require.Len(t, rep.Levels, sum.TopLevel+1)
		assert.Equal(t, sum.TopLevel, rep.Levels[0].Level, "layers are listed top first")

		base := rep.Levels[len(rep.Levels)-1]
		assert.Equal(t, 0, base.Level)
		assert.Equal(t, 200, base.Keys)

		edges := 0
		for _, ls := range rep.Levels {
			edges += ls.Edges
		}
		assert.Equal(t, sum.Edges, edges)

		frames, err := Compact(cfg)
		require.NoError(t, err)
		assert.Equal(t, sum.Edges+1, frames)

		after, err := Inspect(cfg)
		require.NoError(t, err)
		assert.Equal(t, rep.Entry, after.Entry)
		assert.Equal(t, rep.Levels, after.Levels)
		assert.Equal(t, frames, after.Replay.Frames)
	}
}

func TestInspectMissingJournal(t *testing.T) {
	cfg := testConfig(t, false)
	rep, err := Inspect(cfg)
	require.NoError(t, err)
	assert.True(t, rep.Empty)
	assert.Empty(t, rep.Levels)
}
