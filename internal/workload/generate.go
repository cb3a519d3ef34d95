// Package workload builds synthetic layered graphs to exercise a storage
// backend end to end. It assigns levels the way an HNSW index does but links
// nodes at random, since no vectors or distances are involved.
package workload

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/sanonone/smallworld/pkg/core/graph"
	"gonum.org/v1/gonum/stat/distuv"
)

// Options controls the shape of the generated graph.
type Options struct {
	Nodes     int
	MaxDegree int     // neighbors picked per node and per level
	LevelMult float64 // mL; level = floor(Exp(1) * mL)
	Seed      uint64
}

// Summary describes what Generate wrote.
type Summary struct {
	Nodes    int
	Edges    int         // directed edges issued through Connect
	PerLevel map[int]int // nodes present on each level
	TopLevel int
}

// Generator draws node levels and neighbor choices from a seeded source.
type Generator struct {
	opts   Options
	rng    *rand.Rand
	levels distuv.Exponential
}

// NewGenerator prepares a generator for opts.
func NewGenerator(opts Options) *Generator {
	src := rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)
	return &Generator{
		opts:   opts,
		rng:    rand.New(src),
		levels: distuv.Exponential{Rate: 1},
	}
}

// MaxLevel caps the drawn levels whatever LevelMult is.
const MaxLevel = 64

// Level draws the top layer of a new node by inverse transform sampling, so
// the sequence only depends on the seed.
func (g *Generator) Level() int {
	level := math.Floor(g.levels.Quantile(g.rng.Float64()) * g.opts.LevelMult)
	return int(min(level, MaxLevel))
}

// Generate inserts opts.Nodes nodes into s. Every node is registered with its
// drawn level and linked in both directions to up to MaxDegree random nodes
// already present on each of its levels. It stops with ctx.Err() when the
// context is cancelled between two nodes.
func (g *Generator) Generate(ctx context.Context, s graph.Storage[string, int]) (Summary, error) {
	sum := Summary{PerLevel: make(map[int]int)}
	var byLevel [][]string

	for i := 0; i < g.opts.Nodes; i++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		key := uuid.NewString()
		top := g.Level()
		s.Register(key, top)
		for len(byLevel) <= top {
			byLevel = append(byLevel, nil)
		}

		for level := range graph.Levels(top) {
			for _, peer := range g.pick(byLevel[level]) {
				s.Connect(key, peer, level)
				s.Connect(peer, key, level)
				sum.Edges += 2
			}
			byLevel[level] = append(byLevel[level], key)
			sum.PerLevel[level]++
		}

		sum.Nodes++
		if top > sum.TopLevel {
			sum.TopLevel = top
		}
	}
	return sum, nil
}

// pick returns up to MaxDegree distinct members of pool.
func (g *Generator) pick(pool []string) []string {
	if len(pool) <= g.opts.MaxDegree {
		return pool
	}
	chosen := make(map[int]struct{}, g.opts.MaxDegree)
	out := make([]string, 0, g.opts.MaxDegree)
	for len(out) < g.opts.MaxDegree {
		i := g.rng.IntN(len(pool))
		if _, dup := chosen[i]; dup {
			continue
		}
		chosen[i] = struct{}{}
		out = append(out, pool[i])
	}
	return out
}
