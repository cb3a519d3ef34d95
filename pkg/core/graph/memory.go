package graph

import (
	"maps"
	"slices"
)

// InMemory is the reference Storage backend. Adjacency is kept as
// level -> key -> set of keys, all hash based.
//
// InMemory is not safe for concurrent use; wrap it with NewSynchronized when
// several goroutines build the graph.
type InMemory[K comparable, L Level] struct {
	entryPoint[K, L]
	connections map[L]map[K]map[K]struct{}
}

// NewInMemory creates an empty in-memory graph.
func NewInMemory[K comparable, L Level]() *InMemory[K, L] {
	return &InMemory[K, L]{
		connections: make(map[L]map[K]map[K]struct{}),
	}
}

// Connect adds lhs -> rhs on level. Maps are created on first use.
func (g *InMemory[K, L]) Connect(lhs, rhs K, level L) {
	layer, ok := g.connections[level]
	if !ok {
		layer = make(map[K]map[K]struct{})
		g.connections[level] = layer
	}
	out, ok := layer[lhs]
	if !ok {
		out = make(map[K]struct{})
		layer[lhs] = out
	}
	out[rhs] = struct{}{}
}

// Disconnect removes lhs -> rhs on level. An emptied neighbor set is dropped,
// and so is an emptied layer, so Keys only reports nodes that still have edges.
func (g *InMemory[K, L]) Disconnect(lhs, rhs K, level L) {
	layer, ok := g.connections[level]
	if !ok {
		return
	}
	out, ok := layer[lhs]
	if !ok {
		return
	}
	delete(out, rhs)
	if len(out) == 0 {
		delete(layer, lhs)
	}
	if len(layer) == 0 {
		delete(g.connections, level)
	}
}

// Neighborhood returns a copy of the keys key points to on level.
func (g *InMemory[K, L]) Neighborhood(key K, level L) []K {
	out := g.connections[level][key]
	neighbors := make([]K, 0, len(out))
	for k := range out {
		neighbors = append(neighbors, k)
	}
	return neighbors
}

// Degree returns the number of outgoing edges of key on level.
func (g *InMemory[K, L]) Degree(key K, level L) int {
	return len(g.connections[level][key])
}

// Keys returns every key with at least one outgoing edge on level, plus the
// entry point when it sits on that level. The entry is included even without
// edges so a freshly registered top node can be found by enumeration.
func (g *InMemory[K, L]) Keys(level L) []K {
	layer := g.connections[level]
	keys := make([]K, 0, len(layer)+1)
	for k := range layer {
		keys = append(keys, k)
	}
	if key, ok := g.entryAt(level); ok {
		if _, dup := layer[key]; !dup {
			keys = append(keys, key)
		}
	}
	return keys
}

// Levels returns, in ascending order, every level holding at least one edge
// together with the entry level.
func (g *InMemory[K, L]) Levels() []L {
	levels := slices.Collect(maps.Keys(g.connections))
	if g.set {
		if _, ok := g.connections[g.entry.Level]; !ok {
			levels = append(levels, g.entry.Level)
		}
	}
	slices.Sort(levels)
	return levels
}

// EdgeCount returns the number of directed edges stored on level.
func (g *InMemory[K, L]) EdgeCount(level L) int {
	n := 0
	for _, out := range g.connections[level] {
		n += len(out)
	}
	return n
}

// Edges calls fn for every stored edge. Iteration order is unspecified and
// stops when fn returns false. The graph must not be modified from fn.
func (g *InMemory[K, L]) Edges(fn func(lhs, rhs K, level L) bool) {
	for level, layer := range g.connections {
		for lhs, out := range layer {
			for rhs := range out {
				if !fn(lhs, rhs, level) {
					return
				}
			}
		}
	}
}
