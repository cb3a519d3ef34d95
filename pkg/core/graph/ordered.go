package graph

import (
	"cmp"

	"github.com/tidwall/btree"
)

// Pivot kinds used to start range scans. A floor item sorts before every real
// edge sharing its prefix, whatever the minimum value of K is.
const (
	edgeItem uint8 = iota
	levelFloor
	keyFloor
)

type edge[K cmp.Ordered, L Level] struct {
	level L
	from  K
	to    K
	floor uint8
}

func edgeLess[K cmp.Ordered, L Level](a, b edge[K, L]) bool {
	if a.level != b.level {
		return a.level < b.level
	}
	if a.floor == levelFloor || b.floor == levelFloor {
		return a.floor == levelFloor && b.floor != levelFloor
	}
	if a.from != b.from {
		return a.from < b.from
	}
	if a.floor == keyFloor || b.floor == keyFloor {
		return a.floor == keyFloor && b.floor != keyFloor
	}
	return a.to < b.to
}

// Ordered is a Storage backend that keeps every edge in a single B-tree
// keyed by the (level, from, to) composite. It trades the O(1) lookups of
// InMemory for locality: a neighborhood or a whole layer is one range scan,
// and results come out sorted.
//
// Ordered is not safe for concurrent use.
type Ordered[K cmp.Ordered, L Level] struct {
	entryPoint[K, L]
	edges *btree.BTreeG[edge[K, L]]
}

// NewOrdered creates an empty B-tree backed graph.
func NewOrdered[K cmp.Ordered, L Level]() *Ordered[K, L] {
	return &Ordered[K, L]{
		edges: btree.NewBTreeGOptions(edgeLess[K, L], btree.Options{NoLocks: true}),
	}
}

func (g *Ordered[K, L]) Connect(lhs, rhs K, level L) {
	g.edges.Set(edge[K, L]{level: level, from: lhs, to: rhs})
}

func (g *Ordered[K, L]) Disconnect(lhs, rhs K, level L) {
	g.edges.Delete(edge[K, L]{level: level, from: lhs, to: rhs})
}

func (g *Ordered[K, L]) Neighborhood(key K, level L) []K {
	var neighbors []K
	g.edges.Ascend(edge[K, L]{level: level, from: key, floor: keyFloor}, func(e edge[K, L]) bool {
		if e.level != level || e.from != key {
			return false
		}
		neighbors = append(neighbors, e.to)
		return true
	})
	if neighbors == nil {
		neighbors = []K{}
	}
	return neighbors
}

// Keys returns the keys with outgoing edges on level in ascending order,
// followed by the entry point if it sits on level and has no edges there.
func (g *Ordered[K, L]) Keys(level L) []K {
	var keys []K
	g.edges.Ascend(edge[K, L]{level: level, floor: levelFloor}, func(e edge[K, L]) bool {
		if e.level != level {
			return false
		}
		if n := len(keys); n == 0 || keys[n-1] != e.from {
			keys = append(keys, e.from)
		}
		return true
	})
	if key, ok := g.entryAt(level); ok && g.Degree(key, level) == 0 {
		keys = append(keys, key)
	}
	if keys == nil {
		keys = []K{}
	}
	return keys
}

// Degree returns the number of outgoing edges of key on level.
func (g *Ordered[K, L]) Degree(key K, level L) int {
	n := 0
	g.edges.Ascend(edge[K, L]{level: level, from: key, floor: keyFloor}, func(e edge[K, L]) bool {
		if e.level != level || e.from != key {
			return false
		}
		n++
		return true
	})
	return n
}

// Len returns the number of directed edges stored across all levels.
func (g *Ordered[K, L]) Len() int {
	return g.edges.Len()
}
