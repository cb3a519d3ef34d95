// Package graph provides the storage layer of a layered proximity graph, the
// structure behind Hierarchical Navigable Small World (HNSW) indexes.
//
// The package only stores the graph: which node is the entry point and which
// directed edges exist on every layer. Distance computation, neighbor
// selection heuristics and search live in the index built on top of a Storage.
package graph

// Level is the set of types usable as a layer number. Layer 0 is the base
// layer and higher numbers are sparser layers closer to the entry point.
type Level interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Entry is the node a top-down traversal starts from, together with the
// highest layer it was registered on.
type Entry[K comparable, L Level] struct {
	Key   K
	Level L
}

// Storage is the capability set an index needs from a graph backend.
//
// Edges are directed. An undirected link is two Connect calls, one per
// direction. No operation fails: missing data is reported as an empty result.
type Storage[K comparable, L Level] interface {
	// Entry returns the current entry point. ok is false until the first
	// Register call.
	Entry() (entry Entry[K, L], ok bool)

	// Register records that key was inserted with level as its top layer.
	// The entry point moves to key only when level is strictly higher than
	// the current entry level, so on ties the first registered key stays.
	Register(key K, level L)

	// Connect adds the edge lhs -> rhs on level. Adding an existing edge is a no-op.
	Connect(lhs, rhs K, level L)

	// Disconnect removes the edge lhs -> rhs on level if it exists.
	Disconnect(lhs, rhs K, level L)

	// Neighborhood returns the keys key points to on level, in no
	// particular order. The returned slice is owned by the caller.
	Neighborhood(key K, level L) []K
}

// entryPoint implements the Register/Entry half of Storage and is embedded
// by the backends of this package.
type entryPoint[K comparable, L Level] struct {
	entry Entry[K, L]
	set   bool
}

func (e *entryPoint[K, L]) Entry() (Entry[K, L], bool) {
	return e.entry, e.set
}

func (e *entryPoint[K, L]) Register(key K, level L) {
	if e.set && level <= e.entry.Level {
		return
	}
	e.entry = Entry[K, L]{Key: key, Level: level}
	e.set = true
}

// entryAt returns the entry key when the entry point sits exactly on level.
func (e *entryPoint[K, L]) entryAt(level L) (K, bool) {
	if e.set && e.entry.Level == level {
		return e.entry.Key, true
	}
	var zero K
	return zero, false
}
