package graph

import "iter"

// Cursor is an optional layer number used to walk a graph from its top layer
// down to layer 0. The zero Cursor is exhausted.
type Cursor[L Level] struct {
	level L
	valid bool
}

// Top returns a cursor positioned on level.
func Top[L Level](level L) Cursor[L] {
	return Cursor[L]{level: level, valid: true}
}

// Exhausted reports whether the cursor already went past layer 0.
func (c Cursor[L]) Exhausted() bool {
	return !c.valid
}

// Descend returns the layer the cursor points at and moves it one layer down.
// After layer 0 has been returned the cursor is exhausted and every further
// call returns ok == false.
func Descend[L Level](c *Cursor[L]) (level L, ok bool) {
	if !c.valid {
		return level, false
	}
	level = c.level
	if level <= 0 {
		// Past the base layer; an unsigned L cannot represent -1.
		c.valid = false
		var zero L
		c.level = zero
	} else {
		c.level--
	}
	return level, true
}

// Descend is the method form of the package level Descend.
func (c *Cursor[L]) Descend() (L, bool) {
	return Descend(c)
}

// Levels yields top, top-1, ..., 0.
func Levels[L Level](top L) iter.Seq[L] {
	return func(yield func(L) bool) {
		c := Top(top)
		for {
			level, ok := c.Descend()
			if !ok || !yield(level) {
				return
			}
		}
	}
}

// Walk calls fn for every layer from the entry level of s down to layer 0.
// It stops early when fn returns false and does nothing on an empty storage.
func Walk[K comparable, L Level](s Storage[K, L], fn func(entry Entry[K, L], level L) bool) {
	entry, ok := s.Entry()
	if !ok {
		return
	}
	for level := range Levels(entry.Level) {
		if !fn(entry, level) {
			return
		}
	}
}
