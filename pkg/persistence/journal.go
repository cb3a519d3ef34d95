package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sanonone/smallworld/pkg/core/graph"
	"github.com/sanonone/smallworld/pkg/metrics"
)

// record is the JSON payload of every frame. Rhs is unused by OpRegister.
type record[K comparable, L graph.Level] struct {
	Lhs   K `json:"l"`
	Rhs   K `json:"r,omitempty"`
	Level L `json:"v"`
}

func encodeFrame[K comparable, L graph.Level](op OpCode, rec record[K, L]) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s record: %w", op, err)
	}
	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(payload))
	if err := NewFrameWriter(&buf).WriteFrame(op, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Journaled is a graph.Storage that applies every mutation to an inner
// storage and appends it to a journal sink.
//
// The storage contract has no error returns, so the first failure to encode
// or write a frame is latched and reported by Err. Mutations keep being
// applied in memory after a failure but are no longer journaled.
//
// Mutations are serialized: each one is applied and appended under the same
// lock, so the journal order is the order the inner storage saw. Reads go
// straight to the inner storage; callers mixing reads with concurrent
// mutations wrap the result with graph.NewSynchronized.
type Journaled[K comparable, L graph.Level] struct {
	inner graph.Storage[K, L]
	sink  Sink

	mu  sync.Mutex
	err error
}

// NewJournaled wraps inner, appending its mutations to sink.
func NewJournaled[K comparable, L graph.Level](inner graph.Storage[K, L], sink Sink) *Journaled[K, L] {
	return &Journaled[K, L]{inner: inner, sink: sink}
}

func (j *Journaled[K, L]) Entry() (graph.Entry[K, L], bool) {
	return j.inner.Entry()
}

func (j *Journaled[K, L]) Register(key K, level L) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.inner.Register(key, level)
	j.append(OpRegister, record[K, L]{Lhs: key, Level: level})
}

func (j *Journaled[K, L]) Connect(lhs, rhs K, level L) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.inner.Connect(lhs, rhs, level)
	j.append(OpConnect, record[K, L]{Lhs: lhs, Rhs: rhs, Level: level})
}

func (j *Journaled[K, L]) Disconnect(lhs, rhs K, level L) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.inner.Disconnect(lhs, rhs, level)
	j.append(OpDisconnect, record[K, L]{Lhs: lhs, Rhs: rhs, Level: level})
}

func (j *Journaled[K, L]) Neighborhood(key K, level L) []K {
	return j.inner.Neighborhood(key, level)
}

// Err returns the first journaling failure, if any.
func (j *Journaled[K, L]) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Sync flushes the sink to disk and returns the latched error if there is one.
func (j *Journaled[K, L]) Sync() error {
	if err := j.Err(); err != nil {
		return err
	}
	return j.sink.Sync()
}

// append must be called with j.mu held.
func (j *Journaled[K, L]) append(op OpCode, rec record[K, L]) {
	if j.err != nil {
		return
	}
	frame, err := encodeFrame(op, rec)
	if err == nil {
		err = j.sink.Write(frame)
	}
	if err != nil {
		j.err = fmt.Errorf("journal %s: %w", j.sink.Path(), err)
		return
	}
	metrics.JournalFramesTotal.WithLabelValues("write").Inc()
}
