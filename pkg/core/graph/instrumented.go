package graph

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sanonone/smallworld/pkg/metrics"
)

// Instrumented forwards every call to an inner Storage and records Prometheus
// metrics for it under the given storage name.
type Instrumented[K comparable, L Level] struct {
	inner Storage[K, L]
	name  string

	register     prometheus.Counter
	connect      prometheus.Counter
	disconnect   prometheus.Counter
	neighborhood prometheus.Counter
	promotions   prometheus.Counter
	entryLevel   prometheus.Gauge
	sizes        prometheus.Observer
}

// NewInstrumented wraps inner. name becomes the "storage" label value.
func NewInstrumented[K comparable, L Level](name string, inner Storage[K, L]) *Instrumented[K, L] {
	ops := metrics.GraphOperationsTotal
	return &Instrumented[K, L]{
		inner:        inner,
		name:         name,
		register:     ops.WithLabelValues(name, metrics.OpRegister),
		connect:      ops.WithLabelValues(name, metrics.OpConnect),
		disconnect:   ops.WithLabelValues(name, metrics.OpDisconnect),
		neighborhood: ops.WithLabelValues(name, metrics.OpNeighborhood),
		promotions:   metrics.GraphEntryPromotionsTotal.WithLabelValues(name),
		entryLevel:   metrics.GraphEntryLevel.WithLabelValues(name),
		sizes:        metrics.GraphNeighborhoodSize.WithLabelValues(name),
	}
}

func (s *Instrumented[K, L]) Entry() (Entry[K, L], bool) {
	return s.inner.Entry()
}

func (s *Instrumented[K, L]) Register(key K, level L) {
	s.register.Inc()
	before, had := s.inner.Entry()
	s.inner.Register(key, level)
	after, ok := s.inner.Entry()
	if !ok || (had && before.Key == after.Key && before.Level == after.Level) {
		return
	}
	s.promotions.Inc()
	s.entryLevel.Set(float64(after.Level))
	slog.Debug("graph entry point promoted",
		"storage", s.name,
		"key", after.Key,
		"level", after.Level,
	)
}

func (s *Instrumented[K, L]) Connect(lhs, rhs K, level L) {
	s.connect.Inc()
	s.inner.Connect(lhs, rhs, level)
}

func (s *Instrumented[K, L]) Disconnect(lhs, rhs K, level L) {
	s.disconnect.Inc()
	s.inner.Disconnect(lhs, rhs, level)
}

func (s *Instrumented[K, L]) Neighborhood(key K, level L) []K {
	s.neighborhood.Inc()
	neighbors := s.inner.Neighborhood(key, level)
	s.sizes.Observe(float64(len(neighbors)))
	return neighbors
}
