package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Global graph storage metrics. 'promauto' registers them with the default
// registry on package init.
// Every series carries a "storage" label naming the instrumented backend.

var (
	// GraphOperationsTotal counts storage calls, labeled by operation
	// (register, connect, disconnect, neighborhood).
	GraphOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smallworld_graph_operations_total",
			Help: "Total number of graph storage operations",
		},
		[]string{"storage", "op"},
	)

	// GraphEntryPromotionsTotal counts registrations that moved the entry point.
	GraphEntryPromotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smallworld_graph_entry_promotions_total",
			Help: "Number of registrations that replaced the entry point",
		},
		[]string{"storage"},
	)

	// GraphEntryLevel tracks the layer of the current entry point.
	GraphEntryLevel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smallworld_graph_entry_level",
			Help: "Top layer of the current entry point",
		},
		[]string{"storage"},
	)

	// GraphNeighborhoodSize observes how many neighbors a lookup returned.
	// Buckets follow the usual HNSW degree bounds (M = 16, Mmax0 = 32).
	GraphNeighborhoodSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smallworld_graph_neighborhood_size",
			Help:    "Number of neighbors returned per neighborhood lookup",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 128},
		},
		[]string{"storage"},
	)

	// JournalFramesTotal counts frames written to or replayed from a journal,
	// labeled by direction ("write", "replay").
	JournalFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smallworld_journal_frames_total",
			Help: "Number of journal frames written or replayed",
		},
		[]string{"direction"},
	)
)

// Operation label values.
const (
	OpRegister     = "register"
	OpConnect      = "connect"
	OpDisconnect   = "disconnect"
	OpNeighborhood = "neighborhood"
)
