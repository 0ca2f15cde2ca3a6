package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CyclesTotal counts completed evaluation cycles by outcome (ok/failed)
var CyclesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "riskd_evaluation_cycles_total",
		Help: "Total number of evaluation cycles by outcome",
	},
	[]string{"outcome"},
)

// CycleDuration records latency distribution for full evaluation cycles
var CycleDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "riskd_evaluation_cycle_duration_seconds",
		Help:    "Latency in seconds of one full evaluation cycle",
		Buckets: prometheus.DefBuckets,
	},
)

// EntitiesSkipped counts entities excluded from a cycle by reason
var EntitiesSkipped = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "riskd_entities_skipped_total",
		Help: "Entities excluded from scoring by reason",
	},
	[]string{"reason"},
)

// PropagationIterations tracks how many diffusion iterations each cycle ran
var PropagationIterations = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "riskd_contagion_iterations",
		Help:    "Diffusion iterations per propagation run",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	},
)

// Feed and queue metrics
var (
	FeedFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskd_feed_fallbacks_total",
			Help: "Times a feed fell back to the last-known-good snapshot",
		},
		[]string{"feed"},
	)

	ActionEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskd_action_entries_total",
			Help: "Action queue entries created, by tier",
		},
		[]string{"tier"},
	)

	WSClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskd_ws_clients",
			Help: "Connected websocket score subscribers",
		},
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal, CycleDuration, EntitiesSkipped)
	prometheus.MustRegister(PropagationIterations, FeedFallbacks, ActionEntries, WSClients)
}
