package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Mirror
	SnapshotsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_mirror_snapshots_total",
		Help: "The total number of snapshots applied by collection mirrors",
	}, []string{"collection"})

	SnapshotItems = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "atelier_mirror_snapshot_items",
		Help: "The number of items in the current snapshot of a collection mirror",
	}, []string{"collection"})

	SyncErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_mirror_sync_errors_total",
		Help: "The total number of subscription errors reported to collection mirrors",
	}, []string{"collection"})

	Degraded = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "atelier_mirror_degraded",
		Help: "1 while a collection mirror serves its last good snapshot after an error",
	}, []string{"collection"})

	ScopeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_mirror_scope_errors_total",
		Help: "The total number of documents excluded because the view scope failed to evaluate",
	}, []string{"collection"})

	// Presenter
	Recomputations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_presenter_recomputations_total",
		Help: "The total number of visible result recomputations",
	}, []string{"view", "trigger"})

	ComputeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atelier_presenter_compute_seconds",
		Help:    "The latency of a visible result computation",
		Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
	}, []string{"view"})

	ActiveViews = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "atelier_presenter_active",
		Help: "The number of open presenters",
	}, []string{"view"})
)

func init() {
	prometheus.MustRegister(SnapshotsReceived)
	prometheus.MustRegister(SnapshotItems)
	prometheus.MustRegister(SyncErrors)
	prometheus.MustRegister(Degraded)
	prometheus.MustRegister(ScopeErrors)
	prometheus.MustRegister(Recomputations)
	prometheus.MustRegister(ComputeLatency)
	prometheus.MustRegister(ActiveViews)
}
