// Package telemetry exposes Prometheus metrics for the sync engine.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SyncCycles counts completed sync loop iterations, including
	// skipped ones.
	SyncCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twind_sync_cycles_total",
		Help: "Completed sync loop iterations.",
	})

	// FetchFailures counts background fetch attempts that produced no
	// usable snapshot.
	FetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twind_fetch_failures_total",
		Help: "Background snapshot fetches that failed or were rejected.",
	})

	// ItemsApplied counts successfully reconciled delta items by kind.
	ItemsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twind_items_applied_total",
		Help: "Reconciled delta items by kind.",
	}, []string{"kind"})

	// ItemFailures counts delta items whose application failed.
	ItemFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twind_item_failures_total",
		Help: "Delta items that failed to apply.",
	})

	// UnsupportedChanges counts detected changes the environment cannot
	// apply (switch-set changes, fabricated links).
	UnsupportedChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twind_unsupported_changes_total",
		Help: "Detected topology changes outside the twin's capabilities.",
	})

	// LastAppliedVersion tracks the snapshot version the twin last
	// reconciled to.
	LastAppliedVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "twind_last_applied_version",
		Help: "Producer snapshot version the twin last applied.",
	})
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
