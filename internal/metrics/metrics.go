// Package metrics holds the Prometheus collectors for autorevoke.
//
// Collectors are registered on Registry rather than the global default
// registry so tests and embedders can inspect them without collisions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registry every autorevoke collector is registered on.
var Registry = prometheus.NewRegistry()

var (
	// CellUpdatesTotal counts update requests per reactive cell.
	CellUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autorevoke_cell_updates_total",
		Help: "Update requests received by a reactive cell.",
	}, []string{"cell"})

	// CellCancelledTotal counts loads that were superseded before they could post.
	CellCancelledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autorevoke_cell_cancelled_total",
		Help: "Loads discarded because a newer update superseded them.",
	}, []string{"cell"})

	// CellSkippedTotal counts loads that declined to post because inputs were not ready.
	CellSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autorevoke_cell_skipped_total",
		Help: "Loads that posted nothing because a dependency was not ready.",
	}, []string{"cell"})

	// CellErrorsTotal counts failed loads.
	CellErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autorevoke_cell_errors_total",
		Help: "Loads that failed; the previous value was kept.",
	}, []string{"cell"})

	// CellPostsTotal counts values committed to a cell.
	CellPostsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autorevoke_cell_posts_total",
		Help: "Values committed to a reactive cell.",
	}, []string{"cell"})

	// PackageBroadcastsTotal counts package change broadcasts dispatched.
	PackageBroadcastsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autorevoke_package_broadcasts_total",
		Help: "Package installed/removed/updated broadcasts dispatched to listeners.",
	})

	// UnusedApps reports the size of each bucket in the last categorization.
	UnusedApps = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "autorevoke_unused_apps",
		Help: "Auto-revoked apps in each unused bucket.",
	}, []string{"bucket"})
)

func init() {
	Registry.MustRegister(
		CellUpdatesTotal,
		CellCancelledTotal,
		CellSkippedTotal,
		CellErrorsTotal,
		CellPostsTotal,
		PackageBroadcastsTotal,
		UnusedApps,
	)
}

// Handler serves the collectors on Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
