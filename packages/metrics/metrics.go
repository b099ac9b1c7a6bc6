// Package metrics
package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blocklist_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_name"},
	)
	PagesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blocklist_pages_fetched_total",
			Help: "Aggregator page loads, labeled by outcome.",
		},
		[]string{"outcome"},
	)
	CandidatesResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blocklist_candidates_total",
			Help: "Candidate links by final resolution state and method.",
		},
		[]string{"state", "method"},
	)
	Verdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blocklist_verdicts_total",
			Help: "Classifier verdicts, labeled by reason and whether the domain was accepted.",
		},
		[]string{"reason", "accepted"},
	)
	NavigationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blocklist_navigation_duration_seconds",
			Help:    "Duration of redirect navigations in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 15, 30},
		},
		[]string{"result"},
	)
	RegistryDomains = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blocklist_registry_domains",
			Help: "Domains in the registry at the end of the run, by provenance.",
		},
		[]string{"provenance"},
	)
	SourcesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blocklist_sources_total",
			Help: "Aggregator sources processed, labeled by outcome.",
		},
		[]string{"outcome"},
	)
	LastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "blocklist_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		},
	)
)

func init() {
	prometheus.MustRegister(DBQueryDuration)
	prometheus.MustRegister(PagesFetched)
	prometheus.MustRegister(CandidatesResolved)
	prometheus.MustRegister(Verdicts)
	prometheus.MustRegister(NavigationDuration)
	prometheus.MustRegister(RegistryDomains)
	prometheus.MustRegister(SourcesProcessed)
	prometheus.MustRegister(LastRunTimestamp)
}

func ObserveNavigation(start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	NavigationDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

// WriteTextfile dumps the default registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

func ExposeMetrics(addr string) {
	slog.Info("Exposing Prometheus metrics", "address", addr)
	http.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("Failed to start Prometheus metrics server", "error", err)
	}
}
