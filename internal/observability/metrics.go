package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chicago_heat"

// Metrics holds the Prometheus counters and histograms for the fetch and
// enrichment jobs.
type Metrics struct {
	// NSRDB download metrics.
	NSRDBRequests        *prometheus.CounterVec // labels: outcome={success,retry,error}
	NSRDBRequestDuration prometheus.Histogram
	NSRDBBytes           prometheus.Counter
	LocationsWritten     prometheus.Counter
	LocationsSkipped     *prometheus.CounterVec // labels: reason={exists,failed}
	FetchRunning         prometheus.Gauge

	// Enrichment metrics.
	MergeStageRows    *prometheus.HistogramVec // labels: stage
	MergeCheckFailed  *prometheus.CounterVec   // labels: stage
	MergeStageSeconds *prometheus.HistogramVec // labels: stage
	TractsPublished   prometheus.Counter
}

var rowBuckets = []float64{10, 50, 100, 250, 500, 750, 1000, 2000}

func newMetrics() *Metrics {
	return &Metrics{
		NSRDBRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nsrdb_requests_total",
			Help:      "NSRDB CSV download attempts by outcome.",
		}, []string{"outcome"}),
		NSRDBRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "nsrdb_request_duration_seconds",
			Help:      "NSRDB CSV download duration in seconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}),
		NSRDBBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nsrdb_bytes_total",
			Help:      "Bytes of CSV downloaded from NSRDB.",
		}),
		LocationsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_written_total",
			Help:      "Community-area weather files written.",
		}),
		LocationsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_skipped_total",
			Help:      "Community areas not downloaded, by reason.",
		}, []string{"reason"}),
		FetchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fetch_running",
			Help:      "1 while the NSRDB fetch is active, 0 otherwise.",
		}),
		MergeStageRows: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "merge_stage_rows",
			Help:      "Tract rows remaining after each merge stage.",
			Buckets:   rowBuckets,
		}, []string{"stage"}),
		MergeCheckFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_check_failed_total",
			Help:      "Merge stages whose row or column counts did not match expectations.",
		}, []string{"stage"}),
		MergeStageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "merge_stage_duration_seconds",
			Help:      "Duration of each merge stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"stage"}),
		TractsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracts_published_total",
			Help:      "Enriched tracts written to Kafka.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.NSRDBRequests,
		m.NSRDBRequestDuration,
		m.NSRDBBytes,
		m.LocationsWritten,
		m.LocationsSkipped,
		m.FetchRunning,
		m.MergeStageRows,
		m.MergeCheckFailed,
		m.MergeStageSeconds,
		m.TractsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
