// Package metrics exposes the engine's health gauges and scan counters
// on a local-only Prometheus endpoint. Grounded on the monitoring
// dependency jhkimqd-chaos-utils pulls in for its own health checks
// (pkg/monitoring/prometheus); that repo queries a remote Prometheus, we
// instead use the same module's instrumentation half
// (client_golang/prometheus, client_golang/prometheus/promhttp) to expose
// our own series, since argus has no remote Prometheus to query.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/argus-scan/argus/internal/types"
)

// Registry wraps one process-local Prometheus registry. Nothing here
// ever initiates outbound network traffic; a scraper (if anyone runs
// one) pulls from Handler() on loopback, keeping the analysis and
// sandbox paths free of network egress.
type Registry struct {
	reg *prometheus.Registry

	memoryCount   prometheus.Gauge
	indexHealth   prometheus.Gauge
	dbHealth      prometheus.Gauge
	scansTotal    prometheus.Counter
	issuesTotal   *prometheus.CounterVec
	scanDuration  prometheus.Histogram
	filesSkipped  prometheus.Counter
}

// New builds a Registry with every argus gauge/counter registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		memoryCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "argus",
			Subsystem: "memory",
			Name:      "row_count",
			Help:      "Total rows currently stored in the memory engine.",
		}),
		indexHealth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "argus",
			Subsystem: "memory",
			Name:      "index_healthy",
			Help:      "1 if the ANN vector index is active, 0 if degraded to keyword-only.",
		}),
		dbHealth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "argus",
			Subsystem: "memory",
			Name:      "db_healthy",
			Help:      "1 if the backing database is open and responsive, 0 otherwise.",
		}),
		scansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "argus",
			Subsystem: "orchestrator",
			Name:      "scans_total",
			Help:      "Total number of completed project scans.",
		}),
		issuesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "argus",
			Subsystem: "orchestrator",
			Name:      "issues_total",
			Help:      "Total issues found, labeled by severity.",
		}, []string{"severity"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "argus",
			Subsystem: "orchestrator",
			Name:      "scan_duration_seconds",
			Help:      "Wall-clock duration of a full project scan.",
			Buckets:   prometheus.DefBuckets,
		}),
		filesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "argus",
			Subsystem: "orchestrator",
			Name:      "files_skipped_total",
			Help:      "Total files skipped due to size cap, timeout, or analyzer error.",
		}),
	}

	reg.MustRegister(r.memoryCount, r.indexHealth, r.dbHealth, r.scansTotal, r.issuesTotal, r.scanDuration, r.filesSkipped)
	return r
}

// Handler returns the HTTP handler a local scraper polls.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveHealth mirrors a Memory Engine Health snapshot into the gauges.
func (r *Registry) ObserveHealth(h types.Health) {
	r.memoryCount.Set(float64(h.MemoryCount))
	if h.Index == types.IndexOK {
		r.indexHealth.Set(1)
	} else {
		r.indexHealth.Set(0)
	}
	if h.DB == types.DBOk {
		r.dbHealth.Set(1)
	} else {
		r.dbHealth.Set(0)
	}
}

// ObserveScan records one completed scan's result.
func (r *Registry) ObserveScan(result types.ScanResult, durationSeconds float64) {
	r.scansTotal.Inc()
	r.scanDuration.Observe(durationSeconds)
	r.filesSkipped.Add(float64(len(result.Skipped)))
	for _, issue := range result.Issues {
		r.issuesTotal.WithLabelValues(string(issue.Severity)).Inc()
	}
}
