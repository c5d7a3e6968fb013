// Package telemetry records sync-run metrics in Prometheus format.
// graphindex is a batch tool, so metrics are written to a textfile for the
// node_exporter textfile collector instead of being served over HTTP.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "graphindex"
	syncSubsystem    = "sync"
)

// Document outcomes recorded by SyncMetrics.
const (
	OutcomeIndexed  = "indexed"
	OutcomeExcluded = "excluded"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// SyncMetrics holds the counters for one sync run on its own registry.
type SyncMetrics struct {
	registry *prometheus.Registry

	documentsTotal   *prometheus.CounterVec
	indexStatesTotal *prometheus.CounterVec
	batchesTotal     *prometheus.CounterVec
	batchDuration    *prometheus.HistogramVec
	lastRunTimestamp prometheus.Gauge
	lastRunDuration  prometheus.Gauge
}

// NewSyncMetrics creates and registers the sync metrics on a fresh registry.
func NewSyncMetrics() *SyncMetrics {
	m := &SyncMetrics{
		registry: prometheus.NewRegistry(),
		documentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: syncSubsystem,
				Name:      "documents_total",
				Help:      "Entities processed by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		indexStatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: syncSubsystem,
				Name:      "index_states_total",
				Help:      "Index provisioning outcomes by state",
			},
			[]string{"state"},
		),
		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: syncSubsystem,
				Name:      "batches_total",
				Help:      "Bulk writes by index and status",
			},
			[]string{"index", "status"},
		),
		batchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: syncSubsystem,
				Name:      "batch_duration_seconds",
				Help:      "Bulk write duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"index"},
		),
		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: syncSubsystem,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last sync finished",
		}),
		lastRunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: syncSubsystem,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last sync in seconds",
		}),
	}

	m.registry.MustRegister(
		m.documentsTotal,
		m.indexStatesTotal,
		m.batchesTotal,
		m.batchDuration,
		m.lastRunTimestamp,
		m.lastRunDuration,
	)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *SyncMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordDocuments adds n documents of kind with the given outcome.
func (m *SyncMetrics) RecordDocuments(kind, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.documentsTotal.WithLabelValues(kind, outcome).Add(float64(n))
}

// RecordIndexState counts one index provisioning outcome.
func (m *SyncMetrics) RecordIndexState(state string) {
	if m == nil {
		return
	}
	m.indexStatesTotal.WithLabelValues(state).Inc()
}

// RecordBatch counts one bulk write and observes its duration.
func (m *SyncMetrics) RecordBatch(index string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.batchesTotal.WithLabelValues(index, status).Inc()
	m.batchDuration.WithLabelValues(index).Observe(d.Seconds())
}

// RecordRun sets the last-run gauges.
func (m *SyncMetrics) RecordRun(finished time.Time, d time.Duration) {
	if m == nil {
		return
	}
	m.lastRunTimestamp.Set(float64(finished.Unix()))
	m.lastRunDuration.Set(d.Seconds())
}

// WriteToTextfile writes all metrics to path atomically.
func (m *SyncMetrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
