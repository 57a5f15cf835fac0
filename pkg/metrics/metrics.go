// Package metrics provides Prometheus instrumentation for pitchline runs.
//
// # Overview
//
// All collectors are registered on a package-private registry rather than the
// process default, so a run exports exactly the pitchline series. A batch job
// has no scrape endpoint; WriteTextfile dumps the registry in the text format
// read by node_exporter's textfile collector.
//
// # Basic Usage
//
//	// Count an outbound request
//	metrics.RequestsTotal.WithLabelValues("bootstrap-static", "200").Inc()
//
//	// Time a stage
//	timer := metrics.NewTimer("write")
//	err := writer.Write(ctx, tbl, path)
//	timer.ObserveDuration()
//
//	// Export after the run
//	_ = metrics.WriteTextfile("/var/lib/node_exporter/pitchline.prom")
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/pitchline/pkg/errors"
)

// Registry holds every pitchline collector.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// RequestsTotal counts upstream API requests.
	// Labels: endpoint, status (HTTP status code or "error")
	RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchline_requests_total",
			Help: "Total number of upstream API requests",
		},
		[]string{"endpoint", "status"},
	)

	// RequestDuration tracks upstream request latency in seconds.
	RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pitchline_request_duration_seconds",
			Help:    "Upstream API request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	// RowsWritten counts rows written per table and sink (parquet, arrow, database).
	RowsWritten = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchline_rows_written_total",
			Help: "Total number of rows written",
		},
		[]string{"table", "sink"},
	)

	// StageDuration tracks how long each pipeline stage takes.
	// Labels: stage (clean, transform, write, ddl, upload, load)
	StageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pitchline_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"stage"},
	)

	// ColumnsDropped counts nested columns removed by cleaning.
	ColumnsDropped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchline_columns_dropped_total",
			Help: "Total number of nested columns dropped during cleaning",
		},
		[]string{"table"},
	)

	// TablesProcessed counts tables by outcome (success, skipped or error).
	TablesProcessed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchline_tables_processed_total",
			Help: "Total number of tables processed",
		},
		[]string{"status"},
	)

	// LastRunTimestamp is the unix time of the last completed run.
	LastRunTimestamp = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "pitchline_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		},
	)
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
}

// Timer measures one stage and records it in StageDuration.
type Timer struct {
	start time.Time
	stage string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(stage string) *Timer {
	return &Timer{start: time.Now(), stage: stage}
}

// ObserveDuration records the elapsed time and returns it.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	StageDuration.WithLabelValues(t.stage).Observe(d.Seconds())
	return d
}

// Status returns the status label for err.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// WriteTextfile writes the registry to path in the Prometheus text format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write metrics textfile").WithDetail("path", path)
	}
	return nil
}
