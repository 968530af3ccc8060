// Package metrics records run statistics in Prometheus text format for the
// node_exporter textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jgoulah/gridflow/internal/pipeline"
)

const metricPrefix = "gridflow_"

const (
	reasonDuplicate  = "duplicate"
	reasonAllMissing = "all_missing"
)

// Run holds the metrics of one pipeline run in its own registry
type Run struct {
	registry *prometheus.Registry

	rowsLoaded       prometheus.Gauge
	recordsDropped   *prometheus.GaugeVec
	recordsClean     prometheus.Gauge
	coercionFailures *prometheus.GaugeVec
	dateMismatches   prometheus.Gauge
	hourlyBuckets    prometheus.Gauge
	peakBuckets      prometheus.Gauge
	serials          prometheus.Gauge
	duration         prometheus.Gauge
	lastSuccess      prometheus.Gauge
}

// NewRun registers the run metrics
func NewRun() *Run {
	r := &Run{
		registry: prometheus.NewRegistry(),
		rowsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "rows_loaded",
			Help: "Rows read from the input file",
		}),
		recordsDropped: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "records_dropped",
				Help: "Records removed during cleaning by reason",
			},
			[]string{"reason"},
		),
		recordsClean: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "records_clean",
			Help: "Records in the cleaned set",
		}),
		coercionFailures: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "coercion_failures",
				Help: "Cells that could not be parsed, by column",
			},
			[]string{"column"},
		),
		dateMismatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "date_mismatches",
			Help: "Records whose timestamp day differs from their date column",
		}),
		hourlyBuckets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "hourly_buckets",
			Help: "Distinct (date, hour) buckets",
		}),
		peakBuckets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "peak_buckets",
			Help: "Buckets flagged as peak feed-in hours",
		}),
		serials: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "serials",
			Help: "Distinct meter serials",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
	}

	r.registry.MustRegister(
		r.rowsLoaded,
		r.recordsDropped,
		r.recordsClean,
		r.coercionFailures,
		r.dateMismatches,
		r.hourlyBuckets,
		r.peakBuckets,
		r.serials,
		r.duration,
		r.lastSuccess,
	)
	return r
}

// Observe records the statistics of a finished run
func (r *Run) Observe(stats pipeline.Stats) {
	r.rowsLoaded.Set(float64(stats.Loaded))
	r.recordsDropped.WithLabelValues(reasonDuplicate).Set(float64(stats.Duplicates))
	r.recordsDropped.WithLabelValues(reasonAllMissing).Set(float64(stats.AllMissing))
	r.recordsClean.Set(float64(stats.Clean))
	for col, n := range stats.CoercionFailures {
		r.coercionFailures.WithLabelValues(col).Set(float64(n))
	}
	r.dateMismatches.Set(float64(stats.DateMismatches))
	r.hourlyBuckets.Set(float64(stats.HourlyBuckets))
	r.peakBuckets.Set(float64(stats.PeakBuckets))
	r.serials.Set(float64(stats.Serials))
	r.duration.Set(stats.Duration.Seconds())
	r.lastSuccess.SetToCurrentTime()
}

// Registry exposes the underlying registry
func (r *Run) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the metrics to path atomically
func (r *Run) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
