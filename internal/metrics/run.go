// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics collects per-run counters and writes them in the
// node_exporter textfile format.
package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ManuGH/tablo-rescue/internal/catalog"
	"github.com/ManuGH/tablo-rescue/internal/recordings"
	"github.com/ManuGH/tablo-rescue/internal/rescue"
)

const namespace = "tablo_rescue"

// Run holds the metrics of a single invocation on a private registry.
type Run struct {
	registry *prometheus.Registry

	recordings   *prometheus.GaugeVec
	skippedRows  prometheus.Gauge
	duplicateIDs prometheus.Gauge
	outcomes     *prometheus.CounterVec
	bytesCopied  prometheus.Counter
	lastRun      prometheus.Gauge
	duration     prometheus.Gauge
}

// NewRun creates the run metrics, every label pre-populated with zero.
func NewRun() *Run {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Run{
		registry: reg,
		recordings: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recordings",
			Help:      "Recordings in the catalog by resolver status",
		}, []string{"status"}),
		skippedRows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_rows_skipped",
			Help:      "Database rows that could not be parsed",
		}),
		duplicateIDs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_duplicate_ids",
			Help:      "Database rows dropped for a repeated recording id",
		}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rescue_outcomes_total",
			Help:      "Rescue results by outcome",
		}, []string{"outcome"}),
		bytesCopied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_copied_total",
			Help:      "Bytes written to the output directory",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished",
		}),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the run",
		}),
	}

	for _, st := range recordings.AllStatuses {
		r.recordings.WithLabelValues(string(st))
	}
	for _, o := range rescue.AllOutcomes {
		r.outcomes.WithLabelValues(string(o))
	}
	return r
}

// Registry exposes the private registry.
func (r *Run) Registry() *prometheus.Registry { return r.registry }

// ObserveCatalog records the status breakdown and reader health.
func (r *Run) ObserveCatalog(s catalog.Summary, skippedRows, duplicateIDs int) {
	for _, st := range recordings.AllStatuses {
		r.recordings.WithLabelValues(string(st)).Set(float64(s.Count(st)))
	}
	r.skippedRows.Set(float64(skippedRows))
	r.duplicateIDs.Set(float64(duplicateIDs))
}

// Record implements rescue.Recorder.
func (r *Run) Record(res rescue.Result) {
	r.outcomes.WithLabelValues(normalizeOutcomeLabel(res.Outcome)).Inc()
	if res.Outcome == rescue.OutcomeCopied && res.Bytes > 0 {
		r.bytesCopied.Add(float64(res.Bytes))
	}
}

// Finish stamps the end of the run.
func (r *Run) Finish(start, end time.Time) {
	r.lastRun.Set(float64(end.Unix()))
	r.duration.Set(end.Sub(start).Seconds())
}

// WriteTextfile atomically writes every metric to path.
func (r *Run) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// normalizeOutcomeLabel caps the label to the known outcomes.
func normalizeOutcomeLabel(o rescue.Outcome) string {
	v := strings.ToLower(strings.TrimSpace(string(o)))
	for _, known := range rescue.AllOutcomes {
		if v == string(known) {
			return v
		}
	}
	return "unknown"
}
