// Package metrics exposes run telemetry in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xtxerr/rcaeda/internal/pipeline"
)

const namespace = "rcaeda"

// Recorder implements pipeline.Recorder on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	lastRun      prometheus.Gauge
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	artifacts    *prometheus.CounterVec
	imputed      prometheus.Counter
}

var _ pipeline.Recorder = (*Recorder)(nil)

// New creates a recorder and registers its collectors, plus the Go and
// process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Pipeline steps by name and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall time of a pipeline step.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"step"}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_written_total",
			Help:      "Blobs written by step.",
		}, []string{"step"}),
		imputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "values_imputed_total",
			Help:      "Sentinel values replaced.",
		}),
	}

	r.registry.MustRegister(
		r.runs, r.runDuration, r.lastRun,
		r.steps, r.stepDuration, r.artifacts, r.imputed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry the collectors live on.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// StepFinished implements pipeline.Recorder. Skipped steps are counted but
// not timed.
func (r *Recorder) StepFinished(step string, status pipeline.StepStatus, d time.Duration) {
	r.steps.WithLabelValues(step, string(status)).Inc()
	if status != pipeline.StepSkipped {
		r.stepDuration.WithLabelValues(step).Observe(d.Seconds())
	}
}

// RunFinished implements pipeline.Recorder.
func (r *Recorder) RunFinished(status pipeline.Status, d time.Duration) {
	r.runs.WithLabelValues(string(status)).Inc()
	r.runDuration.Observe(d.Seconds())
	r.lastRun.SetToCurrentTime()
}

// ArtifactsWritten implements pipeline.Recorder.
func (r *Recorder) ArtifactsWritten(step string, n int) {
	r.artifacts.WithLabelValues(step).Add(float64(n))
}

// ValuesImputed implements pipeline.Recorder.
func (r *Recorder) ValuesImputed(n int) {
	r.imputed.Add(float64(n))
}
