// Package metrics exposes Prometheus counters for backend processes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "codecbridge"

// Recorder records backend lifecycle metrics.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	spawned       *prometheus.CounterVec
	spawnFailures *prometheus.CounterVec
	bytesIn       *prometheus.CounterVec
	bytesOut      *prometheus.CounterVec
	diagnostics   *prometheus.CounterVec
	exits         *prometheus.CounterVec
	flushTimeouts *prometheus.CounterVec
	flushDuration *prometheus.HistogramVec
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		spawned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "spawned_total",
			Help:      "Backend processes started.",
		}, []string{"direction"}),
		spawnFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "spawn_failures_total",
			Help:      "Backend processes that failed to start.",
		}, []string{"direction"}),
		bytesIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "bytes_in_total",
			Help:      "Bytes written to backend input streams.",
		}, []string{"direction"}),
		bytesOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "bytes_out_total",
			Help:      "Bytes read from backend output streams.",
		}, []string{"direction"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "diagnostic_errors_total",
			Help:      "Diagnostic segments that matched the failure marker.",
		}, []string{"direction"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "exits_total",
			Help:      "Backend process exits by status.",
		}, []string{"direction", "status"}),
		flushTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "flush_timeouts_total",
			Help:      "Finish calls that timed out.",
		}, []string{"direction"}),
		flushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "flush_duration_seconds",
			Help:      "Time from closing the input stream to process exit.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"direction"}),
	}

	reg.MustRegister(
		r.spawned,
		r.spawnFailures,
		r.bytesIn,
		r.bytesOut,
		r.diagnostics,
		r.exits,
		r.flushTimeouts,
		r.flushDuration,
	)
	return r
}

// Spawned counts a started process.
func (r *Recorder) Spawned(direction string) {
	if r == nil {
		return
	}
	r.spawned.WithLabelValues(direction).Inc()
}

// SpawnFailed counts a process that could not be started.
func (r *Recorder) SpawnFailed(direction string) {
	if r == nil {
		return
	}
	r.spawnFailures.WithLabelValues(direction).Inc()
}

// BytesIn adds n bytes written to a backend.
func (r *Recorder) BytesIn(direction string, n int) {
	if r == nil {
		return
	}
	r.bytesIn.WithLabelValues(direction).Add(float64(n))
}

// BytesOut adds n bytes read from a backend.
func (r *Recorder) BytesOut(direction string, n int) {
	if r == nil {
		return
	}
	r.bytesOut.WithLabelValues(direction).Add(float64(n))
}

// DiagnosticError counts a diagnostic failure marker match.
func (r *Recorder) DiagnosticError(direction string) {
	if r == nil {
		return
	}
	r.diagnostics.WithLabelValues(direction).Inc()
}

// Exited counts a process exit. status is "ok", "failed" or "killed".
func (r *Recorder) Exited(direction, status string) {
	if r == nil {
		return
	}
	r.exits.WithLabelValues(direction, status).Inc()
}

// FlushTimedOut counts a Finish that hit its timeout.
func (r *Recorder) FlushTimedOut(direction string) {
	if r == nil {
		return
	}
	r.flushTimeouts.WithLabelValues(direction).Inc()
}

// Flushed observes the time a successful Finish took.
func (r *Recorder) Flushed(direction string, d time.Duration) {
	if r == nil {
		return
	}
	r.flushDuration.WithLabelValues(direction).Observe(d.Seconds())
}
