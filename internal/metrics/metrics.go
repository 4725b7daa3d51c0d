// Package metrics exposes rep-counter metrics in Prometheus format.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame loop counters
	FramesProcessed atomic.Uint64
	FramesSkipped   atomic.Uint64

	// Error counters
	CameraErrors   atomic.Uint64
	ClassifyErrors atomic.Uint64
	HookErrors     atomic.Uint64

	// Rep counting
	RepsCounted atomic.Uint64
	CurrentReps atomic.Int64

	// Session state
	SessionRunning atomic.Uint64 // 0 = stopped, 1 = running
	FPS            atomic.Uint64
	Sessions       atomic.Uint64

	// Websocket clients
	ActiveClients atomic.Int64

	startTime time.Time
	registry  *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	gauge := func(name, help string, fn func() float64) {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: "posereps", Name: name, Help: help},
			fn,
		))
	}

	gauge("frames_processed_total", "Frames run through pose estimation and classification",
		func() float64 { return float64(m.FramesProcessed.Load()) })
	gauge("frames_skipped_total", "Frames skipped because no body was found",
		func() float64 { return float64(m.FramesSkipped.Load()) })
	gauge("camera_errors_total", "Camera read errors",
		func() float64 { return float64(m.CameraErrors.Load()) })
	gauge("classify_errors_total", "Pose estimation or classification errors",
		func() float64 { return float64(m.ClassifyErrors.Load()) })
	gauge("hook_errors_total", "Failed rep hook invocations",
		func() float64 { return float64(m.HookErrors.Load()) })
	gauge("reps_counted_total", "Reps counted across all sessions",
		func() float64 { return float64(m.RepsCounted.Load()) })
	gauge("reps_current", "Rep count of the current session",
		func() float64 { return float64(m.CurrentReps.Load()) })
	gauge("session_running", "1 while a session loop is running",
		func() float64 { return float64(m.SessionRunning.Load()) })
	gauge("session_fps", "Frame loop rate of the current session",
		func() float64 { return float64(m.FPS.Load()) })
	gauge("sessions_started_total", "Sessions started since process start",
		func() float64 { return float64(m.Sessions.Load()) })
	gauge("ws_clients", "Connected websocket clients",
		func() float64 { return float64(m.ActiveClients.Load()) })
	gauge("uptime_seconds", "Process uptime",
		func() float64 { return time.Since(m.startTime).Seconds() })

	m.registry.MustRegister(prometheus.NewGoCollector())
}

// SetRunning records whether a session loop is running.
func (m *Metrics) SetRunning(running bool) {
	if running {
		m.SessionRunning.Store(1)
		return
	}
	m.SessionRunning.Store(0)
	m.FPS.Store(0)
}

// Uptime returns the time since the metrics were created.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
