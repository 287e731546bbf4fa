// Package metrics exposes Prometheus metrics for the hunter loop.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every hunter metric on one registry.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	tickDuration   prometheus.Histogram
	ticks          prometheus.Counter
	detections     prometheus.Counter
	trackLocked    prometheus.Gauge
	acquisitions   prometheus.Counter
	phase          *prometheus.GaugeVec
	cycles         prometheus.Counter
	errors         *prometheus.CounterVec
	holdCapHits    prometheus.Counter
	notifyDropped  prometheus.Counter
	loopRunning    prometheus.Gauge
	dashboardConns prometheus.Gauge
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithRegistry registers metrics on r instead of a fresh registry.
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

var phases = []string{"IDLE", "LOAD", "FIRE", "COOLDOWN"}

// NewManager creates a Manager and registers its metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{namespace: "hunter"}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "tick_duration_seconds",
		Help:      "Duration of one control loop tick.",
		Buckets:   []float64{.005, .01, .02, .03, .04, .05, .075, .1, .2, .5},
	})
	m.ticks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "ticks_total", Help: "Control loop ticks run.",
	})
	m.detections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "detections_total", Help: "Accepted target detections.",
	})
	m.trackLocked = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "track_locked", Help: "1 while the tracker holds a lock.",
	})
	m.acquisitions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "acquisitions_total", Help: "SEARCHING to LOCKED transitions.",
	})
	m.phase = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "attack_phase", Help: "1 for the active attack phase.",
	}, []string{"phase"})
	m.cycles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "attack_cycles_total", Help: "Completed attack cycles.",
	})
	m.errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "errors_total", Help: "Errors by component.",
	}, []string{"component"})
	m.holdCapHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "hold_cap_releases_total", Help: "Button holds cut short by the safety cap.",
	})
	m.notifyDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "notifications_dropped_total", Help: "Notifications dropped on a full queue.",
	})
	m.loopRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "loop_running", Help: "1 while the loop is running.",
	})
	m.dashboardConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "dashboard_clients", Help: "Connected dashboard websocket clients.",
	})

	m.registry.MustRegister(
		m.tickDuration, m.ticks, m.detections, m.trackLocked, m.acquisitions,
		m.phase, m.cycles, m.errors, m.holdCapHits, m.notifyDropped,
		m.loopRunning, m.dashboardConns,
		collectors.NewGoCollector(),
	)
	m.SetPhase("IDLE")
	return m
}

// ObserveTick records one tick and its duration.
func (m *Manager) ObserveTick(d time.Duration) {
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
}

// IncDetection counts an accepted detection.
func (m *Manager) IncDetection() { m.detections.Inc() }

// SetTrackState sets the lock gauge and counts acquisitions.
func (m *Manager) SetTrackState(locked, acquired bool) {
	if locked {
		m.trackLocked.Set(1)
	} else {
		m.trackLocked.Set(0)
	}
	if acquired {
		m.acquisitions.Inc()
	}
}

// SetPhase marks name as the active phase.
func (m *Manager) SetPhase(name string) {
	for _, p := range phases {
		v := 0.0
		if p == name {
			v = 1
		}
		m.phase.WithLabelValues(p).Set(v)
	}
}

func (m *Manager) IncCycle() { m.cycles.Inc() }
func (m *Manager) IncError(component string) { m.errors.WithLabelValues(component).Inc() }
func (m *Manager) IncHoldCap() { m.holdCapHits.Inc() }
func (m *Manager) IncDropped() { m.notifyDropped.Inc() }
func (m *Manager) SetDashboardClients(n int) { m.dashboardConns.Set(float64(n)) }

// SetRunning sets the loop running gauge.
func (m *Manager) SetRunning(running bool) {
	if running {
		m.loopRunning.Set(1)
	} else {
		m.loopRunning.Set(0)
	}
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Global manager used by the package-level helpers.
var global = NewManager()

// Default returns the global manager.
func Default() *Manager { return global }

func ObserveTick(d time.Duration) { global.ObserveTick(d) }
func IncDetection() { global.IncDetection() }
func SetTrackState(locked, acquired bool) { global.SetTrackState(locked, acquired) }
func SetPhase(name string) { global.SetPhase(name) }
func IncCycle() { global.IncCycle() }
func IncError(component string) { global.IncError(component) }
func IncHoldCap() { global.IncHoldCap() }
func IncDropped() { global.IncDropped() }
func SetRunning(running bool) { global.SetRunning(running) }
func SetDashboardClients(n int) { global.SetDashboardClients(n) }
func Handler() http.Handler { return global.Handler() }
