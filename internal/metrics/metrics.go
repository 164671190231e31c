package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "token_alert"
	subsystem = "engine"
)

// Engine groups the counters the schedulers report to
type Engine struct {
	Sweeps          *prometheus.CounterVec
	SweepDuration   *prometheus.HistogramVec
	Fetches         *prometheus.CounterVec
	AlertsTriggered prometheus.Counter
	WatchVolatile   prometheus.Counter
	Notifications   *prometheus.CounterVec
	PersistFailures *prometheus.CounterVec
	ActiveAlerts    prometheus.Gauge
	WatchedTokens   prometheus.Gauge
}

// NewEngine creates the engine metrics and registers them with reg.
func NewEngine(reg prometheus.Registerer) *Engine {
	m := &Engine{
		Sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sweeps_total",
			Help:      "The total number of completed sweeps",
		}, []string{"scheduler"}),
		SweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sweep_duration_seconds",
			Help:      "How long a sweep takes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scheduler"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fetches_total",
			Help:      "Snapshot fetches by scheduler and outcome",
		}, []string{"scheduler", "outcome"}),
		AlertsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "alerts_triggered_total",
			Help:      "The total number of alerts whose condition was observed satisfied",
		}),
		WatchVolatile: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "watch_volatile_total",
			Help:      "The total number of watched tokens found above the volatility threshold",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_total",
			Help:      "Notifications by scheduler and result",
		}, []string{"scheduler", "result"}),
		PersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "persist_failures_total",
			Help:      "Failed store writes",
		}, []string{"store"}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_alerts",
			Help:      "Active alerts seen by the last alert sweep",
		}),
		WatchedTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "watched_tokens",
			Help:      "Watch entries seen by the last watch sweep",
		}),
	}

	reg.MustRegister(
		m.Sweeps,
		m.SweepDuration,
		m.Fetches,
		m.AlertsTriggered,
		m.WatchVolatile,
		m.Notifications,
		m.PersistFailures,
		m.ActiveAlerts,
		m.WatchedTokens,
	)

	return m
}

// NewUnregistered returns metrics that are not exported anywhere, for tests and tools.
func NewUnregistered() *Engine {
	return NewEngine(prometheus.NewRegistry())
}

func (m *Engine) Notified(scheduler string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.Notifications.WithLabelValues(scheduler, result).Inc()
}
