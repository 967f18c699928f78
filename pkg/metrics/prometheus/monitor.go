package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/remounter/pkg/metrics"
)

func init() {
	metrics.RegisterMonitorMetricsConstructor(func() metrics.MonitorMetrics {
		if m := NewMonitorMetrics(); m != nil {
			return m
		}
		return nil
	})
	metrics.RegisterHookMetricsConstructor(func() metrics.HookMetrics {
		if m := NewHookMetrics(); m != nil {
			return m
		}
		return nil
	})
}

// healthStates lists every health value so the state gauge always exposes
// one series per state, with exactly one of them set to 1.
var healthStates = []string{"Unknown", "Healthy", "Unhealthy", "Remounting"}

// monitorMetrics is the Prometheus implementation of metrics.MonitorMetrics.
type monitorMetrics struct {
	probes          *prometheus.CounterVec
	probeDuration   *prometheus.HistogramVec
	remounts        *prometheus.CounterVec
	remountDuration *prometheus.HistogramVec
	health          *prometheus.GaugeVec
	failures        *prometheus.GaugeVec
}

// NewMonitorMetrics creates the share monitor metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewMonitorMetrics() *monitorMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &monitorMetrics{
		probes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "remounter_probes_total",
				Help: "Total number of share probes by resulting signal",
			},
			[]string{"share", "signal"},
		),
		probeDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "remounter_probe_duration_seconds",
				Help:    "Duration of share probes including the liveness check",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2, 5, 10},
			},
			[]string{"share"},
		),
		remounts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "remounter_remount_attempts_total",
				Help: "Total number of remount attempts by trigger and result",
			},
			[]string{"share", "trigger", "result"}, // result: success, failure
		),
		remountDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "remounter_remount_duration_seconds",
				Help:    "Duration of unmount+mount cycles",
				Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"share"},
		),
		health: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "remounter_share_health",
				Help: "Current share health state (1 for the active state, 0 otherwise)",
			},
			[]string{"share", "state"},
		),
		failures: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "remounter_consecutive_failures",
				Help: "Consecutive failed remount attempts per share",
			},
			[]string{"share"},
		),
	}
}

func (m *monitorMetrics) RecordProbe(share, signal string, duration time.Duration) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(share, signal).Inc()
	m.probeDuration.WithLabelValues(share).Observe(duration.Seconds())
}

func (m *monitorMetrics) RecordRemount(share, trigger string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.remounts.WithLabelValues(share, trigger, result(success)).Inc()
	m.remountDuration.WithLabelValues(share).Observe(duration.Seconds())
}

func (m *monitorMetrics) SetHealth(share, health string) {
	if m == nil {
		return
	}
	for _, state := range healthStates {
		v := 0.0
		if state == health {
			v = 1
		}
		m.health.WithLabelValues(share, state).Set(v)
	}
}

func (m *monitorMetrics) SetConsecutiveFailures(share string, n int) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(share).Set(float64(n))
}

// hookMetrics is the Prometheus implementation of metrics.HookMetrics.
type hookMetrics struct {
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewHookMetrics creates the post-mount hook metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewHookMetrics() *hookMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &hookMetrics{
		runs: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "remounter_hook_runs_total",
				Help: "Total number of post-mount script runs by result",
			},
			[]string{"share", "result"},
		),
		duration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "remounter_hook_duration_seconds",
				Help:    "Duration of post-mount script runs",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *hookMetrics) RecordHookRun(share string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(share, result(success)).Inc()
	m.duration.Observe(duration.Seconds())
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
