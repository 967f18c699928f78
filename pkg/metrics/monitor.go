package metrics

import "time"

// MonitorMetrics records the share controllers' activity.
//
// Implementations must accept a nil receiver so that callers can hold a nil
// MonitorMetrics when metrics are disabled.
type MonitorMetrics interface {
	// RecordProbe counts one probe and its signal (NotMounted, MountedHealthy, MountedStale).
	RecordProbe(share, signal string, duration time.Duration)

	// RecordRemount counts one completed remount attempt.
	RecordRemount(share, trigger string, success bool, duration time.Duration)

	// SetHealth publishes the share's current health state.
	SetHealth(share, health string)

	// SetConsecutiveFailures publishes the failure counter that drives backoff.
	SetConsecutiveFailures(share string, n int)
}

// HookMetrics records post-mount script runs.
type HookMetrics interface {
	RecordHookRun(share string, success bool, duration time.Duration)
}

var (
	newMonitorMetrics func() MonitorMetrics
	newHookMetrics    func() HookMetrics
)

// RegisterMonitorMetricsConstructor is called by pkg/metrics/prometheus
// during package initialization. The indirection keeps this package free of
// implementation imports.
func RegisterMonitorMetricsConstructor(fn func() MonitorMetrics) {
	newMonitorMetrics = fn
}

// RegisterHookMetricsConstructor is the HookMetrics counterpart of
// RegisterMonitorMetricsConstructor.
func RegisterHookMetricsConstructor(fn func() HookMetrics) {
	newHookMetrics = fn
}

// NewMonitorMetrics returns the Prometheus-backed MonitorMetrics, or nil if
// metrics are disabled or no implementation was linked in.
//
//	metrics.InitRegistry()
//	m := metrics.NewMonitorMetrics()
//	ctrl := monitor.NewController(desc, prober, actuator, monitor.WithMetrics(m))
func NewMonitorMetrics() MonitorMetrics {
	if !IsEnabled() || newMonitorMetrics == nil {
		return nil
	}
	return newMonitorMetrics()
}

// NewHookMetrics returns the Prometheus-backed HookMetrics, or nil.
func NewHookMetrics() HookMetrics {
	if !IsEnabled() || newHookMetrics == nil {
		return nil
	}
	return newHookMetrics()
}
