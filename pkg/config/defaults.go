package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/remounter/internal/bytesize"
	"github.com/marmos91/remounter/pkg/hook"
	"github.com/marmos91/remounter/pkg/mount"
	"github.com/marmos91/remounter/pkg/monitor"
)

// Default values not owned by another package.
const (
	DefaultAPIPort         = 8765
	DefaultProbeTimeout    = 3 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", nil) are replaced with defaults; explicit values are
// preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyShareDefaults(cfg)
	applyMountDefaults(&cfg.Mount)
	applyMonitorDefaults(&cfg.Monitor)
	applyBackoffDefaults(&cfg.Backoff)
	applyHookDefaults(&cfg.Hook)
	applyAPIDefaults(&cfg.API)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyJournalDefaults(&cfg.Journal)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyShareDefaults normalizes share names and hosts.
func applyShareDefaults(cfg *Config) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	for i := range cfg.Shares {
		cfg.Shares[i].Name = strings.Trim(strings.TrimSpace(cfg.Shares[i].Name), "/")
		cfg.Shares[i].Host = strings.TrimSpace(cfg.Shares[i].Host)
	}
}

func applyMountDefaults(cfg *MountConfig) {
	d := mount.DefaultOptions()
	if cfg.Method == "" {
		cfg.Method = string(d.Method)
	}
	if cfg.Port == 0 {
		cfg.Port = d.Port
	}
	if cfg.CheckReachability == nil {
		cfg.CheckReachability = boolPtr(true)
	}
	if cfg.ReachabilityTimeout == 0 {
		cfg.ReachabilityTimeout = d.ReachabilityTimeout
	}
	if cfg.MountTimeout == 0 {
		cfg.MountTimeout = d.MountTimeout
	}
	if cfg.UnmountTimeout == 0 {
		cfg.UnmountTimeout = d.UnmountTimeout
	}
}

func applyMonitorDefaults(cfg *MonitorConfig) {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = monitor.DefaultPollInterval
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
}

func applyBackoffDefaults(cfg *BackoffConfig) {
	d := monitor.DefaultBackoff()
	if cfg.Base == 0 {
		cfg.Base = d.Base
	}
	if cfg.Max == 0 {
		cfg.Max = d.Max
	}
}

func applyHookDefaults(cfg *HookConfig) {
	cfg.Script = strings.TrimSpace(cfg.Script)
	if cfg.Timeout == 0 {
		cfg.Timeout = hook.DefaultTimeout
	}
	if cfg.MaxOutput == 0 {
		cfg.MaxOutput = bytesize.ByteSize(hook.DefaultMaxOutput)
	}
}

// applyAPIDefaults sets local API server defaults. The write timeout has to
// outlast a forced remount, which is bounded by the unmount and mount
// timeouts.
func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Enabled == nil {
		cfg.Enabled = boolPtr(true)
	}
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultAPIPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 3 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{"cpu", "alloc_objects", "inuse_space", "goroutines"}
	}
}

func applyJournalDefaults(cfg *JournalConfig) {
	if cfg.Enabled == nil {
		cfg.Enabled = boolPtr(true)
	}
	if cfg.Path == "" {
		cfg.Path = filepath.Join(GetStateDir(), "journal.db")
	}
	if cfg.Retention == 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
}

func boolPtr(b bool) *bool { return &b }

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
