package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/remounter/internal/bytesize"
)

// Config represents the remounter configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags and positional arguments (highest priority)
//  2. Environment variables (REMOUNTER_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Host is the default SMB server for every share that does not name its own.
	Host string `mapstructure:"host" yaml:"host"`

	// Shares lists the shares to keep mounted, in order.
	Shares []ShareConfig `mapstructure:"shares" validate:"dive" yaml:"shares"`

	// Mount controls how shares are mounted and unmounted
	Mount MountConfig `mapstructure:"mount" yaml:"mount"`

	// Monitor controls the polling loop
	Monitor MonitorConfig `mapstructure:"monitor" yaml:"monitor"`

	// Backoff bounds the delay between failed remount attempts
	Backoff BackoffConfig `mapstructure:"backoff" yaml:"backoff"`

	// Hook configures the post-mount script
	Hook HookConfig `mapstructure:"hook" yaml:"hook"`

	// API contains the local HTTP API configuration
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Metrics controls Prometheus metrics, served by the API under /metrics
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Journal controls the persistent log of remount attempts
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ShareConfig is one configured share.
type ShareConfig struct {
	// Name is the share name on the server. A leading slash is ignored.
	Name string `mapstructure:"name" validate:"required" yaml:"name"`

	// Host overrides the top-level host for this share.
	Host string `mapstructure:"host" yaml:"host,omitempty"`

	// MountPoint overrides the derived local path (mount.root/<name>).
	MountPoint string `mapstructure:"mount_point" yaml:"mount_point,omitempty"`
}

// MountConfig controls the OS mount and unmount commands.
type MountConfig struct {
	// Root is the parent directory for derived mount points.
	// Default: /Volumes on macOS, /mnt/<host> elsewhere
	Root string `mapstructure:"root" yaml:"root,omitempty"`

	// Method selects the mount utility.
	// Valid values: auto, osascript, mount_smbfs, cifs
	Method string `mapstructure:"method" validate:"required,oneof=auto osascript mount_smbfs cifs" yaml:"method"`

	// Username is passed to the mount utility. Passwords come from the OS keychain.
	Username string `mapstructure:"username" yaml:"username,omitempty"`

	// Options are extra mount options (-o).
	Options string `mapstructure:"options" yaml:"options,omitempty"`

	// Port is the SMB port used for the reachability check and cifs mounts.
	// Default: 445
	Port int `mapstructure:"port" validate:"min=1,max=65535" yaml:"port"`

	// CheckReachability dials the host before every mount.
	// Default: true
	CheckReachability *bool `mapstructure:"check_reachability" yaml:"check_reachability"`

	// ReachabilityTimeout bounds the reachability dial.
	// Default: 5s
	ReachabilityTimeout time.Duration `mapstructure:"reachability_timeout" validate:"gt=0" yaml:"reachability_timeout"`

	// MountTimeout bounds one mount command.
	// Default: 60s
	MountTimeout time.Duration `mapstructure:"mount_timeout" validate:"gt=0" yaml:"mount_timeout"`

	// UnmountTimeout bounds one unmount command.
	// Default: 30s
	UnmountTimeout time.Duration `mapstructure:"unmount_timeout" validate:"gt=0" yaml:"unmount_timeout"`
}

// ReachabilityEnabled reports whether the pre-mount dial is on.
func (m MountConfig) ReachabilityEnabled() bool {
	return m.CheckReachability == nil || *m.CheckReachability
}

// MonitorConfig controls the polling loop.
type MonitorConfig struct {
	// PollInterval is the time between two evaluations of every share.
	// Default: 5s
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0" yaml:"poll_interval"`

	// ProbeTimeout bounds the liveness check of a mounted share. A check
	// that does not finish in time marks the share stale.
	// Default: 3s
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" validate:"gt=0" yaml:"probe_timeout"`
}

// BackoffConfig bounds the exponential delay after failed remounts.
type BackoffConfig struct {
	// Base is the delay after the first failure.
	// Default: 2s
	Base time.Duration `mapstructure:"base" validate:"gt=0" yaml:"base"`

	// Max caps the delay.
	// Default: 5m
	Max time.Duration `mapstructure:"max" validate:"gtefield=Base" yaml:"max"`
}

// HookConfig configures the post-mount script.
type HookConfig struct {
	// Script is run with sh -c after every successful remount. Empty disables it.
	Script string `mapstructure:"script" yaml:"script,omitempty"`

	// Timeout bounds one script run.
	// Default: 2m
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0" yaml:"timeout"`

	// MaxOutput caps how much script output is kept for logs, e.g. "4KiB".
	// Default: 4KiB
	MaxOutput bytesize.ByteSize `jsonschema:"oneof_type=string;integer" mapstructure:"max_output" yaml:"max_output"`
}

// APIConfig configures the local HTTP API used by the status and remount
// commands.
type APIConfig struct {
	// Enabled controls whether the API server runs.
	// Default: true
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	// Address is the listen address.
	// Default: 127.0.0.1
	Address string `mapstructure:"address" validate:"required" yaml:"address"`

	// Port is the listen port.
	// Default: 8765
	Port int `mapstructure:"port" validate:"min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It must cover a forced remount.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// IsEnabled reports whether the API server runs.
func (a APIConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// ListenAddr returns address:port.
func (a APIConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", a.Address, a.Port)
}

// BaseURL returns the URL clients use to reach the API.
func (a APIConfig) BaseURL() string {
	host := a.Address
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, a.Port)
}

// MetricsConfig controls Prometheus metrics collection.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served on /metrics
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// JournalConfig controls the remount attempt journal.
type JournalConfig struct {
	// Enabled controls whether attempts are recorded.
	// Default: true
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the SQLite database file.
	// Default: $XDG_STATE_HOME/remounter/journal.db
	Path string `mapstructure:"path" yaml:"path"`

	// Retention is how long attempts are kept. Older ones are pruned at startup.
	// Default: 720h (30 days)
	Retention time.Duration `mapstructure:"retention" validate:"gte=0" yaml:"retention"`
}

// IsEnabled reports whether attempts are recorded.
func (j JournalConfig) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

// Load loads configuration from file, environment, and defaults.
//
// A missing configuration file is not an error: the result is built from
// environment variables and defaults. An empty configPath uses the default
// location.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and fails with instructions when an explicitly
// requested file does not exist.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  remounter init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may hold a username and mount options.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// decode unmarshals the current viper state and fills in defaults.
func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: REMOUNTER_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("REMOUNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnvs registers every scalar key of t with viper so that environment
// variables apply even when the key is absent from the file.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if key == "" || key == "-" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}

		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft != reflect.TypeOf(time.Duration(0)) {
			bindEnvs(v, ft, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		shareDecodeHook(),
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// shareDecodeHook accepts a bare share name wherever a ShareConfig is
// expected, so that `shares: [docs, media]` and REMOUNTER_SHARES=docs,media
// both work.
func shareDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(ShareConfig{}) {
			return data, nil
		}
		if name, ok := data.(string); ok {
			return ShareConfig{Name: name}, nil
		}
		return data, nil
	}
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "remounter")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "remounter")
}

// GetStateDir returns the directory for runtime state (journal, pid file,
// daemon log): $XDG_STATE_HOME/remounter or ~/.local/state/remounter.
func GetStateDir() string {
	if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
		return filepath.Join(xdgState, "remounter")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".local", "state", "remounter")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
