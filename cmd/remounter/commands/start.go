package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/remounter/internal/logger"
	"github.com/marmos91/remounter/internal/telemetry"
	"github.com/marmos91/remounter/pkg/api"
	"github.com/marmos91/remounter/pkg/config"
	"github.com/marmos91/remounter/pkg/hook"
	"github.com/marmos91/remounter/pkg/journal"
	"github.com/marmos91/remounter/pkg/metrics"
	"github.com/marmos91/remounter/pkg/monitor"
	"github.com/marmos91/remounter/pkg/mount"
	"github.com/marmos91/remounter/pkg/share"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/remounter/pkg/metrics/prometheus"
)

var (
	foreground      bool
	pidFile         string
	logFile         string
	postMountScript string
)

var startCmd = &cobra.Command{
	Use:   "start [host] [shares]",
	Short: "Start monitoring SMB shares",
	Long: `Start the remounter daemon.

Every poll interval each share is probed: a share that is not mounted, or
whose mount point no longer answers within the probe timeout, is unmounted
and mounted again. Failed attempts back off exponentially.

host and shares override the configuration file. shares is a
comma-separated list; a leading slash is ignored, so "/docs" is "docs".

By default remounter runs in the background. Use --foreground to run it
under a process supervisor or for debugging.

Examples:
  # Monitor the shares from the configuration file
  remounter start

  # Monitor two shares on nas.local in the foreground
  remounter start nas.local docs,media --foreground

  # Run a script after every successful remount
  remounter start nas.local docs -p ~/bin/after-mount.sh

  # Override settings with environment variables
  REMOUNTER_LOGGING_LEVEL=DEBUG remounter start --foreground`,
	Args: cobra.MaximumNArgs(2),
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVarP(&postMountScript, "post-mount-script", "p", "", "Script to run after every successful remount")
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/remounter/remounter.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/remounter/remounter.log)")
}

// daemonArgs rebuilds the command line for the detached foreground child.
func daemonArgs(pidPath string, args []string) []string {
	out := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		out = append(out, "--config", GetConfigFile())
	}
	if postMountScript != "" {
		out = append(out, "--post-mount-script", postMountScript)
	}
	return append(out, args...)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	applyArgs(cfg, args, postMountScript)

	// Bad shares are fatal before anything starts, daemon or not.
	descs, err := cfg.Descriptors()
	if err != nil {
		return err
	}

	if !foreground {
		return startDaemon(args)
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "remounter",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		// ctx is cancelled by now; flushing needs its own deadline.
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(flushCtx); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "remounter",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	var attempts *journal.Journal
	if cfg.Journal.IsEnabled() {
		attempts, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer func() { _ = attempts.Close() }()
		pruneJournal(ctx, attempts, cfg.Journal.Retention)
	}

	table := mount.SystemTable{}
	prober := mount.NewProber(table, cfg.Monitor.ProbeTimeout)
	hooks := hook.New(cfg.HookOptions(), hook.WithMetrics(metrics.NewHookMetrics()))
	actuator := mount.NewActuator(table, cfg.MountOptions(), mount.WithHook(hooks))

	opts := []monitor.ControllerOption{
		monitor.WithBackoff(cfg.BackoffPolicy()),
		monitor.WithMetrics(metrics.NewMonitorMetrics()),
	}
	if attempts != nil {
		opts = append(opts, monitor.WithRecorder(attempts))
	}
	mon, err := monitor.Build(descs, prober, actuator, cfg.Monitor.PollInterval, opts...)
	if err != nil {
		return err
	}

	logStartup(cfg, descs)

	if pidFile != "" {
		if err := writePidFile(pidFile); err != nil {
			return err
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	reloader := &reloader{
		args:     args,
		script:   postMountScript,
		descs:    descs,
		monitor:  mon,
		prober:   prober,
		actuator: actuator,
		hooks:    hooks,
	}
	if err := config.Watch(GetConfigFile(), reloader.apply); err != nil {
		logger.Debug("Configuration reload disabled", logger.Err(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mon.Run(gctx)
	})

	if cfg.API.IsEnabled() {
		deps := api.Dependencies{Monitor: mon, Version: Version}
		if attempts != nil {
			deps.Journal = attempts
		}
		server := api.NewServer(cfg.API, deps)
		g.Go(func() error {
			return server.Start(gctx)
		})
	}

	logger.Info("remounter is running. Press Ctrl+C to stop.")

	runErr := g.Wait()
	if runErr != nil {
		logger.Error("remounter stopped with error", logger.Err(runErr))
	} else {
		logger.Info("Shutdown signal received, waiting for post-mount scripts", "timeout", cfg.ShutdownTimeout.String())
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := hooks.Wait(waitCtx); err != nil {
		logger.Warn("Post-mount scripts still running at exit", logger.Err(err))
	}

	if runErr != nil {
		return runErr
	}
	logger.Info("remounter exited normally")
	return nil
}

// logStartup prints the startup banner: version, host, every share and the
// post-mount script.
func logStartup(cfg *config.Config, descs []share.Descriptor) {
	logger.Info("Starting remounter", "version", Version, "commit", Commit)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	if cfg.Host != "" {
		logger.Info("Default host", logger.Host(cfg.Host))
	}
	for _, d := range descs {
		logger.Info("Monitoring share", logger.Share(d.Name), logger.Host(d.Host), logger.MountPoint(d.MountPoint))
	}
	if cfg.Hook.Script != "" {
		logger.Info("Post-mount script", logger.Script(cfg.Hook.Script), "timeout", cfg.Hook.Timeout.String())
	} else {
		logger.Info("Post-mount script", logger.Script("none"))
	}
	logger.Info("Polling", "interval", cfg.Monitor.PollInterval.String(), "probe_timeout", cfg.Monitor.ProbeTimeout.String())
	logger.Info("Backoff", "base", cfg.Backoff.Base.String(), "max", cfg.Backoff.Max.String())

	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}
	if metrics.IsEnabled() {
		logger.Info("Metrics enabled", "path", "/metrics")
	}
	if cfg.Journal.IsEnabled() {
		logger.Info("Journal enabled", "path", cfg.Journal.Path)
	}
	if cfg.API.IsEnabled() {
		logger.Info("API enabled", "address", cfg.API.ListenAddr())
	}
}

// pruneJournal drops attempts older than retention. Failures only warn.
func pruneJournal(ctx context.Context, j *journal.Journal, retention time.Duration) {
	if retention <= 0 {
		return
	}
	n, err := j.Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		logger.Warn("Failed to prune journal", logger.Err(err))
		return
	}
	if n > 0 {
		logger.Info("Pruned journal", "removed", n, "retention", retention.String())
	}
}

// Setters a reload needs from the prober, actuator and hook runner.
type (
	timeoutSetter interface{ SetTimeout(time.Duration) }
	mountSetter   interface{ SetOptions(mount.Options) }
	hookSetter    interface{ SetOptions(hook.Options) }
)

// reloader applies a changed configuration file to the running daemon.
// Polling, backoff, probe timeout, mount options, the hook and the log
// level change in place; the host and share list need a restart.
type reloader struct {
	args   []string
	script string
	descs  []share.Descriptor

	monitor  *monitor.Monitor
	prober   timeoutSetter
	actuator mountSetter
	hooks    hookSetter
}

func (r *reloader) apply(cfg *config.Config) {
	applyArgs(cfg, r.args, r.script)

	if descs, err := cfg.Descriptors(); err != nil {
		logger.Warn("Reloaded configuration has invalid shares, keeping current ones", logger.Err(err))
	} else if !slices.Equal(descs, r.descs) {
		logger.Warn("Host or share changes need a restart to take effect")
	}

	logger.SetLevel(cfg.Logging.Level)
	r.monitor.UpdateOptions(monitor.Options{
		Interval: cfg.Monitor.PollInterval,
		Backoff:  cfg.BackoffPolicy(),
	})
	r.prober.SetTimeout(cfg.Monitor.ProbeTimeout)
	r.actuator.SetOptions(cfg.MountOptions())
	r.hooks.SetOptions(cfg.HookOptions())
}
