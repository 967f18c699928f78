package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/remounter/internal/cmdutil"
	"github.com/marmos91/remounter/pkg/apiclient"
	"github.com/marmos91/remounter/pkg/config"
	"github.com/marmos91/remounter/pkg/hook"
	"github.com/marmos91/remounter/pkg/journal"
	"github.com/marmos91/remounter/pkg/monitor"
	"github.com/marmos91/remounter/pkg/mount"
	"github.com/marmos91/remounter/pkg/share"
)

func baseConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Host = "nas.local"
	cfg.Shares = []config.ShareConfig{{Name: "documents"}}
	return cfg
}

func TestApplyArgs(t *testing.T) {
	t.Run("no arguments keep the file", func(t *testing.T) {
		cfg := baseConfig()
		applyArgs(cfg, nil, "")
		assert.Equal(t, "nas.local", cfg.Host)
		assert.Equal(t, []config.ShareConfig{{Name: "documents"}}, cfg.Shares)
		assert.Empty(t, cfg.Hook.Script)
	})

	t.Run("host only", func(t *testing.T) {
		cfg := baseConfig()
		applyArgs(cfg, []string{"10.0.0.5"}, "")
		assert.Equal(t, "10.0.0.5", cfg.Host)
		assert.Len(t, cfg.Shares, 1)
	})

	t.Run("host shares and script", func(t *testing.T) {
		cfg := baseConfig()
		applyArgs(cfg, []string{"fileserver", " /docs, media ,"}, "/usr/local/bin/after.sh")
		assert.Equal(t, "fileserver", cfg.Host)
		assert.Equal(t, []config.ShareConfig{{Name: "docs"}, {Name: "media"}}, cfg.Shares)
		assert.Equal(t, "/usr/local/bin/after.sh", cfg.Hook.Script)
	})
}

func TestDaemonArgs(t *testing.T) {
	savedConfig, savedScript := cmdutil.Flags.ConfigFile, postMountScript
	t.Cleanup(func() {
		cmdutil.Flags.ConfigFile, postMountScript = savedConfig, savedScript
	})

	cmdutil.Flags.ConfigFile = "/etc/remounter/config.yaml"
	postMountScript = "/bin/after.sh"

	got := daemonArgs("/run/remounter.pid", []string{"nas.local", "docs"})
	assert.Equal(t, []string{
		"start", "--foreground", "--pid-file", "/run/remounter.pid",
		"--config", "/etc/remounter/config.yaml",
		"--post-mount-script", "/bin/after.sh",
		"nas.local", "docs",
	}, got)
}

func TestPidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "remounter.pid")

	_, err := readPidFile(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	require.NoError(t, writePidFile(path))
	pid, err := readPidFile(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	got, running := isProcessRunning(path)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), got)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	_, err = readPidFile(path)
	assert.Error(t, err)
	_, running = isProcessRunning(path)
	assert.False(t, running)
}

type staticProber map[string]mount.ProbeResult

func (p staticProber) Probe(_ context.Context, d share.Descriptor) mount.ProbeResult {
	return p[d.Name]
}

func TestProbeAll(t *testing.T) {
	descs := []share.Descriptor{
		share.New("nas.local", "docs", "/mnt/nas.local/docs"),
		share.New("nas.local", "media", "/mnt/nas.local/media"),
	}
	prober := staticProber{
		"docs": {
			Signal:   mount.MountedHealthy,
			Entry:    mount.Entry{Device: "//nas.local/docs", MountPoint: "/mnt/nas.local/docs", FSType: "cifs"},
			Duration: 12 * time.Millisecond,
		},
		"media": {Signal: mount.MountedStale, Cause: mount.ErrProbeTimeout, Duration: 3 * time.Second},
	}

	results, err := probeAll(context.Background(), prober, descs)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "docs", results[0].Share)
	assert.Equal(t, "MountedHealthy", results[0].Signal)
	assert.Equal(t, "cifs", results[0].FSType)
	assert.Equal(t, int64(12), results[0].DurationMs)
	assert.Empty(t, results[0].Cause)

	assert.Equal(t, "MountedStale", results[1].Signal)
	assert.Equal(t, mount.ErrProbeTimeout.Error(), results[1].Cause)
	assert.False(t, results.Healthy())
	assert.True(t, results[:1].Healthy())

	rows := results.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "-", rows[0][5])
	assert.Equal(t, "3s", rows[1][4])
}

type noopRemounter struct{}

func (noopRemounter) Remount(context.Context, share.Descriptor) error { return nil }

type recordingSetters struct {
	mu      sync.Mutex
	timeout time.Duration
	mount   mount.Options
	hook    hook.Options
}

func (r *recordingSetters) SetTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeout = d
}

type mountRecorder struct{ *recordingSetters }

func (m mountRecorder) SetOptions(o mount.Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mount = o
}

type hookRecorder struct{ *recordingSetters }

func (h hookRecorder) SetOptions(o hook.Options) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hook = o
}

func TestReloaderApply(t *testing.T) {
	cfg := baseConfig()
	descs, err := cfg.Descriptors()
	require.NoError(t, err)

	mon, err := monitor.Build(descs, staticProber{}, noopRemounter{}, cfg.Monitor.PollInterval)
	require.NoError(t, err)

	rec := &recordingSetters{}
	r := &reloader{
		args:     []string{"nas.local"},
		script:   "/bin/from-flag.sh",
		descs:    descs,
		monitor:  mon,
		prober:   rec,
		actuator: mountRecorder{rec},
		hooks:    hookRecorder{rec},
	}

	next := baseConfig()
	next.Host = "ignored.local"
	next.Monitor.PollInterval = 42 * time.Second
	next.Monitor.ProbeTimeout = 7 * time.Second
	next.Backoff = config.BackoffConfig{Base: 10 * time.Second, Max: time.Minute}
	next.Mount.Username = "alice"
	next.Hook.Script = "/bin/from-file.sh"

	r.apply(next)

	assert.Equal(t, 42*time.Second, mon.Interval())
	ctrl, err := mon.Controller("documents")
	require.NoError(t, err)
	assert.Equal(t, monitor.Backoff{Base: 10 * time.Second, Max: time.Minute}, ctrl.Backoff())

	assert.Equal(t, 7*time.Second, rec.timeout)
	assert.Equal(t, "alice", rec.mount.Username)
	// Command line arguments still win over the file.
	assert.Equal(t, "/bin/from-flag.sh", rec.hook.Script)
	assert.Equal(t, "nas.local", next.Host)
}

func TestShareTable(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	next := now.Add(30 * time.Second)
	mounted := now.Add(-2 * time.Minute)

	table := ShareTable{
		now: now,
		shares: []apiclient.Share{
			{Name: "docs", Health: "Healthy", MountPoint: "/Volumes/docs", LastMountSucceededAt: &mounted},
			{Name: "media", Health: "Unhealthy", ConsecutiveFailures: 3, NextEligibleAttempt: &next, LastError: "host unreachable"},
		},
	}

	rows := table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"docs", "Healthy", "/Volumes/docs", "0", "-", "2m 0s ago", "-"}, rows[0])
	assert.Equal(t, []string{"media", "Unhealthy", "", "3", "in 30s", "-", "host unreachable"}, rows[1])
}

func TestPrintStatusTable(t *testing.T) {
	var buf bytes.Buffer
	err := printStatusTable(&buf, DaemonStatus{
		Version: "1.2.0",
		Uptime:  "1h2m3s",
		Shares:  []apiclient.Share{{Name: "docs", Health: "Healthy"}},
	}, time.Now())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "1.2.0")
	assert.Contains(t, out, "1h 2m")
	assert.Contains(t, out, "docs")
	assert.Contains(t, out, "HEALTH")

	buf.Reset()
	require.NoError(t, printStatusTable(&buf, DaemonStatus{}, time.Now()))
	assert.Contains(t, buf.String(), "No shares monitored.")
}

func TestAttemptTable(t *testing.T) {
	saved := cmdutil.Flags.NoColor
	cmdutil.Flags.NoColor = true
	t.Cleanup(func() { cmdutil.Flags.NoColor = saved })

	rows := AttemptTable([]*journal.Entry{
		{Share: "docs", Trigger: "auto", Success: true, DurationMs: 1500, Failures: 0},
		{Share: "media", Trigger: "manual", Error: "mount failed", DurationMs: 200, Failures: 4},
	}).Rows()

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"-", "docs", "auto", "ok", "1s", "0", "-"}, rows[0])
	assert.Equal(t, []string{"-", "media", "manual", "failed", "200ms", strconv.Itoa(4), "mount failed"}, rows[1])
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	versionShort = true
	t.Cleanup(func() { versionShort = false })
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, Version+"\n", buf.String())
}
