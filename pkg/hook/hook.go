// Package hook runs the user's post-mount script after a share has been
// remounted.
//
// The script runs as `sh -c <script> remounter <host> <share> <mount_point>`,
// so $1..$3 identify the share, and the same values are exported as
// REMOUNTER_HOST, REMOUNTER_SHARE, REMOUNTER_MOUNT_POINT together with
// REMOUNTER_ATTEMPT_ID. Its exit status is only logged: a failing hook never
// changes mount state or retry policy.
package hook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/marmos91/remounter/internal/logger"
	"github.com/marmos91/remounter/internal/telemetry"
	"github.com/marmos91/remounter/pkg/metrics"
	"github.com/marmos91/remounter/pkg/share"
)

// ErrHookFailed matches every *Error.
var ErrHookFailed = errors.New("post-mount hook failed")

// Error describes a failed or timed out hook run.
type Error struct {
	Script   string
	ExitCode int // -1 when the script did not exit on its own
	Output   string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("post-mount hook %q failed (exit code %d): %v", e.Script, e.ExitCode, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrHookFailed, e.Err}
}

// Options configure the hook. An empty Script disables it.
type Options struct {
	Script  string
	Timeout time.Duration
	Shell   string

	// MaxOutput caps the captured script output kept for logs, in bytes.
	MaxOutput int
}

const (
	// DefaultTimeout bounds a hook run when no timeout is configured.
	DefaultTimeout = 2 * time.Minute

	// DefaultMaxOutput is the output cap when none is configured.
	DefaultMaxOutput = 4096
)

// Runner runs the post-mount script. It is safe for concurrent use: each
// run is a fresh process.
type Runner struct {
	opts    atomic.Pointer[Options]
	metrics metrics.HookMetrics
	wg      sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics records hook runs.
func WithMetrics(m metrics.HookMetrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// New creates a Runner.
func New(opts Options, options ...Option) *Runner {
	r := &Runner{}
	for _, o := range options {
		o(r)
	}
	r.SetOptions(opts)
	return r
}

// SetOptions replaces the script settings for subsequent runs.
func (r *Runner) SetOptions(o Options) {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Shell == "" {
		o.Shell = "/bin/sh"
	}
	if o.MaxOutput <= 0 {
		o.MaxOutput = DefaultMaxOutput
	}
	r.opts.Store(&o)
}

// Options returns the current settings.
func (r *Runner) Options() Options {
	return *r.opts.Load()
}

// Enabled reports whether a script is configured.
func (r *Runner) Enabled() bool {
	return r.Options().Script != ""
}

// Fire runs the hook in the background and logs its outcome. The run is
// detached from ctx cancellation and bounded by the hook timeout only.
func (r *Runner) Fire(ctx context.Context, d share.Descriptor) {
	if !r.Enabled() {
		return
	}

	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.Run(ctx, d); err != nil {
			var he *Error
			if errors.As(err, &he) {
				logger.WarnCtx(ctx, "Post-mount script failed",
					logger.Script(he.Script), logger.ExitCode(he.ExitCode), logger.Output(he.Output), logger.Err(he.Err))
				return
			}
			logger.WarnCtx(ctx, "Post-mount script failed", logger.Err(err))
		}
	}()
}

// Wait blocks until every fired hook has finished or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for post-mount hooks: %w", ctx.Err())
	}
}

// Run executes the hook synchronously. It returns nil when no script is
// configured.
func (r *Runner) Run(ctx context.Context, d share.Descriptor) error {
	o := r.Options()
	if o.Script == "" {
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanHook, telemetry.WithShare(d.Host, d.Name, d.MountPoint))
	defer span.End()
	telemetry.SetAttributes(ctx, attribute.String(telemetry.AttrScript, o.Script))

	runCtx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(runCtx, o.Shell, "-c", o.Script, "remounter", d.Host, d.Name, d.MountPoint)
	cmd.Env = append(os.Environ(), environment(ctx, d)...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = 5 * time.Second
	configureProcessGroup(cmd)

	logger.InfoCtx(ctx, "Running post-mount script", logger.Script(o.Script))
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if r.metrics != nil {
		r.metrics.RecordHookRun(d.Name, err == nil, elapsed)
	}

	output := truncate(strings.TrimSpace(out.String()), o.MaxOutput)
	if err == nil {
		logger.InfoCtx(ctx, "Post-mount script finished", logger.Script(o.Script), logger.DurationMs(float64(elapsed.Microseconds())/1000.0))
		if output != "" {
			logger.DebugCtx(ctx, "Post-mount script output", logger.Output(output))
		}
		return nil
	}

	herr := &Error{Script: o.Script, ExitCode: -1, Output: output, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		herr.ExitCode = exitErr.ExitCode()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		herr.Err = fmt.Errorf("timed out after %s: %w", o.Timeout, context.DeadlineExceeded)
		herr.ExitCode = -1
	}

	telemetry.RecordError(ctx, herr)
	telemetry.SetAttributes(ctx, attribute.Int(telemetry.AttrExitCode, herr.ExitCode))
	return herr
}

func environment(ctx context.Context, d share.Descriptor) []string {
	env := []string{
		"REMOUNTER_HOST=" + d.Host,
		"REMOUNTER_SHARE=" + d.Name,
		"REMOUNTER_MOUNT_POINT=" + d.MountPoint,
	}
	if lc := logger.FromContext(ctx); lc != nil && lc.AttemptID != "" {
		env = append(env, "REMOUNTER_ATTEMPT_ID="+lc.AttemptID)
	}
	return env
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "...(truncated)"
}
