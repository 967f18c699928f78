package mount

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/marmos91/remounter/internal/logger"
	"github.com/marmos91/remounter/internal/telemetry"
	"github.com/marmos91/remounter/pkg/share"
)

// DefaultSMBPort is the TCP port SMB servers listen on.
const DefaultSMBPort = 445

// Options tune how shares are mounted. They can be swapped at runtime with
// Actuator.SetOptions.
type Options struct {
	Method   Method
	Username string
	Options  string // extra -o options passed to the mount utility
	Port     int

	CheckReachability   bool
	ReachabilityTimeout time.Duration
	MountTimeout        time.Duration
	UnmountTimeout      time.Duration
}

// DefaultOptions returns the mount options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Method:              MethodAuto,
		Port:                DefaultSMBPort,
		CheckReachability:   true,
		ReachabilityTimeout: 5 * time.Second,
		MountTimeout:        60 * time.Second,
		UnmountTimeout:      30 * time.Second,
	}
}

// PostMountHook is notified once after every successful remount.
type PostMountHook interface {
	Fire(ctx context.Context, d share.Descriptor)
}

// DialFunc opens a network connection; net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Actuator unmounts and mounts shares through the OS utilities.
type Actuator struct {
	table  Table
	runner Runner
	hook   PostMountHook
	dial   DialFunc
	mkdir  func(string, os.FileMode) error
	lstat  func(string) (os.FileInfo, error)
	remove func(string) error
	goos   string
	opts   atomic.Pointer[Options]
}

// ActuatorOption configures an Actuator.
type ActuatorOption func(*Actuator)

// WithRunner replaces the os/exec command runner.
func WithRunner(r Runner) ActuatorOption {
	return func(a *Actuator) { a.runner = r }
}

// WithHook sets the post-mount hook.
func WithHook(h PostMountHook) ActuatorOption {
	return func(a *Actuator) { a.hook = h }
}

// WithDialer replaces the dialer used for the reachability check.
func WithDialer(d DialFunc) ActuatorOption {
	return func(a *Actuator) { a.dial = d }
}

// WithPlatform overrides runtime.GOOS when choosing mount commands.
func WithPlatform(goos string) ActuatorOption {
	return func(a *Actuator) { a.goos = goos }
}

// WithMkdir replaces os.MkdirAll for mount point creation.
func WithMkdir(fn func(string, os.FileMode) error) ActuatorOption {
	return func(a *Actuator) { a.mkdir = fn }
}

// WithLeftoverCleanup replaces os.Lstat and os.Remove, used to clear an
// empty directory left at a Finder mount point.
func WithLeftoverCleanup(lstat func(string) (os.FileInfo, error), remove func(string) error) ActuatorOption {
	return func(a *Actuator) {
		a.lstat = lstat
		a.remove = remove
	}
}

// NewActuator creates an Actuator. table is consulted before unmounting so
// that an absent mount is not treated as an error.
func NewActuator(table Table, opts Options, options ...ActuatorOption) *Actuator {
	a := &Actuator{
		table:  table,
		runner: ExecRunner{},
		dial:   (&net.Dialer{}).DialContext,
		mkdir:  os.MkdirAll,
		lstat:  os.Lstat,
		remove: os.Remove,
		goos:   runtime.GOOS,
	}
	for _, o := range options {
		o(a)
	}
	a.SetOptions(opts)
	return a
}

// SetOptions replaces the mount options for subsequent operations.
func (a *Actuator) SetOptions(o Options) {
	d := DefaultOptions()
	if o.Method == "" {
		o.Method = d.Method
	}
	if o.Port == 0 {
		o.Port = d.Port
	}
	if o.ReachabilityTimeout <= 0 {
		o.ReachabilityTimeout = d.ReachabilityTimeout
	}
	if o.MountTimeout <= 0 {
		o.MountTimeout = d.MountTimeout
	}
	if o.UnmountTimeout <= 0 {
		o.UnmountTimeout = d.UnmountTimeout
	}
	a.opts.Store(&o)
}

// Options returns the current mount options.
func (a *Actuator) Options() Options {
	return *a.opts.Load()
}

// Remount force-unmounts d if needed, mounts it again and fires the
// post-mount hook. The hook's own outcome never changes the result.
func (a *Actuator) Remount(ctx context.Context, d share.Descriptor) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRemount, telemetry.WithShare(d.Host, d.Name, d.MountPoint))
	defer span.End()

	if err := a.Unmount(ctx, d); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	if err := a.Mount(ctx, d); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	if a.hook != nil {
		a.hook.Fire(ctx, d)
	}
	return nil
}

// Unmount force-unmounts d's mount point. It succeeds when nothing is
// mounted there, including when the mount vanished between the table
// lookup and the unmount command. Anything other than d mounted at the
// mount point is left alone and reported as ErrMountPointBusy.
func (a *Actuator) Unmount(ctx context.Context, d share.Descriptor) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanUnmount)
	defer span.End()

	entries, err := a.table.List(ctx)
	if err != nil {
		return &UnmountError{MountPoint: d.MountPoint, Err: fmt.Errorf("list mounts: %w", err)}
	}
	if _, ours := Find(entries, d); !ours {
		if other, busy := MountedAt(entries, d.MountPoint); busy {
			logger.WarnCtx(ctx, "Mount point is used by another mount, leaving it alone",
				logger.MountPoint(d.MountPoint), logger.Device(other.Device), logger.FSType(other.FSType))
			return &UnmountError{
				MountPoint: d.MountPoint,
				Err:        fmt.Errorf("%w: %s (%s) is mounted there", ErrMountPointBusy, other.Device, other.FSType),
			}
		}
		logger.DebugCtx(ctx, "Nothing mounted, skipping unmount")
		return nil
	}

	o := a.Options()
	var lastErr error
	for _, c := range unmountCommands(a.goos, d.MountPoint) {
		out, runErr := a.run(ctx, o.UnmountTimeout, c)
		if runErr == nil {
			logger.InfoCtx(ctx, "Unmounted share", logger.Command(c.String()))
			return nil
		}
		if isNotMountedOutput(out) {
			logger.DebugCtx(ctx, "Mount point already unmounted", logger.Command(c.String()), logger.Output(out))
			return nil
		}

		lastErr = &UnmountError{MountPoint: d.MountPoint, Command: c.String(), Output: out, Err: runErr}
		logger.WarnCtx(ctx, "Unmount attempt failed", logger.Command(c.String()), logger.Output(out), logger.Err(runErr))
	}

	// Every command failed; accept the result if the mount is gone anyway.
	if entries, err := a.table.List(ctx); err == nil {
		if _, still := Find(entries, d); !still {
			return nil
		}
	}
	return lastErr
}

// Mount mounts d at its mount point.
func (a *Actuator) Mount(ctx context.Context, d share.Descriptor) error {
	o := a.Options()

	method, err := resolveMethod(o.Method, a.goos, d)
	if err != nil {
		return &MountError{Source: d.URL(""), MountPoint: d.MountPoint, Cause: ErrUnsupported, Err: err}
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanMount)
	defer span.End()
	telemetry.SetAttributes(ctx, attribute.String(telemetry.AttrMethod, string(method)))

	if o.CheckReachability {
		if err := a.CheckReachable(ctx, d.Host); err != nil {
			return &MountError{Source: d.URL(""), MountPoint: d.MountPoint, Cause: ErrHostUnreachable, Err: err}
		}
	}

	// Finder creates /Volumes/<share> itself, and picks /Volumes/<share>-1
	// when the directory is already there.
	if method == MethodOSAScript {
		if err := a.clearLeftover(d.MountPoint); err != nil {
			return &MountError{Source: d.URL(""), MountPoint: d.MountPoint, Cause: ErrMountPointBusy, Err: err}
		}
	} else if err := a.mkdir(d.MountPoint, 0755); err != nil {
		cause := ErrPermissionDenied
		if !errors.Is(err, os.ErrPermission) {
			cause = nil
		}
		return &MountError{Source: d.URL(""), MountPoint: d.MountPoint, Cause: cause, Err: fmt.Errorf("create mount point: %w", err)}
	}

	c := mountCommand(method, d, o)
	logger.DebugCtx(ctx, "Mounting share", logger.Command(c.String()))

	out, runErr := a.run(ctx, o.MountTimeout, c)
	if runErr != nil {
		cause := classifyMountFailure(out, runErr)
		if errors.Is(runErr, ErrTimeout) {
			cause = ErrTimeout
		}
		return &MountError{Source: d.URL(""), MountPoint: d.MountPoint, Command: c.String(), Output: out, Cause: cause, Err: runErr}
	}

	if err := a.verifyMounted(ctx, d); err != nil {
		return &MountError{Source: d.URL(""), MountPoint: d.MountPoint, Command: c.String(), Output: out, Cause: ErrMountPointBusy, Err: err}
	}

	logger.InfoCtx(ctx, "Mounted share", logger.Command(c.String()))
	return nil
}

// verifyMounted checks that the mount utility really put d at its mount
// point. A zero exit status alone is not enough: Finder may choose another
// directory.
func (a *Actuator) verifyMounted(ctx context.Context, d share.Descriptor) error {
	entries, err := a.table.List(ctx)
	if err != nil {
		return fmt.Errorf("list mounts: %w", err)
	}
	if _, ok := Find(entries, d); ok {
		return nil
	}
	for _, e := range entries {
		if e.IsSMB() && strings.EqualFold(e.ShareName(), d.Name) {
			logger.WarnCtx(ctx, "Share was mounted at an unexpected path",
				logger.MountPoint(d.MountPoint), logger.Device(e.Device), logger.FoundAt(e.MountPoint))
			return fmt.Errorf("share mounted at %s instead", e.MountPoint)
		}
	}
	return errors.New("share is not in the mount table after mounting")
}

// clearLeftover removes an empty directory left at mountPoint. Anything
// else there blocks the mount.
func (a *Actuator) clearLeftover(mountPoint string) error {
	fi, err := a.lstat(mountPoint)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspect mount point: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s exists and is not a directory", mountPoint)
	}
	if err := a.remove(mountPoint); err != nil {
		return fmt.Errorf("%s already exists: %w", mountPoint, err)
	}
	return nil
}

// CheckReachable opens and closes a TCP connection to the SMB port of host.
func (a *Actuator) CheckReachable(ctx context.Context, host string) error {
	o := a.Options()

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanReachable)
	defer span.End()

	dialCtx, cancel := context.WithTimeout(ctx, o.ReachabilityTimeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(o.Port))
	conn, err := a.dial(dialCtx, "tcp", addr)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("%s is not reachable: %w", addr, err)
	}
	_ = conn.Close()
	return nil
}

// run executes c bounded by timeout. A run cut short by the timeout returns
// an error wrapping ErrTimeout.
func (a *Actuator) run(ctx context.Context, timeout time.Duration, c command) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := a.runner.Run(runCtx, c.name, c.args...)
	output := strings.TrimSpace(string(out))
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return output, fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, err)
	}
	return output, err
}
