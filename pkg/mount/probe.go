package mount

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/remounter/pkg/share"
)

// Signal is the health of one share as seen by a single probe.
type Signal int

const (
	// NotMounted: the mount point is not an active mount of the share.
	NotMounted Signal = iota
	// MountedHealthy: mounted and the liveness check answered.
	MountedHealthy
	// MountedStale: listed as mounted but the liveness check failed or
	// timed out. The session behind the mount is most likely dead.
	MountedStale
)

func (s Signal) String() string {
	switch s {
	case NotMounted:
		return "NotMounted"
	case MountedHealthy:
		return "MountedHealthy"
	case MountedStale:
		return "MountedStale"
	default:
		return fmt.Sprintf("Signal(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Signal) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ProbeResult is the outcome of Prober.Probe. Cause explains a MountedStale
// signal (ErrProbeTimeout, an I/O error, or a mount table read failure).
type ProbeResult struct {
	Signal   Signal
	Entry    Entry
	Cause    error
	Duration time.Duration
}

// Checker performs the liveness check on a mounted path. It must return
// promptly once ctx is done.
type Checker func(ctx context.Context, path string) error

// Prober classifies shares as NotMounted, MountedHealthy or MountedStale.
// Probing has no side effects on the mount table.
type Prober struct {
	table   Table
	check   Checker
	timeout atomic.Int64 // nanoseconds
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithChecker replaces the default ReadDir liveness check.
func WithChecker(c Checker) ProberOption {
	return func(p *Prober) { p.check = c }
}

// NewProber creates a Prober reading mounts from table. Each liveness check
// is bounded by timeout.
func NewProber(table Table, timeout time.Duration, opts ...ProberOption) *Prober {
	p := &Prober{
		table: table,
		check: NewReadDirChecker().Check,
	}
	p.timeout.Store(int64(timeout))
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetTimeout changes the liveness bound for subsequent probes.
func (p *Prober) SetTimeout(d time.Duration) {
	if d > 0 {
		p.timeout.Store(int64(d))
	}
}

// Timeout returns the current liveness bound.
func (p *Prober) Timeout() time.Duration {
	return time.Duration(p.timeout.Load())
}

// Probe reports the health of d.
func (p *Prober) Probe(ctx context.Context, d share.Descriptor) ProbeResult {
	start := time.Now()

	entries, err := p.table.List(ctx)
	if err != nil {
		// Without a mount table nothing can be confirmed; report stale so the
		// controller retries through the normal backoff path.
		return ProbeResult{Signal: MountedStale, Cause: err, Duration: time.Since(start)}
	}

	entry, ok := Find(entries, d)
	if !ok {
		return ProbeResult{Signal: NotMounted, Duration: time.Since(start)}
	}

	checkCtx, cancel := context.WithTimeout(ctx, p.Timeout())
	defer cancel()

	if err := p.check(checkCtx, d.MountPoint); err != nil {
		return ProbeResult{Signal: MountedStale, Entry: entry, Cause: err, Duration: time.Since(start)}
	}
	return ProbeResult{Signal: MountedHealthy, Entry: entry, Duration: time.Since(start)}
}

// ReadDirChecker lists the mount point in a goroutine and gives up when the
// context ends. A read blocked on a dead SMB session can stay stuck in the
// kernel; while it is stuck, later checks of the same path fail immediately
// instead of piling up more blocked goroutines.
type ReadDirChecker struct {
	mu       sync.Mutex
	inflight map[string]bool
	readDir  func(string) ([]os.DirEntry, error)
}

// NewReadDirChecker creates a checker backed by os.ReadDir.
func NewReadDirChecker() *ReadDirChecker {
	return &ReadDirChecker{
		inflight: make(map[string]bool),
		readDir:  os.ReadDir,
	}
}

// Check implements Checker.
func (c *ReadDirChecker) Check(ctx context.Context, path string) error {
	c.mu.Lock()
	if c.inflight[path] {
		c.mu.Unlock()
		return fmt.Errorf("%w: previous check of %s still blocked", ErrProbeTimeout, path)
	}
	c.inflight[path] = true
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := c.readDir(path)
		c.mu.Lock()
		delete(c.inflight, path)
		c.mu.Unlock()
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("liveness check of %s: %w", path, err)
		}
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrProbeTimeout
		}
		return ctx.Err()
	}
}
