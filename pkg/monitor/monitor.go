// Package monitor keeps configured SMB shares mounted.
//
// A Monitor ticks on a fixed interval and asks every share's Controller to
// evaluate itself. Controllers are independent: one share failing, backing
// off or hanging in a remount never delays another. Within one share,
// evaluations are strictly sequential and at most one remount is in flight,
// enforced by the Remounting state.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/remounter/internal/logger"
	"github.com/marmos91/remounter/pkg/share"
)

// DefaultPollInterval is used when no interval is configured.
const DefaultPollInterval = 5 * time.Second

var (
	// ErrAlreadyRunning is returned by Run when the monitor is running.
	ErrAlreadyRunning = errors.New("monitor already running")

	// ErrDuplicateMountPoint rejects two shares targeting the same path.
	ErrDuplicateMountPoint = errors.New("duplicate mount point")

	// ErrNotFound is returned when no controller matches a share key.
	ErrNotFound = errors.New("share not found")

	// ErrStopping rejects manual remounts once shutdown has begun.
	ErrStopping = errors.New("monitor is shutting down")
)

// Monitor is the process's scheduling loop.
type Monitor struct {
	controllers []*Controller
	interval    atomic.Int64
	reset       chan time.Duration
	running     atomic.Bool
	inflight    sync.WaitGroup

	// stopping guards inflight.Add against the shutdown Wait.
	mu       sync.Mutex
	stopping bool
}

// New creates a monitor over controllers. Two controllers sharing a mount
// point is a configuration error.
func New(controllers []*Controller, interval time.Duration) (*Monitor, error) {
	seen := make(map[string]string, len(controllers))
	for _, c := range controllers {
		mp := c.Descriptor().MountPoint
		if other, ok := seen[mp]; ok {
			return nil, fmt.Errorf("%w: %s used by %q and %q", ErrDuplicateMountPoint, mp, other, c.Descriptor().Name)
		}
		seen[mp] = c.Descriptor().Name
	}

	m := &Monitor{
		controllers: controllers,
		reset:       make(chan time.Duration, 1),
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	m.interval.Store(int64(interval))
	return m, nil
}

// Build creates one controller per descriptor with the same prober,
// actuator and options, then the monitor over them.
func Build(descs []share.Descriptor, prober Prober, actuator Remounter, interval time.Duration, opts ...ControllerOption) (*Monitor, error) {
	controllers := make([]*Controller, 0, len(descs))
	for _, d := range descs {
		controllers = append(controllers, NewController(d, prober, actuator, opts...))
	}
	return New(controllers, interval)
}

// Interval returns the poll interval.
func (m *Monitor) Interval() time.Duration {
	return time.Duration(m.interval.Load())
}

// SetInterval changes the poll interval. A running loop picks it up at its
// next wakeup.
func (m *Monitor) SetInterval(d time.Duration) {
	if d <= 0 || d == m.Interval() {
		return
	}
	m.interval.Store(int64(d))
	select {
	case m.reset <- d:
	default:
		// A reset is already pending; the loop reads the latest interval.
	}
}

// SetBackoff applies b to every controller.
func (m *Monitor) SetBackoff(b Backoff) {
	for _, c := range m.controllers {
		c.SetBackoff(b)
	}
}

// Options are the monitor settings that can change while it runs.
type Options struct {
	Interval time.Duration
	Backoff  Backoff
}

// UpdateOptions applies reloaded settings. Zero fields are left unchanged.
func (m *Monitor) UpdateOptions(o Options) {
	if o.Interval > 0 {
		m.SetInterval(o.Interval)
	}
	if o.Backoff.Base > 0 {
		m.SetBackoff(o.Backoff)
	}
}

// Run evaluates every share immediately and then once per interval until
// ctx is cancelled. On cancellation it stops scheduling and waits for the
// evaluations already running; remounts in flight are not interrupted.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)

	m.mu.Lock()
	m.stopping = false
	m.mu.Unlock()

	// Work started by the loop must outlive ctx so that shutdown never cuts
	// an unmount/mount pair in half.
	work := context.WithoutCancel(ctx)

	logger.Info("Monitor started", "shares", len(m.controllers), "interval", m.Interval().String())
	m.Tick(work)

	ticker := time.NewTicker(m.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Monitor stopping, waiting for in-flight evaluations")
			m.mu.Lock()
			m.stopping = true
			m.mu.Unlock()
			m.inflight.Wait()
			logger.Info("Monitor stopped")
			return nil
		case <-m.reset:
			ticker.Reset(m.Interval())
		case <-ticker.C:
			m.Tick(work)
		}
	}
}

// Tick starts an evaluation of every share that is not still busy with the
// previous one, and returns how many were started. It does not wait for
// them.
func (m *Monitor) Tick(ctx context.Context) int {
	started := 0
	for _, c := range m.controllers {
		if !c.tryBegin() {
			logger.Debug("Previous evaluation still running, skipping tick", logger.Share(c.Descriptor().Name))
			continue
		}
		started++
		m.inflight.Add(1)
		go func(c *Controller) {
			defer m.inflight.Done()
			defer c.end()
			c.Evaluate(ctx)
		}(c)
	}
	return started
}

// Wait blocks until every evaluation started by Tick has returned.
func (m *Monitor) Wait() {
	m.inflight.Wait()
}

// Controllers returns the controllers in configuration order.
func (m *Monitor) Controllers() []*Controller {
	return append([]*Controller(nil), m.controllers...)
}

// Controller finds a controller by share name or mount point.
func (m *Monitor) Controller(key string) (*Controller, error) {
	name := share.NormalizeName(key)
	for _, c := range m.controllers {
		d := c.Descriptor()
		if d.Name == name || d.MountPoint == key {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Snapshots returns the state of every share in configuration order.
func (m *Monitor) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(m.controllers))
	for _, c := range m.controllers {
		out = append(out, c.Snapshot())
	}
	return out
}

// Snapshot returns the state of the share matching key.
func (m *Monitor) Snapshot(key string) (Snapshot, error) {
	c, err := m.Controller(key)
	if err != nil {
		return Snapshot{}, err
	}
	return c.Snapshot(), nil
}

// ForceRemount triggers a manual remount of the share matching key. The
// remount runs detached from ctx cancellation. Once Run is shutting down it
// returns ErrStopping.
func (m *Monitor) ForceRemount(ctx context.Context, key string) error {
	c, err := m.Controller(key)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return ErrStopping
	}
	m.inflight.Add(1)
	m.mu.Unlock()
	defer m.inflight.Done()

	return c.ForceRemount(context.WithoutCancel(ctx))
}
