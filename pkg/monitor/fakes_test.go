package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/remounter/pkg/mount"
	"github.com/marmos91/remounter/pkg/share"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeProber returns queued signals first, then the current default.
type fakeProber struct {
	mu     sync.Mutex
	signal mount.Signal
	queue  []mount.Signal
	calls  int
}

func (p *fakeProber) Probe(context.Context, share.Descriptor) mount.ProbeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	sig := p.signal
	if len(p.queue) > 0 {
		sig, p.queue = p.queue[0], p.queue[1:]
	}
	return mount.ProbeResult{Signal: sig}
}

func (p *fakeProber) set(sig mount.Signal) {
	p.mu.Lock()
	p.signal = sig
	p.mu.Unlock()
}

func (p *fakeProber) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// fakeActuator returns queued errors (nil once the queue is empty), can
// block until released, and tracks how many remounts overlap.
type fakeActuator struct {
	mu      sync.Mutex
	errs    []error
	calls   int
	hooks   int
	block   chan struct{}
	entered chan struct{}

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (a *fakeActuator) Remount(context.Context, share.Descriptor) error {
	n := a.inflight.Add(1)
	defer a.inflight.Add(-1)
	for {
		m := a.maxInflight.Load()
		if n <= m || a.maxInflight.CompareAndSwap(m, n) {
			break
		}
	}

	a.mu.Lock()
	a.calls++
	block, entered := a.block, a.entered
	a.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	var err error
	if len(a.errs) > 0 {
		err, a.errs = a.errs[0], a.errs[1:]
	}
	if err == nil {
		a.hooks++
	}
	return err
}

func (a *fakeActuator) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *fakeActuator) Hooks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hooks
}

type transitionLog struct {
	mu   sync.Mutex
	list []Transition
}

func (l *transitionLog) record(t Transition) {
	l.mu.Lock()
	l.list = append(l.list, t)
	l.mu.Unlock()
}

func (l *transitionLog) pairs() [][2]Health {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][2]Health, 0, len(l.list))
	for _, t := range l.list {
		out = append(out, [2]Health{t.From, t.To})
	}
	return out
}

func (l *transitionLog) reset() {
	l.mu.Lock()
	l.list = nil
	l.mu.Unlock()
}

type memoryRecorder struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (r *memoryRecorder) RecordAttempt(_ context.Context, a Attempt) error {
	r.mu.Lock()
	r.attempts = append(r.attempts, a)
	r.mu.Unlock()
	return nil
}
