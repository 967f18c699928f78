package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/remounter/internal/logger"
	"github.com/marmos91/remounter/internal/telemetry"
	"github.com/marmos91/remounter/pkg/metrics"
	"github.com/marmos91/remounter/pkg/mount"
	"github.com/marmos91/remounter/pkg/share"
)

// ErrBusy is returned by ForceRemount while a remount of the share is
// already in flight.
var ErrBusy = errors.New("remount already in progress")

// Triggers recorded with transitions and attempts.
const (
	TriggerProbe   = "probe"
	TriggerBackoff = "backoff"
	TriggerManual  = "manual"
)

// Prober reports the health signal of a share.
type Prober interface {
	Probe(ctx context.Context, d share.Descriptor) mount.ProbeResult
}

// Remounter unmounts and mounts a share, firing the post-mount hook on
// success.
type Remounter interface {
	Remount(ctx context.Context, d share.Descriptor) error
}

// State is the mutable part of a share's lifecycle. LastMountSucceededAt is
// the zero time until the first successful mount.
type State struct {
	Health               Health
	ConsecutiveFailures  int
	NextEligibleAttempt  time.Time
	LastMountSucceededAt time.Time
	LastSignal           mount.Signal
	LastProbeAt          time.Time
	LastError            string
	Attempts             int
}

// Snapshot is a point-in-time copy of a controller's state.
type Snapshot struct {
	Share share.Descriptor
	State
}

// Transition describes one health change of a share.
type Transition struct {
	Share    share.Descriptor
	From     Health
	To       Health
	Trigger  string
	Signal   mount.Signal
	Failures int
	Err      error
	At       time.Time
}

// TransitionFunc is called after every health change, outside the
// controller's lock.
type TransitionFunc func(Transition)

// Attempt is one completed remount attempt.
type Attempt struct {
	ID                  string
	Share               share.Descriptor
	Trigger             string
	StartedAt           time.Time
	Duration            time.Duration
	Success             bool
	Error               string
	Failures            int
	NextEligibleAttempt time.Time
}

// Recorder persists remount attempts.
type Recorder interface {
	RecordAttempt(ctx context.Context, a Attempt) error
}

// Controller owns the health state machine of one share. It is safe for
// concurrent use; at most one remount of its share is ever in flight.
type Controller struct {
	desc     share.Descriptor
	prober   Prober
	actuator Remounter
	clock    Clock
	metrics  metrics.MonitorMetrics
	recorder Recorder
	onChange TransitionFunc
	logCtx   *logger.LogContext

	backoff    atomic.Pointer[Backoff]
	evaluating atomic.Bool

	mu    sync.Mutex
	state State
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock replaces the wall clock.
func WithClock(c Clock) ControllerOption {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithBackoff sets the retry policy.
func WithBackoff(b Backoff) ControllerOption {
	return func(ctrl *Controller) { ctrl.backoff.Store(&b) }
}

// WithMetrics records probes, attempts and state. nil disables recording.
func WithMetrics(m metrics.MonitorMetrics) ControllerOption {
	return func(ctrl *Controller) { ctrl.metrics = m }
}

// WithRecorder persists every completed attempt.
func WithRecorder(r Recorder) ControllerOption {
	return func(ctrl *Controller) { ctrl.recorder = r }
}

// WithTransitionFunc registers a callback for health changes.
func WithTransitionFunc(fn TransitionFunc) ControllerOption {
	return func(ctrl *Controller) { ctrl.onChange = fn }
}

// NewController creates a controller for d in the Unknown state.
func NewController(d share.Descriptor, prober Prober, actuator Remounter, opts ...ControllerOption) *Controller {
	c := &Controller{
		desc:     d,
		prober:   prober,
		actuator: actuator,
		clock:    systemClock{},
		logCtx:   logger.NewLogContext(d.Name, d.Host, d.MountPoint),
	}
	c.backoff.Store(ptr(DefaultBackoff()))
	for _, o := range opts {
		o(c)
	}
	return c
}

func ptr[T any](v T) *T { return &v }

// Descriptor returns the share this controller manages.
func (c *Controller) Descriptor() share.Descriptor {
	return c.desc
}

// Backoff returns the current retry policy.
func (c *Controller) Backoff() Backoff {
	return *c.backoff.Load()
}

// SetBackoff replaces the retry policy. It applies from the next failure on;
// an already scheduled NextEligibleAttempt is kept.
func (c *Controller) SetBackoff(b Backoff) {
	c.backoff.Store(&b)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Share: c.desc, State: c.state}
}

// Health returns the current health.
func (c *Controller) Health() Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Health
}

// tryBegin claims the controller for one evaluation. Evaluations of the
// same share never overlap; a tick that finds the previous one still
// running skips the share.
func (c *Controller) tryBegin() bool {
	return c.evaluating.CompareAndSwap(false, true)
}

func (c *Controller) end() {
	c.evaluating.Store(false)
}

// Evaluate probes the share once and acts on the result:
//
//   - MountedHealthy: become Healthy. Failures are not reset.
//   - NotMounted/MountedStale before NextEligibleAttempt: stay Unhealthy.
//   - NotMounted/MountedStale otherwise: remount.
//
// Errors never escape; they become state transitions and log lines.
func (c *Controller) Evaluate(ctx context.Context) {
	if c.Health() == Remounting {
		return
	}

	ctx = logger.WithContext(ctx, c.logCtx)
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanEvaluate, telemetry.WithShare(c.desc.Host, c.desc.Name, c.desc.MountPoint))
	defer span.End()

	res := c.probe(ctx)
	now := c.clock.Now()

	c.mu.Lock()
	c.state.LastSignal = res.Signal
	c.state.LastProbeAt = now

	// A forced remount started while we were probing.
	if c.state.Health == Remounting {
		c.mu.Unlock()
		return
	}

	var events []Transition
	if res.Signal == mount.MountedHealthy {
		events = c.setHealthLocked(events, Healthy, TriggerProbe, res.Signal, nil, now)
		c.mu.Unlock()
		c.emit(ctx, events)
		return
	}

	if now.Before(c.state.NextEligibleAttempt) {
		next := c.state.NextEligibleAttempt
		events = c.setHealthLocked(events, Unhealthy, TriggerBackoff, res.Signal, res.Cause, now)
		c.mu.Unlock()
		c.emit(ctx, events)
		logger.DebugCtx(ctx, "Remount deferred by backoff", logger.Signal(res.Signal.String()), logger.NextAttempt(next))
		return
	}

	if c.state.Health == Healthy {
		events = c.setHealthLocked(events, Unhealthy, TriggerProbe, res.Signal, res.Cause, now)
	}
	events = c.setHealthLocked(events, Remounting, TriggerProbe, res.Signal, res.Cause, now)
	c.mu.Unlock()
	c.emit(ctx, events)

	_ = c.remount(ctx, TriggerProbe)
}

// ForceRemount runs a remount now, ignoring the backoff gate. It returns
// ErrBusy if one is already in flight, otherwise the remount result. The
// share always ends up Healthy or Unhealthy.
func (c *Controller) ForceRemount(ctx context.Context) error {
	now := c.clock.Now()

	c.mu.Lock()
	if c.state.Health == Remounting {
		c.mu.Unlock()
		return ErrBusy
	}
	events := c.setHealthLocked(nil, Remounting, TriggerManual, c.state.LastSignal, nil, now)
	c.mu.Unlock()

	ctx = logger.WithContext(ctx, c.logCtx)
	c.emit(ctx, events)
	return c.remount(ctx, TriggerManual)
}

func (c *Controller) probe(ctx context.Context) mount.ProbeResult {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanProbe)
	defer span.End()

	res := c.prober.Probe(ctx, c.desc)
	telemetry.SetAttributes(ctx, attribute.String(telemetry.AttrSignal, res.Signal.String()))
	if c.metrics != nil {
		c.metrics.RecordProbe(c.desc.Name, res.Signal.String(), res.Duration)
	}

	switch res.Signal {
	case mount.MountedStale:
		logger.WarnCtx(ctx, "Share is mounted but not responding", logger.Signal(res.Signal.String()), logger.Err(res.Cause))
	case mount.NotMounted:
		logger.DebugCtx(ctx, "Share is not mounted")
	}
	return res
}

// remount runs one attempt. The caller has already moved the share to
// Remounting; remount always moves it out again.
func (c *Controller) remount(ctx context.Context, trigger string) error {
	id := uuid.NewString()
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithAttempt(id))
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanAttempt, trace.WithAttributes(
		attribute.String(telemetry.AttrAttemptID, id),
		attribute.String(telemetry.AttrTrigger, trigger),
	))
	defer span.End()
	if lc := logger.FromContext(ctx); lc != nil && telemetry.IsEnabled() {
		ctx = logger.WithContext(ctx, lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx)))
	}

	logger.InfoCtx(ctx, "Remounting share", logger.KeyTrigger, trigger)

	startedAt := c.clock.Now()
	start := time.Now()
	err := c.actuator.Remount(ctx, c.desc)
	elapsed := time.Since(start)
	now := c.clock.Now()

	c.mu.Lock()
	c.state.Attempts++
	var events []Transition
	if err == nil {
		c.state.ConsecutiveFailures = 0
		c.state.LastMountSucceededAt = now
		c.state.NextEligibleAttempt = time.Time{}
		c.state.LastError = ""
		events = c.setHealthLocked(events, Healthy, trigger, c.state.LastSignal, nil, now)
	} else {
		c.state.ConsecutiveFailures++
		c.state.NextEligibleAttempt = now.Add(c.Backoff().Delay(c.state.ConsecutiveFailures))
		c.state.LastError = err.Error()
		events = c.setHealthLocked(events, Unhealthy, trigger, c.state.LastSignal, err, now)
	}
	attempt := Attempt{
		ID:                  id,
		Share:               c.desc,
		Trigger:             trigger,
		StartedAt:           startedAt,
		Duration:            elapsed,
		Success:             err == nil,
		Failures:            c.state.ConsecutiveFailures,
		NextEligibleAttempt: c.state.NextEligibleAttempt,
	}
	if err != nil {
		attempt.Error = err.Error()
	}
	c.mu.Unlock()

	if err == nil {
		logger.InfoCtx(ctx, "Share remounted", logger.DurationMs(float64(elapsed.Microseconds())/1000.0))
	} else {
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "Remount failed",
			logger.Failures(attempt.Failures),
			logger.BackoffMs(attempt.NextEligibleAttempt.Sub(now)),
			logger.NextAttempt(attempt.NextEligibleAttempt),
			logger.Err(err))
	}

	if c.metrics != nil {
		c.metrics.RecordRemount(c.desc.Name, trigger, err == nil, elapsed)
		c.metrics.SetConsecutiveFailures(c.desc.Name, attempt.Failures)
	}
	if c.recorder != nil {
		if rerr := c.recorder.RecordAttempt(context.WithoutCancel(ctx), attempt); rerr != nil {
			logger.WarnCtx(ctx, "Failed to record remount attempt", logger.Err(rerr))
		}
	}
	c.emit(ctx, events)
	return err
}

// setHealthLocked moves the state machine and appends the transition to
// events when the health actually changes. c.mu must be held.
func (c *Controller) setHealthLocked(events []Transition, to Health, trigger string, sig mount.Signal, err error, now time.Time) []Transition {
	from := c.state.Health
	if from == to {
		return events
	}
	c.state.Health = to
	return append(events, Transition{
		Share:    c.desc,
		From:     from,
		To:       to,
		Trigger:  trigger,
		Signal:   sig,
		Failures: c.state.ConsecutiveFailures,
		Err:      err,
		At:       now,
	})
}

func (c *Controller) emit(ctx context.Context, events []Transition) {
	for _, t := range events {
		args := []any{
			logger.KeyFrom, t.From.String(),
			logger.KeyTo, t.To.String(),
			logger.KeyTrigger, t.Trigger,
			logger.Failures(t.Failures),
		}
		if t.Err != nil {
			args = append(args, logger.Err(t.Err))
		}
		logger.InfoCtx(ctx, "Share health changed", args...)

		if c.metrics != nil {
			c.metrics.SetHealth(c.desc.Name, t.To.String())
		}
		if c.onChange != nil {
			c.onChange(t)
		}
	}
}
