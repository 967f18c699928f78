package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/remounter/pkg/mount"
	"github.com/marmos91/remounter/pkg/share"
)

// perShare routes probes and remounts to a fake per share name.
type perShare struct {
	probers   map[string]*fakeProber
	actuators map[string]*fakeActuator
}

func newPerShare(names ...string) *perShare {
	p := &perShare{probers: map[string]*fakeProber{}, actuators: map[string]*fakeActuator{}}
	for _, n := range names {
		p.probers[n] = &fakeProber{}
		p.actuators[n] = &fakeActuator{}
	}
	return p
}

func (p *perShare) Probe(ctx context.Context, d share.Descriptor) mount.ProbeResult {
	return p.probers[d.Name].Probe(ctx, d)
}

func (p *perShare) Remount(ctx context.Context, d share.Descriptor) error {
	return p.actuators[d.Name].Remount(ctx, d)
}

func TestNewRejectsDuplicateMountPoints(t *testing.T) {
	a := NewController(share.New("nas", "a", "/mnt/x"), &fakeProber{}, &fakeActuator{})
	b := NewController(share.New("nas", "b", "/mnt/x/"), &fakeProber{}, &fakeActuator{})

	_, err := New([]*Controller{a, b}, time.Second)
	assert.ErrorIs(t, err, ErrDuplicateMountPoint)
}

func TestNewDefaultsInterval(t *testing.T) {
	m, err := New(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultPollInterval, m.Interval())
}

func TestTickEvaluatesEveryShare(t *testing.T) {
	p := newPerShare("docs", "media")
	p.probers["docs"].set(mount.NotMounted)
	p.probers["media"].set(mount.MountedHealthy)

	m, err := Build([]share.Descriptor{docsShare, mediaShare}, p, p, time.Second)
	require.NoError(t, err)

	assert.Equal(t, 2, m.Tick(context.Background()))
	m.Wait()

	snaps := m.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, Healthy, snaps[0].Health)
	assert.False(t, snaps[0].LastMountSucceededAt.IsZero())
	assert.Equal(t, Healthy, snaps[1].Health)
	assert.True(t, snaps[1].LastMountSucceededAt.IsZero())
	assert.Equal(t, 1, p.actuators["docs"].Calls())
	assert.Zero(t, p.actuators["media"].Calls())
}

func TestHungRemountDoesNotBlockOtherShares(t *testing.T) {
	p := newPerShare("docs", "media")
	p.probers["docs"].set(mount.MountedStale)
	p.probers["media"].set(mount.MountedHealthy)
	stuck := p.actuators["docs"]
	stuck.block = make(chan struct{})
	stuck.entered = make(chan struct{}, 1)

	m, err := Build([]share.Descriptor{docsShare, mediaShare}, p, p, time.Second)
	require.NoError(t, err)

	require.Equal(t, 2, m.Tick(context.Background()))
	<-stuck.entered

	// docs is still remounting; only media is evaluated.
	for i := 0; i < 3; i++ {
		require.Eventually(t, func() bool {
			c, _ := m.Controller("media")
			return !c.evaluating.Load()
		}, time.Second, time.Millisecond)
		assert.Equal(t, 1, m.Tick(context.Background()))
	}

	docs, err := m.Controller("docs")
	require.NoError(t, err)
	assert.Equal(t, Remounting, docs.Health())
	assert.Equal(t, 1, p.probers["docs"].Calls())
	require.Eventually(t, func() bool { return p.probers["media"].Calls() == 4 }, time.Second, time.Millisecond)

	close(stuck.block)
	m.Wait()
	assert.Equal(t, Healthy, docs.Health())
	assert.Equal(t, 1, stuck.Calls())
}

func TestRunTicksImmediatelyAndDrainsOnCancel(t *testing.T) {
	p := newPerShare("docs")
	p.probers["docs"].set(mount.NotMounted)
	act := p.actuators["docs"]
	act.block = make(chan struct{})
	act.entered = make(chan struct{}, 1)

	m, err := Build([]share.Descriptor{docsShare}, p, p, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	// The first evaluation does not wait for the interval.
	select {
	case <-act.entered:
	case <-time.After(time.Second):
		t.Fatal("first tick did not run")
	}

	assert.ErrorIs(t, m.Run(context.Background()), ErrAlreadyRunning)

	cancel()
	select {
	case <-done:
		t.Fatal("Run returned while a remount was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	// Manual remounts are refused while draining.
	require.Eventually(t, func() bool {
		return errors.Is(m.ForceRemount(context.Background(), "docs"), ErrStopping)
	}, time.Second, time.Millisecond)

	close(act.block)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the remount finished")
	}

	c, _ := m.Controller("docs")
	assert.Equal(t, Healthy, c.Health())
}

func TestRunKeepsTicking(t *testing.T) {
	p := newPerShare("docs")
	p.probers["docs"].set(mount.MountedHealthy)

	m, err := Build([]share.Descriptor{docsShare}, p, p, 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	require.Eventually(t, func() bool { return p.probers["docs"].Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestSetInterval(t *testing.T) {
	p := newPerShare("docs")
	p.probers["docs"].set(mount.MountedHealthy)

	m, err := Build([]share.Descriptor{docsShare}, p, p, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()
	require.Eventually(t, func() bool { return p.probers["docs"].Calls() == 1 }, time.Second, time.Millisecond)

	m.SetInterval(10 * time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, m.Interval())
	require.Eventually(t, func() bool { return p.probers["docs"].Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)

	m.SetInterval(0)
	assert.Equal(t, 10*time.Millisecond, m.Interval())
}

func TestControllerLookup(t *testing.T) {
	m, err := Build([]share.Descriptor{docsShare, mediaShare}, &fakeProber{}, &fakeActuator{}, time.Second)
	require.NoError(t, err)

	c, err := m.Controller("media")
	require.NoError(t, err)
	assert.Equal(t, "media", c.Descriptor().Name)

	c, err = m.Controller("/Volumes/docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", c.Descriptor().Name)

	c, err = m.Controller("/media/")
	require.NoError(t, err)
	assert.Equal(t, "media", c.Descriptor().Name)

	_, err = m.Controller("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMonitorForceRemount(t *testing.T) {
	p := newPerShare("docs")
	m, err := Build([]share.Descriptor{docsShare}, p, p, time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, m.ForceRemount(ctx, "docs"))
	assert.Equal(t, 1, p.actuators["docs"].Hooks())

	assert.ErrorIs(t, m.ForceRemount(context.Background(), "nope"), ErrNotFound)
}

func TestMonitorSetBackoff(t *testing.T) {
	m, err := Build([]share.Descriptor{docsShare, mediaShare}, &fakeProber{}, &fakeActuator{}, time.Second)
	require.NoError(t, err)

	b := Backoff{Base: time.Second, Max: 10 * time.Second}
	m.SetBackoff(b)
	for _, c := range m.Controllers() {
		assert.Equal(t, b, c.Backoff())
	}
}

func TestUpdateOptionsKeepsZeroFields(t *testing.T) {
	m, err := Build([]share.Descriptor{docsShare}, &fakeProber{}, &fakeActuator{}, time.Second, WithBackoff(testPolicy))
	require.NoError(t, err)

	m.UpdateOptions(Options{Interval: 3 * time.Second})
	assert.Equal(t, 3*time.Second, m.Interval())
	assert.Equal(t, testPolicy, m.Controllers()[0].Backoff())

	b := Backoff{Base: 5 * time.Second, Max: time.Minute}
	m.UpdateOptions(Options{Backoff: b})
	assert.Equal(t, 3*time.Second, m.Interval())
	assert.Equal(t, b, m.Controllers()[0].Backoff())
}
