package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/remounter/pkg/journal"
	"github.com/marmos91/remounter/pkg/monitor"
	"github.com/marmos91/remounter/pkg/mount"
	"github.com/marmos91/remounter/pkg/share"
)

type fakeMonitor struct {
	snaps    []monitor.Snapshot
	forceErr error
	forced   []string
	onForce  func(ctx context.Context)
}

func (m *fakeMonitor) Snapshots() []monitor.Snapshot { return m.snaps }

func (m *fakeMonitor) Snapshot(key string) (monitor.Snapshot, error) {
	for _, s := range m.snaps {
		if s.Share.Name == key {
			return s, nil
		}
	}
	return monitor.Snapshot{}, fmt.Errorf("%w: %s", monitor.ErrNotFound, key)
}

func (m *fakeMonitor) ForceRemount(ctx context.Context, key string) error {
	if _, err := m.Snapshot(key); err != nil {
		return err
	}
	m.forced = append(m.forced, key)
	if m.onForce != nil {
		m.onForce(ctx)
	}
	return m.forceErr
}

type fakePinger struct{ err error }

func (p fakePinger) Healthcheck(context.Context) error { return p.err }

type fakeAttempts struct {
	last    journal.Filter
	entries []*journal.Entry
	err     error
}

func (s *fakeAttempts) List(_ context.Context, f journal.Filter) ([]*journal.Entry, error) {
	s.last = f
	return s.entries, s.err
}

var probeTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleMonitor() *fakeMonitor {
	return &fakeMonitor{snaps: []monitor.Snapshot{
		{
			Share: share.New("nas.local", "docs", "/Volumes/docs"),
			State: monitor.State{Health: monitor.Healthy, LastSignal: mount.MountedHealthy, LastProbeAt: probeTime, LastMountSucceededAt: probeTime},
		},
		{
			Share: share.New("nas.local", "media", "/Volumes/media"),
			State: monitor.State{
				Health:              monitor.Unhealthy,
				ConsecutiveFailures: 2,
				NextEligibleAttempt: probeTime.Add(4 * time.Second),
				LastSignal:          mount.NotMounted,
				LastProbeAt:         probeTime,
				LastError:           "host unreachable",
			},
		},
	}}
}

func router(mon Monitor, store AttemptStore) http.Handler {
	r := chi.NewRouter()
	sh := NewShareHandler(mon)
	ah := NewAttemptHandler(store)
	r.Get("/shares", sh.List)
	r.Get("/shares/{name}", sh.Get)
	r.Post("/shares/{name}/remount", sh.Remount)
	r.Get("/shares/{name}/attempts", ah.List)
	r.Get("/attempts", ah.List)
	return r
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestLiveness(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler(nil, nil, "1.2.3").Liveness(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "remounter", data["service"])
	assert.Equal(t, "1.2.3", data["version"])
}

func TestReadiness(t *testing.T) {
	t.Run("NoMonitor", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler(nil, nil, "").Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("CountsByHealth", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler(sampleMonitor(), fakePinger{}, "").Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp Response
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		data := resp.Data.(map[string]any)
		assert.Equal(t, float64(2), data["shares"])
		assert.Equal(t, map[string]any{"Healthy": float64(1), "Unhealthy": float64(1)}, data["health"])
	})

	t.Run("JournalDown", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler(sampleMonitor(), fakePinger{err: errors.New("disk full")}, "").Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "disk full")
	})
}

func TestListShares(t *testing.T) {
	w := serve(router(sampleMonitor(), &fakeAttempts{}), http.MethodGet, "/shares")

	require.Equal(t, http.StatusOK, w.Code)
	var shares []ShareStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&shares))
	require.Len(t, shares, 2)

	assert.Equal(t, "docs", shares[0].Name)
	assert.Equal(t, "Healthy", shares[0].Health)
	assert.Nil(t, shares[0].NextEligibleAttempt)
	require.NotNil(t, shares[0].LastMountSucceededAt)

	assert.Equal(t, "Unhealthy", shares[1].Health)
	assert.Equal(t, 2, shares[1].ConsecutiveFailures)
	assert.Equal(t, "NotMounted", shares[1].LastSignal)
	require.NotNil(t, shares[1].NextEligibleAttempt)
	assert.True(t, shares[1].NextEligibleAttempt.Equal(probeTime.Add(4*time.Second)))
	assert.Nil(t, shares[1].LastMountSucceededAt)
}

func TestGetShare(t *testing.T) {
	h := router(sampleMonitor(), &fakeAttempts{})

	w := serve(h, http.MethodGet, "/shares/media")
	require.Equal(t, http.StatusOK, w.Code)
	var st ShareStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	assert.Equal(t, "/Volumes/media", st.MountPoint)

	w = serve(h, http.MethodGet, "/shares/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ContentTypeProblemJSON, w.Header().Get("Content-Type"))
}

func TestRemountShare(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mon := sampleMonitor()
		w := serve(router(mon, &fakeAttempts{}), http.MethodPost, "/shares/docs/remount")

		require.Equal(t, http.StatusOK, w.Code)
		var res RemountResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		assert.True(t, res.Success)
		assert.Equal(t, "docs", res.Share.Name)
		assert.Equal(t, []string{"docs"}, mon.forced)
	})

	t.Run("FailureIsAResult", func(t *testing.T) {
		mon := sampleMonitor()
		mon.forceErr = errors.New("mount failed: auth required")
		w := serve(router(mon, &fakeAttempts{}), http.MethodPost, "/shares/media/remount")

		require.Equal(t, http.StatusOK, w.Code)
		var res RemountResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "auth required")
	})

	t.Run("Busy", func(t *testing.T) {
		mon := sampleMonitor()
		mon.forceErr = monitor.ErrBusy
		w := serve(router(mon, &fakeAttempts{}), http.MethodPost, "/shares/docs/remount")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("ShuttingDown", func(t *testing.T) {
		mon := sampleMonitor()
		mon.forceErr = monitor.ErrStopping
		w := serve(router(mon, &fakeAttempts{}), http.MethodPost, "/shares/docs/remount")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		w := serve(router(sampleMonitor(), &fakeAttempts{}), http.MethodPost, "/shares/nope/remount")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("DetachedFromRequest", func(t *testing.T) {
		mon := sampleMonitor()
		var ctxErr error
		mon.onForce = func(ctx context.Context) { ctxErr = ctx.Err() }

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		w := httptest.NewRecorder()
		router(mon, &fakeAttempts{}).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/shares/docs/remount", nil).WithContext(ctx))

		assert.NoError(t, ctxErr)
	})
}

func TestListAttempts(t *testing.T) {
	store := &fakeAttempts{entries: []*journal.Entry{{ID: "a-1", Share: "docs", Success: true}}}
	h := router(sampleMonitor(), store)

	w := serve(h, http.MethodGet, "/shares/docs/attempts?limit=5&failed=true&since=2024-06-01T00:00:00Z")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "docs", store.last.Share)
	assert.Equal(t, 5, store.last.Limit)
	assert.True(t, store.last.FailedOnly)
	assert.True(t, store.last.Since.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))

	var entries []journal.Entry
	require.NoError(t, json.NewDecoder(w.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "a-1", entries[0].ID)

	for _, bad := range []string{"/attempts?limit=x", "/attempts?since=yesterday", "/attempts?failed=maybe"} {
		assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, bad).Code, bad)
	}

	store.entries = nil
	w = serve(h, http.MethodGet, "/attempts")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	store.err = errors.New("locked")
	assert.Equal(t, http.StatusInternalServerError, serve(h, http.MethodGet, "/attempts").Code)
}
