package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marmos91/remounter/pkg/monitor"
	"github.com/marmos91/remounter/pkg/share"
)

var (
	docs  = share.New("nas.local", "docs", "/Volumes/docs")
	media = share.New("nas.local", "media", "/Volumes/media")
	t0    = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "state", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func attempt(id string, d share.Descriptor, at time.Time, success bool) monitor.Attempt {
	a := monitor.Attempt{
		ID:        id,
		Share:     d,
		Trigger:   monitor.TriggerProbe,
		StartedAt: at,
		Duration:  1500 * time.Millisecond,
		Success:   success,
	}
	if !success {
		a.Error = "mount failed: host unreachable"
		a.Failures = 1
		a.NextEligibleAttempt = at.Add(2 * time.Second)
	}
	return a
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.ErrorIs(t, err, ErrPathRequired)
}

func TestRecordAndGet(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	a := attempt("a-1", docs, t0, false)
	require.NoError(t, j.RecordAttempt(ctx, a))

	e, err := j.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, "docs", e.Share)
	assert.Equal(t, "/Volumes/docs", e.MountPoint)
	assert.Equal(t, int64(1500), e.DurationMs)
	assert.False(t, e.Success)
	require.NotNil(t, e.NextEligibleAttempt)

	back := e.Attempt()
	assert.Equal(t, docs, back.Share)
	assert.Equal(t, 1500*time.Millisecond, back.Duration)
	assert.True(t, back.NextEligibleAttempt.Equal(t0.Add(2*time.Second)))
	assert.True(t, back.StartedAt.Equal(t0))

	_, err = j.Get(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRecordDuplicateIDFails(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RecordAttempt(ctx, attempt("dup", docs, t0, true)))
	assert.Error(t, j.RecordAttempt(ctx, attempt("dup", docs, t0, true)))
}

func TestList(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RecordAttempt(ctx, attempt("1", docs, t0, false)))
	require.NoError(t, j.RecordAttempt(ctx, attempt("2", docs, t0.Add(time.Minute), true)))
	require.NoError(t, j.RecordAttempt(ctx, attempt("3", media, t0.Add(2*time.Minute), false)))

	t.Run("NewestFirst", func(t *testing.T) {
		entries, err := j.List(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, []string{"3", "2", "1"}, ids(entries))
	})

	t.Run("ByShare", func(t *testing.T) {
		entries, err := j.List(ctx, Filter{Share: "docs"})
		require.NoError(t, err)
		assert.Equal(t, []string{"2", "1"}, ids(entries))
	})

	t.Run("FailedOnly", func(t *testing.T) {
		entries, err := j.List(ctx, Filter{FailedOnly: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"3", "1"}, ids(entries))
	})

	t.Run("Since", func(t *testing.T) {
		entries, err := j.List(ctx, Filter{Since: t0.Add(30 * time.Second)})
		require.NoError(t, err)
		assert.Equal(t, []string{"3", "2"}, ids(entries))
	})

	t.Run("Limit", func(t *testing.T) {
		entries, err := j.List(ctx, Filter{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"3"}, ids(entries))
	})
}

func TestPrune(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RecordAttempt(ctx, attempt("old", docs, t0, true)))
	require.NoError(t, j.RecordAttempt(ctx, attempt("new", docs, t0.Add(48*time.Hour), true)))

	n, err := j.Prune(ctx, t0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids(entries))
}

func TestJournalAsRecorder(t *testing.T) {
	j := openTestJournal(t)
	require.NoError(t, j.Healthcheck(context.Background()))

	var rec monitor.Recorder = j
	require.NoError(t, rec.RecordAttempt(context.Background(), attempt("r", media, t0, true)))

	entries, err := j.List(context.Background(), Filter{Share: "media"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func ids(entries []*Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
