//go:build !windows

package hook

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/remounter/internal/logger"
	"github.com/marmos91/remounter/pkg/share"
)

var docs = share.New("nas.local", "docs", "/Volumes/docs")

type hookRun struct {
	share   string
	success bool
}

type recordingMetrics struct {
	mu   sync.Mutex
	runs []hookRun
}

func (m *recordingMetrics) RecordHookRun(share string, success bool, _ time.Duration) {
	m.mu.Lock()
	m.runs = append(m.runs, hookRun{share, success})
	m.mu.Unlock()
}

func TestRunPassesShareToScript(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	script := `printf '%s|%s|%s|%s|%s|%s' "$1" "$2" "$3" "$REMOUNTER_HOST" "$REMOUNTER_SHARE" "$REMOUNTER_ATTEMPT_ID" > "` + out + `"`

	m := &recordingMetrics{}
	r := New(Options{Script: script}, WithMetrics(m))
	ctx := logger.WithContext(context.Background(), logger.NewLogContext("docs", "nas.local", "/Volumes/docs").WithAttempt("a-1"))

	require.NoError(t, r.Run(ctx, docs))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "nas.local|docs|/Volumes/docs|nas.local|docs|a-1", string(got))
	assert.Equal(t, []hookRun{{"docs", true}}, m.runs)
}

func TestRunReportsExitCode(t *testing.T) {
	m := &recordingMetrics{}
	r := New(Options{Script: "echo oops >&2; exit 3"}, WithMetrics(m))

	err := r.Run(context.Background(), docs)

	require.ErrorIs(t, err, ErrHookFailed)
	var he *Error
	require.ErrorAs(t, err, &he)
	assert.Equal(t, 3, he.ExitCode)
	assert.Equal(t, "oops", he.Output)
	assert.Equal(t, []hookRun{{"docs", false}}, m.runs)
}

func TestRunTimesOut(t *testing.T) {
	r := New(Options{Script: "sleep 10", Timeout: 100 * time.Millisecond})

	start := time.Now()
	err := r.Run(context.Background(), docs)

	require.ErrorIs(t, err, ErrHookFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var he *Error
	require.ErrorAs(t, err, &he)
	assert.Equal(t, -1, he.ExitCode)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDisabledHookDoesNothing(t *testing.T) {
	r := New(Options{})

	assert.False(t, r.Enabled())
	assert.NoError(t, r.Run(context.Background(), docs))
	r.Fire(context.Background(), docs)
	assert.NoError(t, r.Wait(context.Background()))
}

func TestFireSurvivesCancelledContext(t *testing.T) {
	out := filepath.Join(t.TempDir(), "fired")
	r := New(Options{Script: `sleep 0.1; touch "` + out + `"`})

	ctx, cancel := context.WithCancel(context.Background())
	r.Fire(ctx, docs)
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, r.Wait(waitCtx))
	assert.FileExists(t, out)
}

func TestFireSwallowsFailure(t *testing.T) {
	m := &recordingMetrics{}
	r := New(Options{Script: "exit 1"}, WithMetrics(m))

	r.Fire(context.Background(), docs)
	require.NoError(t, r.Wait(context.Background()))
	assert.Equal(t, []hookRun{{"docs", false}}, m.runs)
}

func TestSetOptionsDefaults(t *testing.T) {
	r := New(Options{Script: "true"})
	o := r.Options()
	assert.Equal(t, DefaultTimeout, o.Timeout)
	assert.Equal(t, "/bin/sh", o.Shell)
	assert.Equal(t, DefaultMaxOutput, o.MaxOutput)

	r.SetOptions(Options{})
	assert.False(t, r.Enabled())
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 110)
	got := truncate(long, 100)
	assert.True(t, strings.HasSuffix(got, "...(truncated)"))
	assert.Len(t, got, 100+len("...(truncated)"))

	assert.Equal(t, "short", truncate("short", 100))

	// "é" is two bytes; a cut inside it backs off to the previous rune.
	got = truncate("aé-rest", 2)
	assert.Equal(t, "a...(truncated)", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "aé...(truncated)", truncate("aé-rest", 3))
}

func TestRunTruncatesOutput(t *testing.T) {
	r := New(Options{Script: "printf '%0200d' 0; exit 1", MaxOutput: 16})

	err := r.Run(context.Background(), docs)

	var he *Error
	require.ErrorAs(t, err, &he)
	assert.Equal(t, strings.Repeat("0", 16)+"...(truncated)", he.Output)
}
