package mount

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/remounter/pkg/share"
)

type fakeTable struct {
	mu      sync.Mutex
	entries []Entry
	err     error
	calls   int
}

func (f *fakeTable) List(context.Context) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]Entry(nil), f.entries...), f.err
}

func (f *fakeTable) set(entries ...Entry) {
	f.mu.Lock()
	f.entries = entries
	f.mu.Unlock()
}

type fakeResult struct {
	out string
	err error
}

// fakeRunner answers commands by their program name, in order.
type fakeRunner struct {
	mu      sync.Mutex
	results map[string][]fakeResult
	calls   []string
	onRun   func(name string, args []string)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{results: make(map[string][]fakeResult)}
}

func (f *fakeRunner) on(name, out string, err error) *fakeRunner {
	f.results[name] = append(f.results[name], fakeResult{out: out, err: err})
	return f
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	var r fakeResult
	if queue := f.results[name]; len(queue) > 0 {
		r = queue[0]
		f.results[name] = queue[1:]
	}
	hook := f.onRun
	f.mu.Unlock()

	if hook != nil {
		hook(name, args)
	}
	return []byte(r.out), r.err
}

// tracks makes table follow the commands: an unmount empties it and a
// mount puts mounted in it.
func (f *fakeRunner) tracks(table *fakeTable, mounted Entry) *fakeRunner {
	f.onRun = func(name string, _ []string) {
		switch name {
		case "umount", "diskutil":
			table.set()
		case "mount", "mount_smbfs", "osascript":
			table.set(mounted)
		}
	}
	return f
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeConn struct{ net.Conn }

func (fakeConn) Close() error { return nil }

func dialOK(context.Context, string, string) (net.Conn, error) { return fakeConn{}, nil }

func dialFail(context.Context, string, string) (net.Conn, error) {
	return nil, errors.New("connect: connection refused")
}

func noMkdir(string, os.FileMode) error { return nil }

func noLeftover(string) (os.FileInfo, error) { return nil, os.ErrNotExist }

func leftoverDir(string) (os.FileInfo, error) { return dirInfo{}, nil }

type dirInfo struct{}

func (dirInfo) Name() string       { return "docs" }
func (dirInfo) Size() int64        { return 0 }
func (dirInfo) Mode() os.FileMode  { return os.ModeDir | 0755 }
func (dirInfo) ModTime() time.Time { return time.Time{} }
func (dirInfo) IsDir() bool        { return true }
func (dirInfo) Sys() any           { return nil }

// recordingRemove records removed paths and fails with err.
type recordingRemove struct {
	err     error
	removed []string
}

func (r *recordingRemove) remove(p string) error {
	r.removed = append(r.removed, p)
	return r.err
}

type countingHook struct {
	mu    sync.Mutex
	fired int
}

func (h *countingHook) Fire(context.Context, share.Descriptor) {
	h.mu.Lock()
	h.fired++
	h.mu.Unlock()
}

func (h *countingHook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fired
}

var osSymlink = os.Symlink
