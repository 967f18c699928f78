package mount

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/marmos91/remounter/pkg/share"
)

// Entry is one row of the OS mount table.
type Entry struct {
	Device     string   `json:"device"`
	MountPoint string   `json:"mount_point"`
	FSType     string   `json:"fstype"`
	Options    []string `json:"options,omitempty"`
}

// Table lists the currently active mounts.
type Table interface {
	List(ctx context.Context) ([]Entry, error)
}

// SystemTable reads the live mount table through gopsutil (getfsstat on
// darwin, /proc/self/mountinfo on linux).
type SystemTable struct{}

func (SystemTable) List(ctx context.Context) ([]Entry, error) {
	// all=true: cifs is a nodev filesystem and would be filtered out otherwise.
	parts, err := disk.PartitionsWithContext(ctx, true)
	if err != nil && len(parts) == 0 {
		return nil, fmt.Errorf("failed to read mount table: %w", err)
	}

	entries := make([]Entry, 0, len(parts))
	for _, p := range parts {
		entries = append(entries, Entry{
			Device:     p.Device,
			MountPoint: p.Mountpoint,
			FSType:     p.Fstype,
			Options:    p.Opts,
		})
	}
	return entries, nil
}

var smbFSTypes = map[string]bool{
	"smbfs": true,
	"cifs":  true,
	"smb3":  true,
}

// IsSMB reports whether the entry is an SMB/CIFS mount.
func (e Entry) IsSMB() bool {
	return smbFSTypes[strings.ToLower(e.FSType)]
}

// ShareName extracts the share from an SMB device string such as
// "//user@host/share" (darwin) or "//host/share" (linux).
func (e Entry) ShareName() string {
	dev := strings.TrimPrefix(e.Device, "smb:")
	dev = strings.TrimLeft(dev, "/")
	slash := strings.IndexByte(dev, '/')
	if slash < 0 {
		return ""
	}
	name := strings.Trim(dev[slash+1:], "/")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}

// Find returns the entry mounted at d's mount point if it is an SMB mount
// of d's share. Mount points are compared after symlink resolution
// (/tmp is /private/tmp on darwin). The host is not compared: macOS may
// report an IP address or a NetBIOS name in place of the configured host.
func Find(entries []Entry, d share.Descriptor) (Entry, bool) {
	targets := candidatePaths(d.MountPoint)
	for _, e := range entries {
		if !targets[path.Clean(e.MountPoint)] {
			continue
		}
		if e.IsSMB() && strings.EqualFold(e.ShareName(), d.Name) {
			return e, true
		}
	}
	return Entry{}, false
}

// MountedAt returns whatever is mounted at mountPoint, SMB or not.
func MountedAt(entries []Entry, mountPoint string) (Entry, bool) {
	targets := candidatePaths(mountPoint)
	for _, e := range entries {
		if targets[path.Clean(e.MountPoint)] {
			return e, true
		}
	}
	return Entry{}, false
}

// candidatePaths resolves symlinks in the parent only; touching the mount
// point itself can block when the share is stale.
func candidatePaths(mountPoint string) map[string]bool {
	clean := filepath.Clean(mountPoint)
	paths := map[string]bool{clean: true}
	if parent, err := filepath.EvalSymlinks(filepath.Dir(clean)); err == nil {
		paths[filepath.Join(parent, filepath.Base(clean))] = true
	}
	return paths
}
