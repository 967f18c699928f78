package mount

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/marmos91/remounter/pkg/share"
)

// Method selects the OS utility used to mount a share.
type Method string

const (
	MethodAuto       Method = "auto"
	MethodOSAScript  Method = "osascript"   // Finder "mount volume", keychain credentials, /Volumes only
	MethodMountSMBFS Method = "mount_smbfs" // darwin, any mount point
	MethodCIFS       Method = "cifs"        // linux mount.cifs
)

// command is one argv to run.
type command struct {
	name string
	args []string
}

func (c command) String() string {
	return commandLine(c.name, c.args)
}

// resolveMethod picks the concrete method for goos. On darwin "auto" uses
// the Finder path when the share lives at /Volumes/<name>, which is where
// Finder places it, and mount_smbfs everywhere else.
func resolveMethod(m Method, goos string, d share.Descriptor) (Method, error) {
	switch m {
	case "", MethodAuto:
		switch goos {
		case "darwin":
			if d.MountPoint == filepath.Join("/Volumes", d.Name) {
				return MethodOSAScript, nil
			}
			return MethodMountSMBFS, nil
		case "linux":
			return MethodCIFS, nil
		}
	case MethodOSAScript, MethodMountSMBFS:
		if goos == "darwin" {
			return m, nil
		}
	case MethodCIFS:
		if goos == "linux" {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q on %s", ErrUnsupported, m, goos)
}

// mountCommand builds the mount argv for d.
func mountCommand(m Method, d share.Descriptor, opts Options) command {
	switch m {
	case MethodOSAScript:
		script := fmt.Sprintf("mount volume %q", d.URL(opts.Username))
		return command{name: "osascript", args: []string{"-e", script}}

	case MethodMountSMBFS:
		var args []string
		if opts.Options != "" {
			args = append(args, "-o", opts.Options)
		}
		source := smbURL(d, opts)
		args = append(args, source, d.MountPoint)
		return command{name: "mount_smbfs", args: args}

	default:
		o := []string{}
		if opts.Port != 0 {
			o = append(o, "port="+strconv.Itoa(opts.Port))
		}
		if opts.Username != "" {
			o = append(o, "username="+opts.Username)
		}
		if opts.Options != "" {
			o = append(o, opts.Options)
		}
		args := []string{"-t", "cifs"}
		if len(o) > 0 {
			args = append(args, "-o", strings.Join(o, ","))
		}
		args = append(args, d.UNC(), d.MountPoint)
		return command{name: "mount", args: args}
	}
}

// smbURL renders smb://[user@]host[:port]/share. The port is omitted when
// it is the SMB default.
func smbURL(d share.Descriptor, opts Options) string {
	u := url.URL{Scheme: "smb", Host: d.Host, Path: "/" + d.Name}
	if opts.Port != 0 && opts.Port != DefaultSMBPort {
		u.Host = net.JoinHostPort(d.Host, strconv.Itoa(opts.Port))
	}
	if opts.Username != "" {
		u.User = url.User(opts.Username)
	}
	return u.String()
}

// unmountCommands returns the force-unmount argvs for goos, in the order
// they should be tried. A stale SMB mount sometimes refuses the first form.
func unmountCommands(goos, mountPoint string) []command {
	if goos == "darwin" {
		return []command{
			{name: "diskutil", args: []string{"unmount", "force", mountPoint}},
			{name: "umount", args: []string{"-f", mountPoint}},
		}
	}
	return []command{
		{name: "umount", args: []string{"-f", mountPoint}},
		{name: "umount", args: []string{"-l", mountPoint}},
	}
}
