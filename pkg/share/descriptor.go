// Package share defines the immutable identity of one monitored SMB share.
package share

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Descriptor identifies one SMB share and where it lives locally. Descriptors
// are built once at startup and never mutated; controllers, probers and the
// actuator all read the same value.
type Descriptor struct {
	Host       string `json:"host" yaml:"host"`
	Name       string `json:"name" yaml:"name"`
	MountPoint string `json:"mount_point" yaml:"mount_point"`
}

// New builds a Descriptor, normalizing the share name ("/docs" and "docs"
// name the same share) and cleaning the mount point.
func New(host, name, mountPoint string) Descriptor {
	return Descriptor{
		Host:       strings.TrimSpace(host),
		Name:       NormalizeName(name),
		MountPoint: filepath.Clean(mountPoint),
	}
}

// NormalizeName trims whitespace and surrounding slashes from a share name.
func NormalizeName(name string) string {
	return strings.Trim(strings.TrimSpace(name), "/")
}

// ParseList splits a comma-separated share list as accepted on the command
// line. Empty entries are dropped.
func ParseList(list string) []string {
	var names []string
	for _, part := range strings.Split(list, ",") {
		if n := NormalizeName(part); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// URL returns the smb:// URL of the share, optionally with a user.
func (d Descriptor) URL(username string) string {
	u := url.URL{Scheme: "smb", Host: d.Host, Path: "/" + d.Name}
	if username != "" {
		u.User = url.User(username)
	}
	return u.String()
}

// UNC returns the //host/share form used by mount.cifs.
func (d Descriptor) UNC() string {
	return "//" + d.Host + "/" + d.Name
}

// String implements fmt.Stringer.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s/%s at %s", d.Host, d.Name, d.MountPoint)
}

// Validate checks the fields needed to mount the share.
func (d Descriptor) Validate() error {
	switch {
	case d.Host == "":
		return fmt.Errorf("share %q: host is required", d.Name)
	case d.Name == "":
		return fmt.Errorf("share name is required")
	case strings.ContainsAny(d.Name, "/\\"):
		return fmt.Errorf("share %q: name must not contain path separators", d.Name)
	case !filepath.IsAbs(d.MountPoint):
		return fmt.Errorf("share %q: mount point %q must be absolute", d.Name, d.MountPoint)
	}
	return nil
}
