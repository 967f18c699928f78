package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/remounter/pkg/hook"
	"github.com/marmos91/remounter/pkg/monitor"
	"github.com/marmos91/remounter/pkg/mount"
	"github.com/marmos91/remounter/pkg/share"
)

// ErrInvalidConfiguration matches every *ConfigurationError.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ConfigurationError lists every problem found in the share set. It is
// fatal at startup.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct-level constraints of cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	return nil
}

// Descriptors turns the configured shares into descriptors in configuration
// order. Every share needs a valid host and a unique mount point; all
// problems are reported together as a *ConfigurationError.
func (c *Config) Descriptors() ([]share.Descriptor, error) {
	return c.descriptors(runtime.GOOS)
}

func (c *Config) descriptors(goos string) ([]share.Descriptor, error) {
	var problems []string
	if len(c.Shares) == 0 {
		problems = append(problems, "no shares configured")
	}

	descs := make([]share.Descriptor, 0, len(c.Shares))
	owner := make(map[string]string, len(c.Shares))
	for i, sc := range c.Shares {
		name := share.NormalizeName(sc.Name)
		if name == "" {
			problems = append(problems, fmt.Sprintf("shares[%d]: empty name", i))
			continue
		}

		host := sc.Host
		if host == "" {
			host = c.Host
		}
		if host == "" {
			problems = append(problems, fmt.Sprintf("share %q: no host", name))
			continue
		}
		if err := validate.Var(host, "hostname_rfc1123|ip"); err != nil {
			problems = append(problems, fmt.Sprintf("share %q: invalid host %q", name, host))
			continue
		}

		mp := sc.MountPoint
		if mp == "" {
			mp = DefaultMountPoint(goos, c.Mount.Root, host, name)
		}
		if !filepath.IsAbs(mp) {
			problems = append(problems, fmt.Sprintf("share %q: mount point %q is not absolute", name, mp))
			continue
		}

		d := share.New(host, name, mp)
		if other, dup := owner[d.MountPoint]; dup {
			problems = append(problems, fmt.Sprintf("shares %q and %q use the same mount point %s", other, name, d.MountPoint))
			continue
		}
		owner[d.MountPoint] = name
		descs = append(descs, d)
	}

	if len(problems) > 0 {
		return nil, &ConfigurationError{Problems: problems}
	}
	return descs, nil
}

// DefaultMountPoint derives the local path of a share: root/name when a
// root is configured, /Volumes/name on macOS and /mnt/host/name elsewhere.
func DefaultMountPoint(goos, root, host, name string) string {
	switch {
	case root != "":
		return filepath.Join(root, name)
	case goos == "darwin":
		return filepath.Join("/Volumes", name)
	default:
		return filepath.Join("/mnt", host, name)
	}
}

// MountOptions returns the actuator settings.
func (c *Config) MountOptions() mount.Options {
	return mount.Options{
		Method:              mount.Method(c.Mount.Method),
		Username:            c.Mount.Username,
		Options:             c.Mount.Options,
		Port:                c.Mount.Port,
		CheckReachability:   c.Mount.ReachabilityEnabled(),
		ReachabilityTimeout: c.Mount.ReachabilityTimeout,
		MountTimeout:        c.Mount.MountTimeout,
		UnmountTimeout:      c.Mount.UnmountTimeout,
	}
}

// BackoffPolicy returns the retry policy.
func (c *Config) BackoffPolicy() monitor.Backoff {
	return monitor.Backoff{Base: c.Backoff.Base, Max: c.Backoff.Max}
}

// HookOptions returns the post-mount script settings.
func (c *Config) HookOptions() hook.Options {
	return hook.Options{Script: c.Hook.Script, Timeout: c.Hook.Timeout, MaxOutput: c.Hook.MaxOutput.Int()}
}
