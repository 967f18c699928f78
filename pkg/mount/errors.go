package mount

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProbeTimeout is the cause attached to a MountedStale result when the
	// liveness check did not answer in time.
	ErrProbeTimeout = errors.New("liveness check timed out")

	// ErrUnmountFailed matches every *UnmountError.
	ErrUnmountFailed = errors.New("unmount failed")

	// ErrMountFailed matches every *MountError.
	ErrMountFailed = errors.New("mount failed")

	// Mount failure causes.
	ErrHostUnreachable  = errors.New("host unreachable")
	ErrAuthRequired     = errors.New("authentication required")
	ErrShareNotFound    = errors.New("share or path not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrMountPointBusy   = errors.New("mount point busy")
	ErrTimeout          = errors.New("operation timed out")
	ErrUnsupported      = errors.New("unsupported mount method for platform")
)

// UnmountError reports a failed force-unmount that was not explained by the
// mount point already being gone.
type UnmountError struct {
	MountPoint string
	Command    string
	Output     string
	Err        error
}

func (e *UnmountError) Error() string {
	msg := fmt.Sprintf("unmount %s failed: %v", e.MountPoint, e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *UnmountError) Unwrap() []error {
	return []error{ErrUnmountFailed, e.Err}
}

// MountError reports a failed mount. Cause is one of the Err* causes above
// when the failure could be classified, nil otherwise.
type MountError struct {
	Source     string
	MountPoint string
	Command    string
	Output     string
	Cause      error
	Err        error
}

func (e *MountError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mount %s at %s failed", e.Source, e.MountPoint)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if e.Err != nil && e.Err != e.Cause {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Output != "" {
		fmt.Fprintf(&b, " (output: %s)", e.Output)
	}
	return b.String()
}

func (e *MountError) Unwrap() []error {
	errs := []error{ErrMountFailed}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	if e.Err != nil && e.Err != e.Cause {
		errs = append(errs, e.Err)
	}
	return errs
}

// causeHints maps fragments of mount utility output to a failure cause.
// Order matters: the first match wins.
var causeHints = []struct {
	keywords []string
	cause    error
}{
	{[]string{"authentication", "logon failure", "login", "access denied", "broken pipe", "connection reset", "password", "user cancelled", "-128"}, ErrAuthRequired},
	{[]string{"connection refused", "host is down", "no route to host", "network is unreachable", "could not connect", "unable to find server", "timed out"}, ErrHostUnreachable},
	{[]string{"not found", "no such file", "does not exist", "bad network path", "no such device"}, ErrShareNotFound},
	{[]string{"permission denied", "operation not permitted", "must be superuser"}, ErrPermissionDenied},
	{[]string{"already mounted", "busy", "file exists"}, ErrMountPointBusy},
}

// classifyMountFailure returns the most likely cause of a failed mount, or
// nil when the output matches nothing known.
func classifyMountFailure(output string, err error) error {
	combined := strings.ToLower(output)
	if err != nil {
		combined += " " + strings.ToLower(err.Error())
	}
	for _, h := range causeHints {
		for _, kw := range h.keywords {
			if strings.Contains(combined, kw) {
				return h.cause
			}
		}
	}
	return nil
}

// isNotMountedOutput reports whether unmount output says there was nothing
// to unmount.
func isNotMountedOutput(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "not currently mounted") ||
		strings.Contains(lower, "not mounted") ||
		strings.Contains(lower, "no mount point") ||
		strings.Contains(lower, "not a mount point") ||
		strings.Contains(lower, "mount point not found")
}
