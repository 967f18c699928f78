package logger

import (
	"log/slog"
	"time"
)

// Field keys shared by every log statement. Keep them stable: dashboards and
// log queries depend on the names.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Share identity
	KeyShare      = "share"
	KeyHost       = "host"
	KeyMountPoint = "mount_point"

	// Health state machine
	KeyHealth     = "health"
	KeyFrom       = "from"
	KeyTo         = "to"
	KeySignal     = "signal"
	KeyFailures   = "failures"
	KeyBackoffMs  = "backoff_ms"
	KeyNextTry    = "next_attempt"
	KeyAttemptID  = "attempt_id"
	KeyTrigger    = "trigger"
	KeyDurationMs = "duration_ms"

	// OS operations
	KeyCommand = "command"
	KeyOutput  = "output"
	KeyFSType  = "fstype"
	KeyDevice  = "device"
	KeyFoundAt = "found_at"

	// Hook
	KeyScript   = "script"
	KeyExitCode = "exit_code"

	KeyError = "error"
)

// TraceID creates a trace ID attribute
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID creates a span ID attribute
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Share creates a share name attribute
func Share(name string) slog.Attr {
	return slog.String(KeyShare, name)
}

// Host creates an SMB host attribute
func Host(host string) slog.Attr {
	return slog.String(KeyHost, host)
}

// MountPoint creates a local mount point attribute
func MountPoint(p string) slog.Attr {
	return slog.String(KeyMountPoint, p)
}

// Device creates a mount table device attribute
func Device(dev string) slog.Attr {
	return slog.String(KeyDevice, dev)
}

// FSType creates a filesystem type attribute
func FSType(fs string) slog.Attr {
	return slog.String(KeyFSType, fs)
}

// FoundAt creates an attribute for where a share was actually mounted
func FoundAt(p string) slog.Attr {
	return slog.String(KeyFoundAt, p)
}

// Health creates a health state attribute
func Health(h string) slog.Attr {
	return slog.String(KeyHealth, h)
}

// Signal creates a probe signal attribute
func Signal(s string) slog.Attr {
	return slog.String(KeySignal, s)
}

// Failures creates a consecutive failure count attribute
func Failures(n int) slog.Attr {
	return slog.Int(KeyFailures, n)
}

// BackoffMs creates a backoff delay attribute
func BackoffMs(d time.Duration) slog.Attr {
	return slog.Int64(KeyBackoffMs, d.Milliseconds())
}

// NextAttempt creates an attribute for the backoff gate timestamp
func NextAttempt(t time.Time) slog.Attr {
	return slog.Time(KeyNextTry, t)
}

// AttemptID creates a remount attempt ID attribute
func AttemptID(id string) slog.Attr {
	return slog.String(KeyAttemptID, id)
}

// DurationMs creates a duration attribute in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Command creates an attribute with the OS command line that was run
func Command(cmd string) slog.Attr {
	return slog.String(KeyCommand, cmd)
}

// Output creates an attribute with trimmed command output
func Output(out string) slog.Attr {
	return slog.String(KeyOutput, out)
}

// Script creates a hook script attribute
func Script(path string) slog.Attr {
	return slog.String(KeyScript, path)
}

// ExitCode creates a process exit code attribute
func ExitCode(code int) slog.Attr {
	return slog.Int(KeyExitCode, code)
}

// Err creates an error attribute
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
