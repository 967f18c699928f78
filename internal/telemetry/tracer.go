package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys.
const (
	AttrShare      = "smb.share"
	AttrHost       = "smb.host"
	AttrMountPoint = "mount.point"
	AttrSignal     = "mount.signal"
	AttrMethod     = "mount.method"
	AttrHealth     = "remounter.health"
	AttrFailures   = "remounter.consecutive_failures"
	AttrAttemptID  = "remounter.attempt_id"
	AttrTrigger    = "remounter.trigger"
	AttrScript     = "hook.script"
	AttrExitCode   = "hook.exit_code"
)

// Span names. Format: <component>.<operation>
const (
	SpanEvaluate  = "controller.evaluate"
	SpanAttempt   = "controller.remount"
	SpanProbe     = "prober.probe"
	SpanRemount   = "actuator.remount"
	SpanUnmount   = "actuator.unmount"
	SpanMount     = "actuator.mount"
	SpanReachable = "actuator.reachability"
	SpanHook      = "hook.run"
)

// ShareAttributes returns the identifying attributes of a share.
func ShareAttributes(host, name, mountPoint string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrHost, host),
		attribute.String(AttrShare, name),
		attribute.String(AttrMountPoint, mountPoint),
	}
}

// WithShare is a span start option tagging the span with a share.
func WithShare(host, name, mountPoint string) trace.SpanStartOption {
	return trace.WithAttributes(ShareAttributes(host, name, mountPoint)...)
}
