package handlers

import (
	"time"

	"github.com/marmos91/remounter/pkg/monitor"
)

// Response is the envelope of the health endpoints.
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func healthyResponse(data any) Response {
	return Response{Status: "healthy", Timestamp: time.Now().UTC(), Data: data}
}

func unhealthyResponse(errMsg string, data any) Response {
	return Response{Status: "unhealthy", Timestamp: time.Now().UTC(), Error: errMsg, Data: data}
}

// ShareStatus is the JSON view of one share's state.
type ShareStatus struct {
	Name                 string     `json:"name"`
	Host                 string     `json:"host"`
	MountPoint           string     `json:"mount_point"`
	Health               string     `json:"health"`
	ConsecutiveFailures  int        `json:"consecutive_failures"`
	NextEligibleAttempt  *time.Time `json:"next_eligible_attempt,omitempty"`
	LastMountSucceededAt *time.Time `json:"last_mount_succeeded_at,omitempty"`
	LastSignal           string     `json:"last_signal,omitempty"`
	LastProbeAt          *time.Time `json:"last_probe_at,omitempty"`
	LastError            string     `json:"last_error,omitempty"`
	Attempts             int        `json:"attempts"`
}

// RemountResult is the body of a forced remount response. A failed remount
// is a result, not an API error: Success is false and Error holds the cause.
type RemountResult struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Share   ShareStatus `json:"share"`
}

// NewShareStatus converts a snapshot to its JSON view.
func NewShareStatus(s monitor.Snapshot) ShareStatus {
	st := ShareStatus{
		Name:                 s.Share.Name,
		Host:                 s.Share.Host,
		MountPoint:           s.Share.MountPoint,
		Health:               s.Health.String(),
		ConsecutiveFailures:  s.ConsecutiveFailures,
		NextEligibleAttempt:  timePtr(s.NextEligibleAttempt),
		LastMountSucceededAt: timePtr(s.LastMountSucceededAt),
		LastProbeAt:          timePtr(s.LastProbeAt),
		LastError:            s.LastError,
		Attempts:             s.Attempts,
	}
	if !s.LastProbeAt.IsZero() {
		st.LastSignal = s.LastSignal.String()
	}
	return st
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
