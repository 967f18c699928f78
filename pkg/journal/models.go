package journal

import (
	"time"

	"github.com/marmos91/remounter/pkg/monitor"
	"github.com/marmos91/remounter/pkg/share"
)

// Entry is one recorded remount attempt.
type Entry struct {
	ID                  string     `gorm:"primaryKey;size:36" json:"id"`
	Share               string     `gorm:"not null;size:255;index:idx_share_started,priority:1" json:"share"`
	Host                string     `gorm:"not null;size:255" json:"host"`
	MountPoint          string     `gorm:"not null;size:4096" json:"mount_point"`
	Trigger             string     `gorm:"not null;size:16" json:"trigger"`
	StartedAt           time.Time  `gorm:"not null;index:idx_share_started,priority:2;index" json:"started_at"`
	DurationMs          int64      `json:"duration_ms"`
	Success             bool       `json:"success"`
	Error               string     `gorm:"type:text" json:"error,omitempty"`
	Failures            int        `json:"consecutive_failures"`
	NextEligibleAttempt *time.Time `json:"next_eligible_attempt,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// TableName returns the table name for Entry.
func (Entry) TableName() string {
	return "remount_attempts"
}

// Duration returns the attempt duration.
func (e *Entry) Duration() time.Duration {
	return time.Duration(e.DurationMs) * time.Millisecond
}

func entryFromAttempt(a monitor.Attempt) *Entry {
	e := &Entry{
		ID:         a.ID,
		Share:      a.Share.Name,
		Host:       a.Share.Host,
		MountPoint: a.Share.MountPoint,
		Trigger:    a.Trigger,
		StartedAt:  a.StartedAt.UTC(),
		DurationMs: a.Duration.Milliseconds(),
		Success:    a.Success,
		Error:      a.Error,
		Failures:   a.Failures,
	}
	if !a.NextEligibleAttempt.IsZero() {
		next := a.NextEligibleAttempt.UTC()
		e.NextEligibleAttempt = &next
	}
	return e
}

// Attempt converts the entry back into a monitor.Attempt.
func (e *Entry) Attempt() monitor.Attempt {
	a := monitor.Attempt{
		ID:        e.ID,
		Share:     share.Descriptor{Host: e.Host, Name: e.Share, MountPoint: e.MountPoint},
		Trigger:   e.Trigger,
		StartedAt: e.StartedAt,
		Duration:  e.Duration(),
		Success:   e.Success,
		Error:     e.Error,
		Failures:  e.Failures,
	}
	if e.NextEligibleAttempt != nil {
		a.NextEligibleAttempt = *e.NextEligibleAttempt
	}
	return a
}
