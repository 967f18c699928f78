package apiclient

import (
	"net/url"
	"strconv"
	"time"
)

// Attempt is one journaled remount attempt.
type Attempt struct {
	ID                  string     `json:"id"`
	Share               string     `json:"share"`
	Host                string     `json:"host"`
	MountPoint          string     `json:"mount_point"`
	Trigger             string     `json:"trigger"`
	StartedAt           time.Time  `json:"started_at"`
	DurationMs          int64      `json:"duration_ms"`
	Success             bool       `json:"success"`
	Error               string     `json:"error,omitempty"`
	Failures            int        `json:"consecutive_failures"`
	NextEligibleAttempt *time.Time `json:"next_eligible_attempt,omitempty"`
}

// AttemptQuery filters ListAttempts.
type AttemptQuery struct {
	Share      string
	Limit      int
	Since      time.Time
	FailedOnly bool
}

// ListAttempts returns journaled attempts, newest first.
func (c *Client) ListAttempts(q AttemptQuery) ([]Attempt, error) {
	path := "/api/v1/attempts"
	if q.Share != "" {
		path = sharePath(q.Share) + "/attempts"
	}

	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if !q.Since.IsZero() {
		v.Set("since", q.Since.UTC().Format(time.RFC3339))
	}
	if q.FailedOnly {
		v.Set("failed", "true")
	}
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var attempts []Attempt
	if err := c.get(path, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}
