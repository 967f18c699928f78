package apiclient

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Share is the state of one monitored share.
type Share struct {
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

// RemountResult is the outcome of a forced remount.
type RemountResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Share   Share  `json:"share"`
}

// sharePath escapes a share name for use in a URL path. Leading slashes
// are dropped, matching how share names are configured.
func sharePath(name string) string {
	return "/api/v1/shares/" + url.PathEscape(strings.TrimLeft(name, "/"))
}

// ListShares returns every monitored share.
func (c *Client) ListShares() ([]Share, error) {
	var shares []Share
	if err := c.get("/api/v1/shares", &shares); err != nil {
		return nil, err
	}
	return shares, nil
}

// GetShare returns one share by name.
func (c *Client) GetShare(name string) (*Share, error) {
	var s Share
	if err := c.get(sharePath(name), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Remount forces a remount of the share and waits for its result. An
// *APIError with IsConflict reports a remount already in progress.
func (c *Client) Remount(name string) (*RemountResult, error) {
	var res RemountResult
	if err := c.post(sharePath(name)+"/remount", nil, &res); err != nil {
		return nil, err
	}
	if !res.Success && res.Error == "" {
		return nil, fmt.Errorf("remount of %s failed", name)
	}
	return &res, nil
}
