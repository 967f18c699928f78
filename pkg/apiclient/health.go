package apiclient

import "time"

// HealthResponse is the envelope of the health endpoints.
type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Health calls the liveness endpoint. It fails when the daemon is not
// reachable.
func (c *Client) Health() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get("/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ready calls the readiness endpoint.
func (c *Client) Ready() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get("/health/ready", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
