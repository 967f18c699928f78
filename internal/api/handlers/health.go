package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthCheckTimeout bounds the journal ping of the readiness probe.
const HealthCheckTimeout = 5 * time.Second

// Pinger is a dependency whose health the readiness probe reports.
type Pinger interface {
	Healthcheck(ctx context.Context) error
}

// HealthHandler handles the health endpoints.
type HealthHandler struct {
	mon       Monitor
	journal   Pinger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a health handler. mon and journal may be nil.
func NewHealthHandler(mon Monitor, journal Pinger, version string) *HealthHandler {
	return &HealthHandler{
		mon:       mon,
		journal:   journal,
		version:   version,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health. It succeeds as long as the process serves
// HTTP.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service":    "remounter",
		"version":    h.version,
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready. It reports the share count per
// health state and fails when the monitor is missing or the journal does
// not answer. Unhealthy shares do not fail readiness: recovering them is
// the daemon's job.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.mon == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("monitor not initialized", nil))
		return
	}

	counts := map[string]int{}
	snaps := h.mon.Snapshots()
	for _, s := range snaps {
		counts[s.Health.String()]++
	}
	data := map[string]any{
		"shares": len(snaps),
		"health": counts,
	}

	if h.journal != nil {
		ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
		defer cancel()
		if err := h.journal.Healthcheck(ctx); err != nil {
			WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("journal: "+err.Error(), data))
			return
		}
	}

	WriteJSON(w, http.StatusOK, healthyResponse(data))
}
