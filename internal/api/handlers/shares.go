package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/remounter/internal/logger"
	"github.com/marmos91/remounter/pkg/monitor"
)

// Monitor is the part of *monitor.Monitor the API needs.
type Monitor interface {
	Snapshots() []monitor.Snapshot
	Snapshot(key string) (monitor.Snapshot, error)
	ForceRemount(ctx context.Context, key string) error
}

// ShareHandler serves share state and manual remounts.
type ShareHandler struct {
	mon Monitor
}

// NewShareHandler creates a share handler.
func NewShareHandler(mon Monitor) *ShareHandler {
	return &ShareHandler{mon: mon}
}

// List handles GET /api/v1/shares.
func (h *ShareHandler) List(w http.ResponseWriter, r *http.Request) {
	snaps := h.mon.Snapshots()
	out := make([]ShareStatus, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, NewShareStatus(s))
	}
	WriteJSON(w, http.StatusOK, out)
}

// Get handles GET /api/v1/shares/{name}.
func (h *ShareHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := h.mon.Snapshot(name)
	if err != nil {
		NotFound(w, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, NewShareStatus(snap))
}

// Remount handles POST /api/v1/shares/{name}/remount. The remount is not
// cancelled when the client disconnects.
func (h *ShareHandler) Remount(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	err := h.mon.ForceRemount(context.WithoutCancel(r.Context()), name)
	switch {
	case errors.Is(err, monitor.ErrNotFound):
		NotFound(w, err.Error())
		return
	case errors.Is(err, monitor.ErrBusy):
		Conflict(w, "share "+name+" is already being remounted")
		return
	case errors.Is(err, monitor.ErrStopping):
		ServiceUnavailable(w, err.Error())
		return
	}

	snap, serr := h.mon.Snapshot(name)
	if serr != nil {
		InternalServerError(w, serr.Error())
		return
	}

	res := RemountResult{Success: err == nil, Share: NewShareStatus(snap)}
	if err != nil {
		res.Error = err.Error()
		logger.Warn("Manual remount failed", logger.Share(snap.Share.Name), logger.Err(err))
	}
	WriteJSON(w, http.StatusOK, res)
}
