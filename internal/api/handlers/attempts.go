package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/remounter/pkg/journal"
)

// AttemptStore lists recorded remount attempts.
type AttemptStore interface {
	List(ctx context.Context, f journal.Filter) ([]*journal.Entry, error)
}

// AttemptHandler serves the remount journal.
type AttemptHandler struct {
	store AttemptStore
}

// NewAttemptHandler creates an attempt handler.
func NewAttemptHandler(store AttemptStore) *AttemptHandler {
	return &AttemptHandler{store: store}
}

// List handles GET /api/v1/attempts and GET /api/v1/shares/{name}/attempts.
//
// Query parameters: limit, since (RFC 3339), failed (bool).
func (h *AttemptHandler) List(w http.ResponseWriter, r *http.Request) {
	f := journal.Filter{Share: chi.URLParam(r, "name")}
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			BadRequest(w, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			BadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		f.Since = t
	}
	if v := q.Get("failed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(w, "failed must be a boolean")
			return
		}
		f.FailedOnly = b
	}

	entries, err := h.store.List(r.Context(), f)
	if err != nil {
		InternalServerError(w, err.Error())
		return
	}
	if entries == nil {
		entries = []*journal.Entry{}
	}
	WriteJSON(w, http.StatusOK, entries)
}
