package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/remounter/internal/api/handlers"
	"github.com/marmos91/remounter/internal/logger"
	"github.com/marmos91/remounter/pkg/journal"
	"github.com/marmos91/remounter/pkg/metrics"
)

// Journal is the attempt store behind the history endpoints.
type Journal interface {
	List(ctx context.Context, f journal.Filter) ([]*journal.Entry, error)
	Healthcheck(ctx context.Context) error
}

// Dependencies are the components the API serves.
type Dependencies struct {
	// Monitor is required.
	Monitor handlers.Monitor
	// Journal may be nil when the journal is disabled.
	Journal Journal
	// Version is reported by /health.
	Version string
	// RequestTimeout bounds every request except forced remounts.
	RequestTimeout time.Duration
}

// NewRouter creates the chi router with all middleware and routes.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /metrics - Prometheus metrics (when enabled)
//   - GET /api/v1/shares - State of every share
//   - GET /api/v1/shares/{name} - State of one share
//   - POST /api/v1/shares/{name}/remount - Force a remount
//   - GET /api/v1/shares/{name}/attempts - Journal of one share
//   - GET /api/v1/attempts - Journal of every share
func NewRouter(deps Dependencies) http.Handler {
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	var pinger handlers.Pinger
	if deps.Journal != nil {
		pinger = deps.Journal
	}
	healthHandler := handlers.NewHealthHandler(deps.Monitor, pinger, deps.Version)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))

		r.Route("/health", func(r chi.Router) {
			r.Get("/", healthHandler.Liveness)
			r.Get("/ready", healthHandler.Readiness)
		})

		if h := metrics.Handler(); h != nil {
			r.Method(http.MethodGet, "/metrics", h)
		}

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
		})
	})

	shareHandler := handlers.NewShareHandler(deps.Monitor)
	r.Route("/api/v1", func(r chi.Router) {
		// A forced remount runs as long as the mount and unmount timeouts
		// allow; the server's write timeout is its only bound.
		r.Post("/shares/{name}/remount", shareHandler.Remount)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			r.Get("/shares", shareHandler.List)
			r.Get("/shares/{name}", shareHandler.Get)

			if deps.Journal != nil {
				attemptHandler := handlers.NewAttemptHandler(deps.Journal)
				r.Get("/shares/{name}/attempts", attemptHandler.List)
				r.Get("/attempts", attemptHandler.List)
			} else {
				disabled := func(w http.ResponseWriter, r *http.Request) {
					handlers.ServiceUnavailable(w, "journal is disabled")
				}
				r.Get("/shares/{name}/attempts", disabled)
				r.Get("/attempts", disabled)
			}
		})
	})

	return r
}

// isQuietPath reports whether request logs for path go to DEBUG.
func isQuietPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/") || path == "/metrics"
}

// requestLogger logs every request with the internal logger. Health and
// metrics scrapes are logged at DEBUG.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}

		if isQuietPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
