package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type RouterConfig struct {
	Logger         *slog.Logger
	Metrics        *Metrics
	RequestTimeout time.Duration
	Readiness      map[string]ReadinessCheck
}

// NewRouter builds the service router with the shared middleware stack.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(WithMetrics(cfg.Metrics))
	}
	if cfg.Logger != nil {
		r.Use(WithRequestLogging(cfg.Logger))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(cfg.Readiness, cfg.Logger))

	h.Register(r)
	return r
}

// readiness reports "unavailable" for failing checks; the cause is logged
// since it may name hosts or credentials.
func readiness(checks map[string]ReadinessCheck, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = "unavailable"
				logger.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
				continue
			}
			results[name] = "ok"
		}
		writeJSON(w, status, results)
	}
}
