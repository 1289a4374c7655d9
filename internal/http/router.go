// Package httpapi assembles the chi router: global middleware, operational
// endpoints and the listing routes.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platformmetrics "propnest/internal/platform/metrics"
	"propnest/pkg/platform/httputil"
	"propnest/pkg/platform/middleware/auth"
	"propnest/pkg/platform/middleware/metadata"
	"propnest/pkg/platform/middleware/request"
	"propnest/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouteRegistrar mounts a bounded context's routes.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// Deps are the collaborators NewRouter wires together.
type Deps struct {
	Logger         *slog.Logger
	TokenValidator auth.TokenValidator
	Metrics        *platformmetrics.Metrics
	Gatherer       prometheus.Gatherer
	HealthChecks   map[string]HealthCheck
	Routes         []RouteRegistrar
}

// NewRouter returns the process HTTP handler.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/healthz", healthHandler(deps.HealthChecks, logger))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(deps.TokenValidator, logger))
		for _, routes := range deps.Routes {
			routes.Register(r)
		}
	})
	return r
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		components := make(map[string]string, len(names))
		status := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "component", name, "error", err)
				components[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "up"
		}

		body := map[string]any{"status": "ok", "components": components}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		httputil.WriteJSON(w, status, body)
	}
}
