package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformmetrics "propnest/internal/platform/metrics"
	id "propnest/pkg/domain"
	"propnest/pkg/platform/middleware/request"
	"propnest/pkg/requestcontext"
	"propnest/pkg/testutil"
)

type staticValidator struct {
	actor id.Actor
}

func (v staticValidator) ValidateToken(token string) (id.Actor, error) {
	if token != "good" {
		return id.Actor{}, errors.New("bad token")
	}
	return v.actor, nil
}

// whoamiRoutes echoes the resolved actor.
type whoamiRoutes struct{}

func (whoamiRoutes) Register(r chi.Router) {
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, requestcontext.UserID(r.Context()).String())
	})
}

func newTestRouter(checks map[string]HealthCheck) (http.Handler, id.Actor) {
	actor := id.Actor{UserID: id.UserID(uuid.New()), Role: id.RoleUser}
	reg := prometheus.NewRegistry()
	router := NewRouter(Deps{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		TokenValidator: staticValidator{actor: actor},
		Metrics:        platformmetrics.New(reg),
		Gatherer:       reg,
		HealthChecks:   checks,
		Routes:         []RouteRegistrar{whoamiRoutes{}},
	})
	return router, actor
}

func TestRouter(t *testing.T) {
	testutil.Given(t, "healthy dependencies", func(t *testing.T) {
		router, _ := newTestRouter(map[string]HealthCheck{
			"postgres": func(_ context.Context) error { return nil },
		})

		testutil.When(t, "healthz is requested", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))

			testutil.Then(t, "it reports ok with a request id", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				assert.NotEmpty(t, rr.Header().Get(request.Header))
				body := testutil.DecodeJSON(t, rr)
				assert.Equal(t, "ok", body["status"])
				assert.Equal(t, map[string]any{"postgres": "up"}, body["components"])
			})
		})
	})

	testutil.Given(t, "an unreachable cache", func(t *testing.T) {
		router, _ := newTestRouter(map[string]HealthCheck{
			"postgres": func(_ context.Context) error { return nil },
			"redis":    func(_ context.Context) error { return errors.New("connection refused") },
		})

		testutil.When(t, "healthz is requested", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))

			testutil.Then(t, "it reports degraded", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
				testutil.AssertJSONContains(t, rr, "status", "degraded")
			})
		})
	})

	testutil.Given(t, "a mounted route", func(t *testing.T) {
		router, actor := newTestRouter(nil)

		testutil.When(t, "called with a valid bearer token", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodGet, "/whoami")
			req.Header.Set("Authorization", "Bearer good")
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "the actor reaches the handler", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				assert.Equal(t, actor.UserID.String(), rr.Body.String())
			})
		})

		testutil.When(t, "called with an invalid bearer token", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodGet, "/whoami")
			req.Header.Set("Authorization", "Bearer forged")
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "it is unauthorized", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
			})
		})

		testutil.When(t, "metrics are scraped after a request", func(t *testing.T) {
			testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/whoami"))
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))

			testutil.Then(t, "the route pattern is labelled", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				body := rr.Body.String()
				require.True(t, strings.Contains(body, "propnest_http_requests_total"))
				assert.Contains(t, body, `route="/whoami"`)
			})
		})
	})
}
