package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"presence/internal/platform/config"
	"presence/internal/platform/health"
	"presence/pkg/platform/middleware/admin"
	"presence/pkg/platform/middleware/request"
	"presence/pkg/platform/middleware/requesttime"
)

// module is an HTTP surface with public and admin-only routes.
type module interface {
	Register(r chi.Router)
}

type adminModule interface {
	module
	RegisterAdmin(r chi.Router)
}

func newRouter(cfg *config.Config, log *slog.Logger, auth *admin.Authenticator, checks *health.Handler, latency *request.Metrics, modules ...module) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(request.ClientIP)
	r.Use(request.Logger(log))
	r.Use(request.Latency(latency, routePattern))
	r.Use(requesttime.Middleware(nil))
	r.Use(request.Timeout(cfg.Server.RequestTimeout))
	r.Use(request.BodyLimit(cfg.Server.MaxBodyBytes))
	r.Use(request.ContentType("application/json"))

	checks.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	for _, m := range modules {
		m.Register(r)
	}
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdmin(auth, log))
		for _, m := range modules {
			if am, ok := m.(adminModule); ok {
				am.RegisterAdmin(r)
			}
		}
	})
	return r
}

// routePattern labels latency by route template so DIDs and ids do not
// explode the label set. chi fills the pattern in while routing, so it is
// read after the handler ran.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
