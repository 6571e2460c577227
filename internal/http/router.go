// Package httpapi assembles the public HTTP surface: shared middleware, the
// three route groups and the operational endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"carecheck/internal/ratelimit"
	id "carecheck/pkg/domain"
	"carecheck/pkg/platform/httputil"
	adminmw "carecheck/pkg/platform/middleware/admin"
	authmw "carecheck/pkg/platform/middleware/auth"
	"carecheck/pkg/platform/middleware/metadata"
	request "carecheck/pkg/platform/middleware/request"
	"carecheck/pkg/platform/middleware/requesttime"
)

// RouteRegistrar mounts a module's routes onto a group that already carries
// the group's access control.
type RouteRegistrar interface {
	RegisterCandidateRoutes(r chi.Router)
	RegisterAdminRoutes(r chi.Router)
	RegisterInternalRoutes(r chi.Router)
}

// ReadinessCheck reports whether a backing dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Config carries what the router needs beyond the handlers themselves.
type Config struct {
	Validator     authmw.JWTValidator
	AdminAPIToken string
	Metrics       http.Handler
	Ready         map[string]ReadinessCheck
	RateLimit     *ratelimit.Middleware // nil leaves every group unthrottled
	Logger        *slog.Logger
}

// NewRouter wires middleware and route groups. Candidate routes need a valid
// bearer token, admin routes additionally need an override role, and internal
// routes are guarded by the shared admin token.
func NewRouter(cfg Config, modules ...RouteRegistrar) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(cfg.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(cfg.Ready, cfg.Logger))
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(cfg.Validator, cfg.Logger))
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit.ByPrincipal(ratelimit.ClassCandidate))
		}
		for _, m := range modules {
			m.RegisterCandidateRoutes(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(cfg.Validator, cfg.Logger))
		r.Use(authmw.RequireRole(cfg.Logger, id.RoleAdmin, id.RoleSuperAdmin))
		for _, m := range modules {
			m.RegisterAdminRoutes(r)
		}
	})

	r.Group(func(r chi.Router) {
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit.ByClientIP(ratelimit.ClassInbound))
		}
		r.Use(adminmw.RequireAdminToken(cfg.AdminAPIToken, cfg.Logger))
		for _, m := range modules {
			m.RegisterInternalRoutes(r)
		}
	})

	return r
}

func readiness(checks map[string]ReadinessCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failing := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed",
					"check", name,
					"request_id", request.GetRequestID(ctx),
					"error", err,
				)
				failing[name] = "unavailable"
			}
		}
		if len(failing) > 0 {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "checks": failing})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
