package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	"carecheck/pkg/platform/httputil"
	request "carecheck/pkg/platform/middleware/request"
	"carecheck/pkg/requestcontext"
)

// Middleware applies per-class limits. Store errors fail open.
type Middleware struct {
	store  BucketStore
	limits map[Class]Limit
	logger *slog.Logger
}

func NewMiddleware(store BucketStore, limits map[Class]Limit, logger *slog.Logger) *Middleware {
	return &Middleware{store: store, limits: limits, logger: logger}
}

// ByPrincipal keys the window on the authenticated user. Must run after RequireAuth.
func (m *Middleware) ByPrincipal(class Class) func(http.Handler) http.Handler {
	return m.limit(class, func(r *http.Request) string {
		return "user:" + requestcontext.UserID(r.Context()).String()
	})
}

// ByClientIP keys the window on the client address set by the metadata middleware.
func (m *Middleware) ByClientIP(class Class) func(http.Handler) http.Handler {
	return m.limit(class, func(r *http.Request) string {
		return "ip:" + requestcontext.ClientIP(r.Context())
	})
}

func (m *Middleware) limit(class Class, keyOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		l, ok := m.limits[class]
		if !ok || l.Requests <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			result, err := m.store.Allow(ctx, string(class)+":"+keyOf(r), l.Requests, l.Window)
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"class", string(class),
					"request_id", request.GetRequestID(ctx),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
			if !result.Allowed {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"class", string(class),
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, exceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "Too many requests. Please try again later.",
					RetryAfter: result.RetryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
