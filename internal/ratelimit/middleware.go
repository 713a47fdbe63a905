package ratelimit

import (
	"log/slog"
	"net/http"

	"github.com/telhawk-systems/userrelay/common/httputil"
	"github.com/telhawk-systems/userrelay/internal/metrics"
)

type middlewareConfig struct {
	clientIP func(*http.Request) string
}

type MiddlewareOption func(*middlewareConfig)

// TrustForwardedFor keys the limit on X-Forwarded-For / X-Real-IP. Only
// use it behind a proxy that overwrites those headers.
func TrustForwardedFor() MiddlewareOption {
	return func(c *middlewareConfig) { c.clientIP = httputil.GetClientIP }
}

// Middleware rejects requests over the limit with 429. The limit is keyed
// by route and the connection's peer address. Limiter errors fail open and
// are logged.
func Middleware(limiter RateLimiter, route string, logger *slog.Logger, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := middlewareConfig{clientIP: httputil.RemoteIP}
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := route + ":" + cfg.clientIP(r)
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable",
					slog.String("route", route),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.RateLimitHits.WithLabelValues(route).Inc()
				w.Header().Set("Retry-After", "60")
				httputil.WriteKindError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
