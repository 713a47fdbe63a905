package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/userrelay/common/httputil"
	"github.com/telhawk-systems/userrelay/common/logging"
	"github.com/telhawk-systems/userrelay/common/middleware"
	"github.com/telhawk-systems/userrelay/internal/auth"
	"github.com/telhawk-systems/userrelay/internal/handlers"
	"github.com/telhawk-systems/userrelay/internal/metrics"
	"github.com/telhawk-systems/userrelay/internal/ratelimit"
	"github.com/telhawk-systems/userrelay/internal/telemetry"
)

const serviceName = "userrelay"

type Options struct {
	CORS middleware.CORSConfig
	// Validator guards execute and clear. Nil leaves them open.
	Validator auth.Validator
	// Limiter throttles execute and clear per client IP. Nil disables it.
	Limiter ratelimit.RateLimiter
	// TrustProxyHeaders keys the limiter on X-Forwarded-For instead of
	// the peer address.
	TrustProxyHeaders bool
	Logger  *slog.Logger
}

// NewRouter constructs a chi router with the relay API routes registered.
func NewRouter(h *handlers.RelayHandler, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(opts.CORS))
	r.Use(middleware.SecurityHeaders)
	r.Use(telemetry.HTTPMiddleware(serviceName))
	r.Use(accessLog(logger))

	// Health checks
	r.Get("/up", h.Up)
	r.Get("/healthz", h.HealthCheck)
	r.Get("/readyz", h.ReadyCheck)
	r.Handle("/metrics", promhttp.Handler())

	mutating := func(route string, next http.HandlerFunc) http.Handler {
		var handler http.Handler = next
		if opts.Limiter != nil {
			var rlOpts []ratelimit.MiddlewareOption
			if opts.TrustProxyHeaders {
				rlOpts = append(rlOpts, ratelimit.TrustForwardedFor())
			}
			handler = ratelimit.Middleware(opts.Limiter, route, logger, rlOpts...)(handler)
		}
		if opts.Validator != nil {
			handler = auth.RequireRole(opts.Validator, auth.RoleOperator, logger)(handler)
		}
		return handler
	}
	execute := mutating("execute", h.Execute)
	clearData := mutating("clear", h.Clear)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/execute", execute)
		r.Method(http.MethodPost, "/clear", clearData)
		r.Get("/users", h.ListUsers)
		r.Get("/runs", h.RecentRuns)
	})

	// Unprefixed aliases
	r.Method(http.MethodPost, "/execute", execute)
	r.Method(http.MethodPost, "/clear", clearData)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

// accessLog logs one line per request and records HTTP metrics under the
// matched route pattern.
func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

			logger.InfoContext(r.Context(), "http request",
				logging.Method(r.Method),
				logging.Path(route),
				logging.Status(status),
				logging.Duration(elapsed),
				logging.IP(httputil.GetClientIP(r)),
				slog.String("request_id", middleware.GetRequestID(r.Context())),
			)
		})
	}
}
