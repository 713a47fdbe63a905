package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/telhawk-systems/userrelay/common/httputil"
)

type contextKey string

const claimsKey contextKey = "claims"

// Validator checks a raw bearer token.
type Validator interface {
	ValidateAccessToken(token string) (*Claims, error)
}

// RequireRole rejects requests without a valid bearer token carrying role.
func RequireRole(v Validator, role string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.WriteKindError(w, http.StatusUnauthorized, "unauthorized", "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				httputil.WriteKindError(w, http.StatusUnauthorized, "unauthorized", "Invalid authorization header")
				return
			}

			claims, err := v.ValidateAccessToken(parts[1])
			if err != nil {
				logger.InfoContext(r.Context(), "rejected bearer token",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				httputil.WriteKindError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}
			if !claims.HasRole(role) {
				httputil.WriteKindError(w, http.StatusForbidden, "forbidden", "Forbidden")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the claims stored by RequireRole, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}
