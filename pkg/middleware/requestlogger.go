package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/mercadolocal/pkg/logger"
)

// RequestLogger stores a logger enriched with correlation, actor and trace
// fields in the request context. Mount it after RequestLogging and Tracing,
// and again after Auth on authenticated route groups so the actor is included.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if p, ok := PrincipalFromContext(ctx); ok {
				ctx = logger.WithActor(ctx, p.UserID, p.Role)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
