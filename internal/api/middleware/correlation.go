// Package middleware provides HTTP middleware components for the Ingest
// Service's HTTP surface.
package middleware

import (
	"context"
	"net/http"

	"github.com/liminalqa/liminal/internal/ids"
)

// correlationIDKey is the context key for correlation ID.
type correlationIDKey struct{}

// CorrelationID creates a middleware that attaches a correlation ID to
// each request. A caller-supplied X-Correlation-ID header is honored;
// otherwise a fresh ULID is minted, so correlation IDs sort in arrival
// order just like every other identifier in the system.
func CorrelationID() func(http.Handler) http.Handler {
	src := ids.NewSource()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := r.Header.Get("X-Correlation-ID")
			if correlationID == "" {
				correlationID = src.New().String()
			}

			w.Header().Set("X-Correlation-ID", correlationID)

			ctx := context.WithValue(r.Context(), correlationIDKey{}, correlationID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCorrelationID extracts the correlation ID from the request context.
// Returns "unknown" for contexts no CorrelationID middleware has seen.
func GetCorrelationID(ctx context.Context) string {
	if correlationID, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return correlationID
	}

	return "unknown"
}
