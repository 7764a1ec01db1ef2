// Package middleware provides HTTP middleware components for the Ingest
// Service's HTTP surface.
package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AuthError represents an authentication error with a specific type.
type AuthError struct {
	Type    error
	Message string
}

// Authentication error types for granular error handling.
var (
	// ErrMissingToken is returned when no bearer token is provided.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken is returned when the provided token does not match
	// the configured one. Kept generic to avoid leaking which half failed.
	ErrInvalidToken = errors.New("invalid bearer token")
)

type authContextKey struct{}

// authContext records whether BearerAuth accepted this request's token, for
// downstream per-client rate limit tiering.
type authContext struct {
	authenticated bool
}

// IsAuthenticated reports whether BearerAuth accepted this request's token.
// Always false in open mode, since open mode never runs the check.
func IsAuthenticated(ctx context.Context) bool {
	ac, ok := ctx.Value(authContextKey{}).(authContext)

	return ok && ac.authenticated
}

// extractBearerToken extracts the token from the Authorization: Bearer
// header. Returns ("", false) if absent or malformed.
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" || strings.ContainsAny(token, "\r\n") {
		return "", false
	}

	return token, true
}

// performDummyBcryptComparison keeps the missing-token and wrong-token
// paths at roughly the same wall-clock cost as the real comparison.
func performDummyBcryptComparison() {
	_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$dummydummydummydummyO"), []byte("dummy"))
}

// isPublicPath reports whether the route is served unauthenticated:
// health probes and metric scrapes must work without the token.
func isPublicPath(path string) bool {
	return path == "/health" || path == "/metrics"
}

// BearerAuth creates a middleware that gates requests behind a single
// configured bearer token. /health and /metrics bypass the check. An
// empty token puts the service in open mode: the caller is expected to
// have already logged a startup warning, and every request passes here
// unchecked.
//
// Token comparison uses crypto/subtle for a constant-time match, and a
// dummy bcrypt comparison runs on every rejection so the missing-token and
// wrong-token paths cost about the same regardless of the reject reason.
func BearerAuth(token string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)

				return
			}

			provided, found := extractBearerToken(r)
			if !found {
				performDummyBcryptComparison()
				writeAuthError(w, r, logger, &AuthError{Type: ErrMissingToken, Message: "Missing bearer token"})

				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				performDummyBcryptComparison()
				writeAuthError(w, r, logger, &AuthError{Type: ErrInvalidToken, Message: "Invalid bearer token"})

				return
			}

			ctx := context.WithValue(r.Context(), authContextKey{}, authContext{authenticated: true})

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Error implements the error interface for AuthError.
func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication failed: %s: %s", e.Type.Error(), e.Message)
	}

	return "authentication failed: " + e.Type.Error()
}

// Unwrap returns the wrapped sentinel, enabling errors.Is/As.
func (e *AuthError) Unwrap() error {
	return e.Type
}

// writeAuthError writes an RFC 7807 compliant error response for
// authentication failures.
func writeAuthError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	correlationID := GetCorrelationID(r.Context())

	logger.Warn("authentication failed",
		slog.String("reason", err.Error()),
		slog.String("correlation_id", correlationID),
		slog.String("endpoint", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	if encErr := writeRFC7807Error(w, r, http.StatusUnauthorized, err.Error(), correlationID); encErr != nil {
		logger.Error("failed to encode authentication error response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.Any("encode_error", encErr),
		)
	}
}

// contentTypeProblemJSON is the RFC 7807 media type.
const contentTypeProblemJSON = "application/problem+json"

// writeRFC7807Error writes an RFC 7807 compliant error response. Defined
// here (rather than reused from the api package) to avoid an import cycle,
// since both the auth and rate-limit middleware need it.
func writeRFC7807Error(w http.ResponseWriter, r *http.Request, statusCode int, detail, correlationID string) error {
	title := http.StatusText(statusCode)
	if title == "" {
		title = "Request Failed"
	}

	problem := map[string]any{
		"type":          fmt.Sprintf("https://liminal.dev/problems/%d", statusCode),
		"title":         title,
		"status":        statusCode,
		"detail":        detail,
		"instance":      r.URL.Path,
		"correlationId": correlationID,
	}

	w.Header().Set("Content-Type", contentTypeProblemJSON)
	w.WriteHeader(statusCode)

	return json.NewEncoder(w).Encode(problem)
}
