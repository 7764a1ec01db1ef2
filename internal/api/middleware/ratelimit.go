// Package middleware provides HTTP middleware components for the Ingest
// Service's HTTP surface.
package middleware

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

const (
	burstCapacityMultiplier = 2
	defaultGlobalRPS        = 100
	defaultAuthRPS          = 50
	defaultUnAuthRPS        = 10
)

type (
	// RateLimiter decides whether an incoming request may proceed.
	//
	// Implementations may use in-memory token buckets (single-node
	// deployment) or a distributed store when scaling beyond one node.
	RateLimiter interface {
		// Allow reports whether a request should proceed. authenticated
		// tells the limiter which client tier the request belongs to.
		Allow(authenticated bool) bool
	}

	// InMemoryRateLimiter implements RateLimiter using golang.org/x/time/rate
	// token buckets.
	//
	// Two tiers apply to every request: a global limit shared by all
	// callers, then either the authenticated or the unauthenticated
	// limit. The service authenticates with a single bearer token, so
	// authenticated traffic shares one bucket — there is no per-caller
	// identity to key on.
	InMemoryRateLimiter struct {
		global          *rate.Limiter
		authenticated   *rate.Limiter
		unauthenticated *rate.Limiter
	}
)

// NewInMemoryRateLimiter creates an in-memory rate limiter with the
// two-tier limits described on InMemoryRateLimiter.
//
// Burst capacity is computed as 2 × rate unless overridden in config.
func NewInMemoryRateLimiter(config *Config) *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		global: rate.NewLimiter(
			rate.Limit(config.GlobalRPS),
			computeBurstCapacity(config.GlobalRPS, config.GlobalBurst),
		),
		authenticated: rate.NewLimiter(
			rate.Limit(config.AuthRPS),
			computeBurstCapacity(config.AuthRPS, config.AuthBurst),
		),
		unauthenticated: rate.NewLimiter(
			rate.Limit(config.UnAuthRPS),
			computeBurstCapacity(config.UnAuthRPS, config.UnAuthBurst),
		),
	}
}

// computeBurstCapacity returns burstOverride when set, otherwise
// 2 × rps (a two-second burst above the sustained rate).
func computeBurstCapacity(rps, burstOverride int) int {
	if burstOverride > 0 {
		return burstOverride
	}

	return rps * burstCapacityMultiplier
}

// Allow implements the RateLimiter interface: the global bucket is
// checked first (fail fast), then the tier bucket the request belongs to.
func (rl *InMemoryRateLimiter) Allow(authenticated bool) bool {
	if !rl.global.Allow() {
		return false
	}

	if authenticated {
		return rl.authenticated.Allow()
	}

	return rl.unauthenticated.Allow()
}

// RateLimit returns a middleware that enforces rate limits on incoming
// requests, rejecting excess traffic with a 429 in RFC 7807 format.
//
// It must be placed after BearerAuth in the chain so it can see whether
// the request passed authentication.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(IsAuthenticated(r.Context())) {
				correlationID := GetCorrelationID(r.Context())

				detail := "Rate limit exceeded. Please retry after some time."
				if err := writeRFC7807Error(w, r, http.StatusTooManyRequests, detail, correlationID); err != nil {
					logger.Error("failed to write response with RFC 7807 error format",
						slog.String("correlation_id", correlationID),
						slog.String("path", r.URL.Path),
						slog.String("detail", detail),
						slog.String("error", err.Error()),
					)

					// Fallback to plain text if writeRFC7807Error fails
					http.Error(w, detail, http.StatusTooManyRequests)
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
