// Package middleware provides HTTP middleware components for the Ingest
// Service's HTTP surface.
package middleware

import (
	"github.com/liminalqa/liminal/internal/config"
)

// Config holds rate limiter configuration.
//
// Rate limits specify requests per second (RPS) for three buckets:
//   - Global: applied to every request
//   - Auth: applied to requests that passed BearerAuth
//   - UnAuth: applied to requests without a valid bearer token
//
// Burst capacity allows temporary bursts above the sustained rate.
// If burst fields are 0, they are computed automatically as 2 × rate.
type Config struct {
	// Rate limits (requests per second)
	GlobalRPS int // Default: 100
	AuthRPS   int // Default: 50
	UnAuthRPS int // Default: 10

	// Optional burst capacity overrides (0 = computed as 2 × rate)
	GlobalBurst int
	AuthBurst   int
	UnAuthBurst int
}

// LoadConfig loads middleware config from environment variables with
// fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		GlobalRPS: config.GetEnvInt("LIMINAL_GLOBAL_RPS", defaultGlobalRPS),
		AuthRPS:   config.GetEnvInt("LIMINAL_AUTHENTICATED_RPS", defaultAuthRPS),
		UnAuthRPS: config.GetEnvInt("LIMINAL_UNAUTH_RPS", defaultUnAuthRPS),

		GlobalBurst: config.GetEnvInt("LIMINAL_GLOBAL_BURST", 0),
		AuthBurst:   config.GetEnvInt("LIMINAL_AUTHENTICATED_BURST", 0),
		UnAuthBurst: config.GetEnvInt("LIMINAL_UNAUTH_BURST", 0),
	}
}
