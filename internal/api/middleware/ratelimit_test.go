package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// TestRateLimiter_GlobalLimitEnforced verifies that the global rate limit
// is enforced across all requests regardless of tier.
func TestRateLimiter_GlobalLimitEnforced(t *testing.T) {
	// Global (10) is more restrictive than the authenticated tier (50).
	rl := NewInMemoryRateLimiter(&Config{
		GlobalRPS:   10,
		GlobalBurst: 10, // use override value
		AuthRPS:     50,
		UnAuthRPS:   2,
	})

	successCount := 0

	for i := 0; i < 11; i++ {
		if rl.Allow(true) {
			successCount++
		}
	}

	if successCount != 10 {
		t.Errorf("expected 10 successful requests, got %d", successCount)
	}
}

// TestRateLimiter_AuthenticatedLimitEnforced verifies that the
// authenticated tier is enforced independently from the global limit.
func TestRateLimiter_AuthenticatedLimitEnforced(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{
		GlobalRPS: 100,
		AuthRPS:   5,
		AuthBurst: 5, // use override value
		UnAuthRPS: 2,
	})

	successCount := 0

	for i := 0; i < 6; i++ {
		if rl.Allow(true) {
			successCount++
		}
	}

	if successCount != 5 {
		t.Errorf("expected 5 successful requests, got %d", successCount)
	}
}

// TestRateLimiter_UnauthenticatedLimitEnforced verifies that requests
// without a valid bearer token are rate limited separately.
func TestRateLimiter_UnauthenticatedLimitEnforced(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{
		GlobalRPS:   100,
		AuthRPS:     50,
		UnAuthRPS:   2,
		UnAuthBurst: 2, // use override value
	})

	successCount := 0

	for i := 0; i < 3; i++ {
		if rl.Allow(false) {
			successCount++
		}
	}

	if successCount != 2 {
		t.Errorf("expected 2 successful requests, got %d", successCount)
	}
}

// TestRateLimiter_TierIsolation verifies that exhausting the
// unauthenticated tier leaves the authenticated tier untouched.
func TestRateLimiter_TierIsolation(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{
		GlobalRPS:   100,
		AuthRPS:     5,
		AuthBurst:   5,
		UnAuthRPS:   2,
		UnAuthBurst: 2,
	})

	for i := 0; i < 2; i++ {
		if !rl.Allow(false) {
			t.Errorf("unauthenticated request %d should succeed", i+1)
		}
	}

	if rl.Allow(false) {
		t.Error("unauthenticated tier should be exhausted")
	}

	for i := 0; i < 5; i++ {
		if !rl.Allow(true) {
			t.Errorf("authenticated request %d should succeed", i+1)
		}
	}
}

// TestRateLimiter_DefaultBurstIsTwiceRate verifies the automatic burst
// computation when no override is given.
func TestRateLimiter_DefaultBurstIsTwiceRate(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{
		GlobalRPS: 100,
		AuthRPS:   3,
		UnAuthRPS: 1,
	})

	// Burst = 2 × 3 = 6 instantly available tokens.
	successCount := 0

	for i := 0; i < 7; i++ {
		if rl.Allow(true) {
			successCount++
		}
	}

	if successCount != 6 {
		t.Errorf("expected 6 successful burst requests, got %d", successCount)
	}
}

// TestRateLimiter_ConcurrentAccess verifies that the rate limiter is safe
// for concurrent use by multiple goroutines.
func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{
		GlobalRPS: 100,
		AuthRPS:   50,
		UnAuthRPS: 10,
	})

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func(authenticated bool) {
			defer wg.Done()

			for j := 0; j < 10; j++ {
				_ = rl.Allow(authenticated)
			}
		}(i%2 == 0)
	}

	wg.Wait()
	// If we get here without panic/race, concurrent access is safe
}

// TestRateLimitMiddleware_RequestAllowed verifies that requests under
// the rate limit are allowed to proceed to the next handler.
func TestRateLimitMiddleware_RequestAllowed(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{
		GlobalRPS: 100,
		AuthRPS:   50,
		UnAuthRPS: 10,
	})

	logger := slog.New(slog.DiscardHandler)

	nextCalled := false
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nextCalled = true

		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(rl, logger)(nextHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !nextCalled {
		t.Error("expected next handler to be called when rate limit not exceeded")
	}

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

// TestRateLimitMiddleware_RequestBlocked verifies that requests exceeding
// the rate limit are rejected with 429 status.
func TestRateLimitMiddleware_RequestBlocked(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{
		GlobalRPS:   1,
		GlobalBurst: 1,
		AuthRPS:     1,
		UnAuthRPS:   1,
	})

	logger := slog.New(slog.DiscardHandler)

	nextCalled := false
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nextCalled = true

		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(rl, logger)(nextHandler)

	req1 := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)

	if rec1.Code != http.StatusOK {
		t.Errorf("first request should succeed, got status %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec2 := httptest.NewRecorder()
	nextCalled = false

	handler.ServeHTTP(rec2, req2)

	if nextCalled {
		t.Error("expected next handler NOT to be called when rate limit exceeded")
	}

	if rec2.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rec2.Code)
	}
}

// TestRateLimitMiddleware_RFC7807ErrorFormat verifies that rate limit
// errors return RFC 7807 compliant responses.
func TestRateLimitMiddleware_RFC7807ErrorFormat(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{
		GlobalRPS:   1,
		GlobalBurst: 1,
		AuthRPS:     1,
		UnAuthRPS:   1,
	})

	logger := slog.New(slog.DiscardHandler)

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(rl, logger)(nextHandler)

	// Exhaust rate limit
	req1 := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)

	// Make rate-limited request
	req2 := httptest.NewRequest(http.MethodPost, "/ingest/batch", nil)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)

	contentType := rec2.Header().Get("Content-Type")
	if contentType != contentTypeProblemJSON {
		t.Errorf("expected Content-Type %s, got %s", contentTypeProblemJSON, contentType)
	}

	var problem map[string]interface{}
	if err := json.Unmarshal(rec2.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to parse error response: %v", err)
	}

	if problem["type"] != "https://liminal.dev/problems/429" {
		t.Errorf("expected type https://liminal.dev/problems/429, got %v", problem["type"])
	}

	if problem["title"] != "Too Many Requests" {
		t.Errorf("expected title 'Too Many Requests', got %v", problem["title"])
	}

	if problem["status"] != float64(429) {
		t.Errorf("expected status 429, got %v", problem["status"])
	}

	if problem["instance"] != "/ingest/batch" {
		t.Errorf("expected instance /ingest/batch, got %v", problem["instance"])
	}
}

// TestRateLimitMiddleware_AuthenticatedVsUnauthenticated verifies that
// authenticated and unauthenticated requests use different rate limits.
func TestRateLimitMiddleware_AuthenticatedVsUnauthenticated(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{
		GlobalRPS:   100,
		AuthRPS:     10,
		AuthBurst:   10,
		UnAuthRPS:   2,
		UnAuthBurst: 2,
	})

	logger := slog.New(slog.DiscardHandler)

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(rl, logger)(nextHandler)

	// Unauthenticated requests (limit: 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("unauthenticated request %d should succeed, got status %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("3rd unauthenticated request should be rate limited, got status %d", rec.Code)
	}

	// Authenticated requests (limit: 10, separate from unauth)
	authedCtx := context.WithValue(context.Background(), authContextKey{}, authContext{authenticated: true})

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req = req.WithContext(authedCtx)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("authenticated request %d should succeed, got status %d", i+1, rec.Code)
		}
	}

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(authedCtx)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("11th authenticated request should be rate limited, got status %d", rec.Code)
	}
}
