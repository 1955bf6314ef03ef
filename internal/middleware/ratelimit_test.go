package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newRequestFrom(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/matching/find-matches", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func okHandler(count *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*count++
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 2, Burst: 5, CleanupInterval: time.Minute})
	defer rl.Stop()

	calls := 0
	handler := rl.Middleware()(okHandler(&calls))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newRequestFrom("203.0.113.1:1234"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	if calls != 5 {
		t.Errorf("handler call count = %d, want 5", calls)
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 2, CleanupInterval: time.Minute})
	defer rl.Stop()

	calls := 0
	handler := rl.Middleware()(okHandler(&calls))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), newRequestFrom("203.0.113.2:1000"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestFrom("203.0.113.2:1000"))

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if calls != 2 {
		t.Errorf("handler call count = %d, want 2", calls)
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfterHeader(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Limit(10.0 / 60.0), Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	calls := 0
	handler := rl.Middleware()(okHandler(&calls))

	handler.ServeHTTP(httptest.NewRecorder(), newRequestFrom("203.0.113.3:1000"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestFrom("203.0.113.3:1000"))

	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil {
		t.Fatalf("Retry-After is not an integer: %q", w.Header().Get("Retry-After"))
	}
	if retryAfter != 6 {
		t.Errorf("Retry-After = %d, want 6", retryAfter)
	}
}

func TestRateLimitMiddleware_429ResponseIsJSON(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	calls := 0
	handler := rl.Middleware()(okHandler(&calls))

	handler.ServeHTTP(httptest.NewRecorder(), newRequestFrom("203.0.113.4:1000"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestFrom("203.0.113.4:1000"))

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Success || body.Error == "" {
		t.Errorf("body = %+v, want unified error", body)
	}
}

func TestRateLimitMiddleware_IsolatesClients(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	calls := 0
	handler := rl.Middleware()(okHandler(&calls))

	handler.ServeHTTP(httptest.NewRecorder(), newRequestFrom("198.51.100.1:1000"))

	// 同じIPの別ポートは同じクライアントとして扱う
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestFrom("198.51.100.1:2000"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("same IP: status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestFrom("198.51.100.2:1000"))
	if w.Code != http.StatusOK {
		t.Errorf("other IP: status = %d, want %d", w.Code, http.StatusOK)
	}

	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount = %d, want 2", rl.LimiterCount())
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 2, Burst: 5, CleanupInterval: 50 * time.Millisecond})
	defer rl.Stop()

	calls := 0
	handler := rl.Middleware()(okHandler(&calls))
	handler.ServeHTTP(httptest.NewRecorder(), newRequestFrom("203.0.113.9:1000"))

	if rl.LimiterCount() == 0 {
		t.Fatal("expected at least one limiter entry")
	}

	// TTLはCleanupIntervalの2倍（100ms）
	time.Sleep(250 * time.Millisecond)

	if count := rl.LimiterCount(); count != 0 {
		t.Errorf("expected 0 limiter entries after cleanup, got %d", count)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestPerMinute(t *testing.T) {
	cfg := PerMinute(30)
	if cfg.Rate != rate.Limit(0.5) {
		t.Errorf("Rate = %v, want 0.5", cfg.Rate)
	}
	if cfg.Burst != 30 {
		t.Errorf("Burst = %d, want 30", cfg.Burst)
	}

	def := PerMinute(0)
	if def != DefaultRateLimiterConfig() {
		t.Errorf("PerMinute(0) = %+v, want default", def)
	}
}
