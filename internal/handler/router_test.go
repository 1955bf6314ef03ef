package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/mentwork/internal/matching"
	"github.com/hitoshi/mentwork/internal/metrics"
	"github.com/hitoshi/mentwork/internal/middleware"
	"github.com/hitoshi/mentwork/internal/model"
)

// stubHealthChecker はHealthCheckerのスタブ。
type stubHealthChecker struct {
	err error
}

func (s *stubHealthChecker) PingContext(ctx context.Context) error {
	return s.err
}

// newTestRouterDeps はモックを詰めたRouterDepsを返す。
func newTestRouterDeps() *RouterDeps {
	return &RouterDeps{
		CORSAllowedOrigin: "http://localhost:3000",
		MentorService:     &mockMentorService{},
		MenteeService:     &mockMenteeService{},
		ProgramService:    &mockProgramService{},
		ConnectionService: &mockConnectionService{},
		MatchingService:   &mockMatchingService{},
		SagaService:       &mockSagaService{},
	}
}

func TestNewRouter_RoutesAreRegistered(t *testing.T) {
	deps := newTestRouterDeps()
	deps.MentorService = &mockMentorService{
		findByIDFn: func(ctx context.Context, id string) (*model.Mentor, error) {
			return &model.Mentor{ID: id}, nil
		},
	}
	router := NewRouter(deps)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/health", ""},
		{http.MethodGet, "/mentors", ""},
		{http.MethodGet, "/mentors/id/m-1", ""},
		{http.MethodGet, "/mentees", ""},
		{http.MethodGet, "/programs", ""},
		{http.MethodGet, "/programs/mentor/ada@example.com", ""},
		{http.MethodGet, "/connections/mentor/m-1", ""},
		{http.MethodGet, "/connections/mentee/e-1", ""},
		{http.MethodPost, "/matching/find-matches", `{"name":"a","email":"a@example.com","goals":"g"}`},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code == http.StatusNotFound || w.Code == http.StatusMethodNotAllowed {
				t.Errorf("status = %d, route is not registered", w.Code)
			}
		})
	}
}

func TestNewRouter_AppliesCORSAndSecurityHeaders(t *testing.T) {
	router := NewRouter(newTestRouterDeps())

	req := httptest.NewRequest(http.MethodGet, "/mentors", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:3000")
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", got, "nosniff")
	}
}

// TestNewRouter_ForwardedHeadersDoNotBypassRateLimit は同一接続元が転送ヘッダーを
// 変えても別クライアントとして扱われないことを検証する。
func TestNewRouter_ForwardedHeadersDoNotBypassRateLimit(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.PerMinute(1))
	defer rl.Stop()

	calls := 0
	deps := newTestRouterDeps()
	deps.RateLimiter = rl
	deps.MatchingService = &mockMatchingService{
		findMatchesFn: func(ctx context.Context, req matching.Request) matching.Outcome {
			calls++
			return matching.Outcome{Status: http.StatusOK, Success: true}
		},
	}
	router := NewRouter(deps)

	var codes []int
	for i := 1; i <= 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/matching/find-matches",
			bytes.NewBufferString(`{"name":"a","email":"a@example.com","goals":"g"}`))
		req.RemoteAddr = "203.0.113.7:4321"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	want := []int{200, 429, 429, 429, 429}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes = %v, want %v", codes, want)
		}
	}
	if calls != 1 {
		t.Errorf("matcher calls = %d, want 1", calls)
	}
}

func TestNewRouter_TrustProxyHeadersUsesForwardedIP(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.PerMinute(1))
	defer rl.Stop()

	deps := newTestRouterDeps()
	deps.RateLimiter = rl
	deps.TrustProxyHeaders = true
	deps.MatchingService = &mockMatchingService{
		findMatchesFn: func(ctx context.Context, req matching.Request) matching.Outcome {
			return matching.Outcome{Status: http.StatusOK, Success: true}
		},
	}
	router := NewRouter(deps)

	for i := 1; i <= 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/matching/find-matches",
			bytes.NewBufferString(`{"name":"a","email":"a@example.com","goals":"g"}`))
		req.RemoteAddr = "10.0.0.1:4321"
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("request %d status = %d, want 200 (distinct clients behind proxy)", i, w.Code)
		}
	}
}

func TestNewRouter_RateLimitsFindMatchesOnly(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.PerMinute(1))
	defer rl.Stop()

	calls := 0
	deps := newTestRouterDeps()
	deps.RateLimiter = rl
	deps.MatchingService = &mockMatchingService{
		findMatchesFn: func(ctx context.Context, req matching.Request) matching.Outcome {
			calls++
			return matching.Outcome{Status: http.StatusOK, Success: true}
		},
	}
	router := NewRouter(deps)

	send := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path,
			bytes.NewBufferString(`{"name":"a","email":"a@example.com","goals":"g"}`))
		req.RemoteAddr = "203.0.113.5:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("/matching/find-matches"); code != http.StatusOK {
		t.Fatalf("first request status = %d, want %d", code, http.StatusOK)
	}
	if code := send("/matching/find-matches"); code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want %d", code, http.StatusTooManyRequests)
	}
	if calls != 1 {
		t.Errorf("matcher calls = %d, want 1", calls)
	}

	// 他のルートは制限されない
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/mentors", nil)
		req.RemoteAddr = "203.0.113.5:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			t.Fatalf("GET /mentors was rate limited")
		}
	}
}

func TestNewRouter_Health(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		wantStatus int
	}{
		{name: "チェッカーなし", checker: nil, wantStatus: http.StatusOK},
		{name: "DB疎通あり", checker: &stubHealthChecker{}, wantStatus: http.StatusOK},
		{name: "DB疎通なし", checker: &stubHealthChecker{err: errors.New("down")}, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestRouterDeps()
			deps.HealthChecker = tt.checker
			router := NewRouter(deps)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	deps := newTestRouterDeps()
	deps.Metrics = metrics.NewCollector(reg)
	deps.Gatherer = reg
	router := NewRouter(deps)

	// 1回リクエストを流してHTTPステータスのカウンタを生成する
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/mentors", nil))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "mentwork_") {
		t.Errorf("metrics output does not contain mentwork_ metrics:\n%s", w.Body.String())
	}
}

func TestNewRouter_RecoversFromPanic(t *testing.T) {
	deps := newTestRouterDeps()
	deps.MentorService = &mockMentorService{
		listFn: func(ctx context.Context) ([]*model.Mentor, error) {
			panic("boom")
		},
	}
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/mentors", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assertError(t, w, http.StatusInternalServerError, model.MsgInternalServerError)
}
