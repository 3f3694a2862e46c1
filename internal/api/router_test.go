package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pet-food-safety/internal/api/handlers/health"
	"pet-food-safety/internal/core/ratelimit"
	"pet-food-safety/internal/core/safety"
	"pet-food-safety/internal/infrastructure/config"
	"pet-food-safety/internal/infrastructure/metrics"
)

type stubChecker struct {
	calls int
}

func (s *stubChecker) Check(ctx context.Context, q safety.Query) (safety.Verdict, bool, error) {
	s.calls++
	return safety.Verdict{
		Food:            q.Food,
		PetType:         q.PetType,
		SafetyLevel:     safety.LevelSafe,
		Summary:         "Yes.",
		Details:         "Yes.",
		Symptoms:        []string{},
		Recommendations: []string{"Serve plain."},
		SourceKind:      safety.SourceDatabase,
	}, false, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Version = "test"
	cfg.AI.Timeout = time.Second
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.RateLimit.Enabled = true
	return cfg
}

func setupTestRouter(t *testing.T, checks map[string]health.Check) (*stubChecker, http.Handler) {
	t.Helper()
	return setupTestRouterWithConfig(t, testConfig(), checks)
}

func setupTestRouterWithConfig(t *testing.T, cfg *config.Config, checks map[string]health.Check) (*stubChecker, http.Handler) {
	t.Helper()

	limiter := ratelimit.NewLimiter(map[ratelimit.Action]ratelimit.Rule{
		ratelimit.ActionSearch: {MaxRequests: 2, Window: time.Minute},
		ratelimit.ActionLog:    {MaxRequests: 5, Window: time.Minute},
	})
	t.Cleanup(func() { limiter.Close() })

	reg := prometheus.NewRegistry()
	checker := &stubChecker{}
	router, err := SetupRouter(Dependencies{
		Config:   cfg,
		Checker:  checker,
		Limiter:  limiter,
		Metrics:  metrics.NewCollector(reg),
		Gatherer: reg,
		Checks:   checks,
	})
	if err != nil {
		t.Fatalf("SetupRouter: %v", err)
	}
	return checker, router
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSetupRouter_RequiresDependencies(t *testing.T) {
	if _, err := SetupRouter(Dependencies{}); err == nil {
		t.Error("expected error without config")
	}
	if _, err := SetupRouter(Dependencies{Config: testConfig()}); err == nil {
		t.Error("expected error without checker")
	}
}

func TestCheckFoodRoute_RateLimited(t *testing.T) {
	checker, router := setupTestRouter(t, nil)
	body := `{"food":"carrots","petType":"dog"}`

	for i := 0; i < 2; i++ {
		w := doRequest(router, http.MethodPost, "/api/v1/check-food", body)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, body = %s", i+1, w.Code, w.Body.String())
		}
		if w.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header")
		}
	}

	w := doRequest(router, http.MethodPost, "/api/v1/check-food", body)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if checker.calls != 2 {
		t.Errorf("checker calls = %d, want 2", checker.calls)
	}

	// 日誌端點使用獨立的計數
	if w := doRequest(router, http.MethodPost, "/api/v1/log", `{"level":"info","message":"hi"}`); w.Code != http.StatusNoContent {
		t.Errorf("log status = %d, want 204", w.Code)
	}
}

func postFrom(h http.Handler, remoteAddr, forwardedFor, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/check-food", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCheckFoodRoute_ForwardedForIgnoredByDefault(t *testing.T) {
	checker, router := setupTestRouter(t, nil)
	body := `{"food":"carrots","petType":"dog"}`

	var codes []int
	for i := 1; i <= 5; i++ {
		w := postFrom(router, "203.0.113.7:5000", fmt.Sprintf("10.0.0.%d", i), body)
		codes = append(codes, w.Code)
	}

	want := []int{200, 200, 429, 429, 429}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("status codes = %v, want %v", codes, want)
		}
	}
	if checker.calls != 2 {
		t.Errorf("checker calls = %d, want 2", checker.calls)
	}
}

func TestCheckFoodRoute_TrustedProxyForwardsClientIP(t *testing.T) {
	cfg := testConfig()
	cfg.Server.TrustedProxies = []string{"203.0.113.7"}
	checker, router := setupTestRouterWithConfig(t, cfg, nil)
	body := `{"food":"carrots","petType":"dog"}`

	// 經由受信任代理的不同客戶端各自計數
	for i := 1; i <= 3; i++ {
		w := postFrom(router, "203.0.113.7:5000", fmt.Sprintf("10.0.0.%d", i), body)
		if w.Code != http.StatusOK {
			t.Fatalf("client %d status = %d, want 200", i, w.Code)
		}
	}

	// 非受信任來源的標頭不被採用
	for i := 1; i <= 3; i++ {
		w := postFrom(router, "198.51.100.9:5000", fmt.Sprintf("10.1.0.%d", i), body)
		if i == 3 && w.Code != http.StatusTooManyRequests {
			t.Errorf("untrusted peer status = %d, want 429", w.Code)
		}
	}
	if checker.calls != 5 {
		t.Errorf("checker calls = %d, want 5", checker.calls)
	}
}

func TestSetupRouter_InvalidTrustedProxy(t *testing.T) {
	cfg := testConfig()
	cfg.Server.TrustedProxies = []string{"not-an-address"}
	if _, err := SetupRouter(Dependencies{Config: cfg, Checker: &stubChecker{}}); err == nil {
		t.Error("expected error for invalid trusted proxy")
	}
}

func TestCheckFoodRoute_ChunkedBodyTooLarge(t *testing.T) {
	checker, router := setupTestRouter(t, nil)

	body := `{"food":"` + strings.Repeat("a", defaultMaxBodySize) + `","petType":"dog"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/check-food", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
	if checker.calls != 0 {
		t.Errorf("checker calls = %d, want 0", checker.calls)
	}
}

func TestHealthRoutes(t *testing.T) {
	_, router := setupTestRouter(t, map[string]health.Check{
		"database": func(ctx context.Context) error { return nil },
	})

	for _, path := range []string{"/health", "/ready", "/live"} {
		if w := doRequest(router, http.MethodGet, path, ""); w.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, w.Code)
		}
	}
}

func TestReadyRoute_DependencyDown(t *testing.T) {
	_, router := setupTestRouter(t, map[string]health.Check{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})

	w := doRequest(router, http.MethodGet, "/ready", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"redis":"unavailable"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestMetricsRoute(t *testing.T) {
	_, router := setupTestRouter(t, nil)
	doRequest(router, http.MethodGet, "/live", "")

	w := doRequest(router, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "petsafe_http_responses_total") {
		t.Errorf("metrics output missing http counter")
	}
}

func TestCorsConfig(t *testing.T) {
	if cfg := corsConfig([]string{"*"}); !cfg.AllowAllOrigins || cfg.AllowCredentials {
		t.Errorf("wildcard config = %+v", cfg)
	}
	cfg := corsConfig([]string{"https://petsafe.example"})
	if cfg.AllowAllOrigins || len(cfg.AllowOrigins) != 1 || !cfg.AllowCredentials {
		t.Errorf("explicit config = %+v", cfg)
	}
}
