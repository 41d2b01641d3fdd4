package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/checkmarble/marble-frontend-sub003/pkg/pipeline"
)

func TestTokenBucketLimiter(t *testing.T) {
	limiter := NewTokenBucketLimiter()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		allowed, remaining, _ := limiter.Allow("k", 3, time.Minute)
		if !allowed {
			t.Fatalf("Expected request %d to be allowed", i+1)
		}
		if remaining != 2-i {
			t.Errorf("Expected %d remaining, got %d", 2-i, remaining)
		}
	}

	allowed, remaining, reset := limiter.Allow("k", 3, time.Minute)
	if allowed {
		t.Fatalf("Expected fourth request to be denied")
	}
	if remaining != 0 {
		t.Errorf("Expected 0 remaining, got %d", remaining)
	}
	if reset <= 0 || reset > 20*time.Second {
		t.Errorf("Expected reset within one refill interval, got %v", reset)
	}

	// Other keys have their own bucket
	if allowed, _, _ := limiter.Allow("other", 3, time.Minute); !allowed {
		t.Errorf("Expected a different key to be allowed")
	}

	// One refill interval later a token is available again
	now = now.Add(20 * time.Second)
	if allowed, _, _ := limiter.Allow("k", 3, time.Minute); !allowed {
		t.Errorf("Expected request to be allowed after refill")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	clientIP := ClientIP(&IPConfig{Source: IPSourceRemoteAddr, TrustProxy: true})
	limit := RateLimit(RateLimitConfig{
		BucketName: "api",
		Limit:      1,
		Window:     time.Hour,
		Strategy:   StrategyIP,
	}, NewTokenBucketLimiter(), clientIP)

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	seen, resp := runPipeline(t, req, limit)
	if seen == nil {
		t.Fatalf("Expected first request to reach the handler")
	}
	if resp.Header.Get("X-RateLimit-Limit") != "1" || resp.Header.Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("Unexpected rate limit headers %v", resp.Header)
	}

	seen, resp = runPipeline(t, req, limit)
	if seen != nil {
		t.Errorf("Expected second request to be rejected before the handler")
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected status %d, got %d", http.StatusTooManyRequests, resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Errorf("Expected Retry-After header")
	}

	// A different client is not affected
	other := httptest.NewRequest("GET", "/", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	if seen, _ := runPipeline(t, other, limit); seen == nil {
		t.Errorf("Expected another client to be allowed")
	}
}

// TestRateLimitSharesGlobalClientIP checks ClientIP runs once when used globally and as a dependency
func TestRateLimitSharesGlobalClientIP(t *testing.T) {
	pipeline.ResetGlobalMiddlewares()
	t.Cleanup(pipeline.ResetGlobalMiddlewares)

	clientIP := ClientIP(nil)
	pipeline.SetGlobalMiddlewares(clientIP)

	limit := RateLimit(RateLimitConfig{BucketName: "shared", Limit: 10, Window: time.Minute}, NewTokenBucketLimiter(), clientIP)

	observer := newCountingObserver()
	fn := pipeline.CreateServerFn([]*pipeline.Definition{limit}, func(inv *pipeline.Invocation) (any, error) {
		return GetClientIP(inv.Context), nil
	}, pipeline.WithObserver(observer))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "10.1.1.1")
	resp, err := fn.Respond(req, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(resp.Body) != `"10.1.1.1"` {
		t.Errorf("Expected client IP body, got %q", string(resp.Body))
	}
	if observer.invoked["client_ip"] != 1 {
		t.Errorf("Expected client_ip to run once, got %d", observer.invoked["client_ip"])
	}
}

func TestRateLimitStrategies(t *testing.T) {
	clientIP := ClientIP(&IPConfig{Source: IPSourceRemoteAddr, TrustProxy: true})
	auth := Authentication(AuthConfig{
		Provider: &BearerTokenProvider{ValidTokens: map[string]any{"a": "alice", "b": "bob"}},
	})

	byUser := RateLimit(RateLimitConfig{
		BucketName: "user",
		Limit:      1,
		Window:     time.Hour,
		Strategy:   StrategyUser,
	}, NewTokenBucketLimiter(), clientIP, auth)

	request := func(token string) *http.Request {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:1"
		req.Header.Set("Authorization", "Bearer "+token)
		return req
	}

	// Same IP, different users, separate buckets
	if seen, _ := runPipeline(t, request("a"), byUser); seen == nil {
		t.Errorf("Expected alice to be allowed")
	}
	if seen, _ := runPipeline(t, request("b"), byUser); seen == nil {
		t.Errorf("Expected bob to be allowed")
	}
	if seen, _ := runPipeline(t, request("a"), byUser); seen != nil {
		t.Errorf("Expected alice's second request to be limited")
	}

	// Custom extractor errors propagate
	errExtract := errors.New("no tenant")
	custom := RateLimit(RateLimitConfig{
		Limit:    1,
		Window:   time.Second,
		Strategy: StrategyCustom,
		KeyExtractor: func(inv *pipeline.Invocation) (string, error) {
			return "", errExtract
		},
	}, NewTokenBucketLimiter(), clientIP)

	pipeline.ResetGlobalMiddlewares()
	fn := pipeline.CreateServerFn([]*pipeline.Definition{custom}, func(inv *pipeline.Invocation) (any, error) {
		return nil, nil
	})
	if _, err := fn.Run(httptest.NewRequest("GET", "/", nil), nil); !errors.Is(err, errExtract) {
		t.Errorf("Expected extractor error, got %v", err)
	}
}

func TestThrottle(t *testing.T) {
	throttle := Throttle(1000)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if seen, _ := runPipeline(t, httptest.NewRequest("GET", "/", nil), throttle); seen == nil {
			t.Fatalf("Expected request %d to pass the throttle", i+1)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected throttled requests to complete quickly, took %v", elapsed)
	}
}
