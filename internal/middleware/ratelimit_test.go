package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(clockwork.NewFakeClock())

	for i := 0; i < 5; i++ {
		if !rl.Allow("key", 5, time.Minute) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	if rl.Allow("key", 5, time.Minute) {
		t.Error("6th request should be denied")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(clock)

	for i := 0; i < 3; i++ {
		rl.Allow("key", 3, 10*time.Second)
	}
	if rl.Allow("key", 3, 10*time.Second) {
		t.Error("should be blocked within window")
	}

	clock.Advance(11 * time.Second)
	if !rl.Allow("key", 3, 10*time.Second) {
		t.Error("should be allowed after window expires")
	}
}

func TestRateLimiterExceededDoesNotCount(t *testing.T) {
	rl := NewRateLimiter(clockwork.NewFakeClock())

	if rl.Exceeded("key", 2) {
		t.Error("unseen key should not be exceeded")
	}
	rl.Allow("key", 2, time.Minute)
	for i := 0; i < 5; i++ {
		if rl.Exceeded("key", 2) {
			t.Fatal("Exceeded must not consume quota")
		}
	}
	rl.Allow("key", 2, time.Minute)
	if !rl.Exceeded("key", 2) {
		t.Error("key should be exceeded after limit hits")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(clock)

	rl.Allow("expired", 5, 10*time.Second)
	clock.Advance(15 * time.Second)
	rl.Allow("active", 5, time.Minute)

	rl.Cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.entries["expired"]; ok {
		t.Error("expired entry should have been cleaned up")
	}
	if _, ok := rl.entries["active"]; !ok {
		t.Error("active entry should still exist")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(nil)
	keyFunc := func(r *http.Request) string { return "test" }

	handler := RateLimit(rl, keyFunc, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	req := httptest.NewRequest("POST", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("3rd request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	if got := RealIP(req); got != "10.0.0.5" {
		t.Errorf("RealIP = %q, want 10.0.0.5", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := RealIP(req); got != "203.0.113.9" {
		t.Errorf("RealIP = %q, want 203.0.113.9", got)
	}
}
