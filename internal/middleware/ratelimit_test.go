// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// testClock is a manually advanced clock for limiter tests.
type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, scope string, limit int, window time.Duration) (*RateLimiter, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(scope, limit, window)
	rl.now = clock.Now
	t.Cleanup(rl.Stop)
	return rl, clock
}

// captureLogs routes the default slog logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestRateLimiterBudgetPerClient(t *testing.T) {
	rl, _ := newTestLimiter(t, "test", 2, time.Minute)

	for i := 0; i < 2; i++ {
		if ok, _ := rl.allow("10.0.0.1"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if ok, _ := rl.allow("10.0.0.1"); ok {
		t.Error("third request should be rejected")
	}
	if ok, _ := rl.allow("10.0.0.2"); !ok {
		t.Error("another client has its own budget")
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl, clock := newTestLimiter(t, "test", 2, time.Minute)

	rl.allow("c")
	clock.Advance(30 * time.Second)
	rl.allow("c")

	clock.Advance(29 * time.Second)
	ok, wait := rl.allow("c")
	if ok {
		t.Fatal("window still holds two requests")
	}
	if wait != time.Second {
		t.Errorf("wait: got %v, want 1s until the first request expires", wait)
	}

	clock.Advance(2 * time.Second)
	if ok, _ := rl.allow("c"); !ok {
		t.Error("first request left the window; one slot should be free")
	}
	if ok, _ := rl.allow("c"); ok {
		t.Error("the slot was just used")
	}
}

func TestRateLimiterRejection(t *testing.T) {
	rl, _ := newTestLimiter(t, "rejection_test", 1, time.Minute)
	logs := captureLogs(t)

	handler := RequestID(rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/category", nil)
		req.RemoteAddr = "192.0.2.7:5555"
		req.Header.Set(RequestIDHeader, "req-42")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	before := testutil.ToFloat64(httpRateLimitedTotal.WithLabelValues("rejection_test"))

	if rr := send(); rr.Code != http.StatusCreated {
		t.Fatalf("first request: got %d, want 201", rr.Code)
	}
	rr := send()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want 429", rr.Code)
	}

	if got := rr.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After: got %q, want %q", got, "60")
	}
	if got := rr.Header().Get("Content-Type"); !strings.HasPrefix(got, "application/json") {
		t.Errorf("Content-Type: got %q, want application/json", got)
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Too Many Requests" {
		t.Errorf("error: got %q", body["error"])
	}

	after := testutil.ToFloat64(httpRateLimitedTotal.WithLabelValues("rejection_test"))
	if after-before != 1 {
		t.Errorf("rate_limited_total delta: got %v, want 1", after-before)
	}

	var line map[string]any
	if err := json.Unmarshal(logs.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", logs.String(), err)
	}
	for key, want := range map[string]string{
		"msg":        "rate limit exceeded",
		"scope":      "rejection_test",
		"client":     "192.0.2.7",
		"request_id": "req-42",
	} {
		if line[key] != want {
			t.Errorf("log %s: got %v, want %q", key, line[key], want)
		}
	}
}

func TestRateLimiterScopesAreIndependent(t *testing.T) {
	writes, _ := newTestLimiter(t, "scope_a", 1, time.Minute)
	other, _ := newTestLimiter(t, "scope_b", 1, time.Minute)
	captureLogs(t)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	send := func(rl *RateLimiter) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "198.51.100.1:1"
		rr := httptest.NewRecorder()
		rl.Middleware(ok).ServeHTTP(rr, req)
		return rr.Code
	}

	beforeB := testutil.ToFloat64(httpRateLimitedTotal.WithLabelValues("scope_b"))

	send(writes)
	if got := send(writes); got != http.StatusTooManyRequests {
		t.Fatalf("scope_a second request: got %d, want 429", got)
	}
	if got := send(other); got != http.StatusOK {
		t.Errorf("scope_b first request: got %d, want 200", got)
	}
	if d := testutil.ToFloat64(httpRateLimitedTotal.WithLabelValues("scope_b")) - beforeB; d != 0 {
		t.Errorf("scope_b rejections: got %v, want 0", d)
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl, clock := newTestLimiter(t, "test", 5, time.Minute)

	rl.allow("idle")
	clock.Advance(50 * time.Second)
	rl.allow("active")
	clock.Advance(20 * time.Second)

	rl.sweep()

	rl.mu.Lock()
	_, idle := rl.hits["idle"]
	active := len(rl.hits["active"])
	rl.mu.Unlock()

	if idle {
		t.Error("idle client should be forgotten")
	}
	if active != 1 {
		t.Errorf("active client: got %d hits, want 1", active)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		wait time.Duration
		want int
	}{
		{0, 1},
		{300 * time.Millisecond, 1},
		{1200 * time.Millisecond, 2},
		{time.Minute, 60},
	}
	for _, tt := range tests {
		if got := retryAfterSeconds(tt.wait); got != tt.want {
			t.Errorf("retryAfterSeconds(%v): got %d, want %d", tt.wait, got, tt.want)
		}
	}
}

func TestRateLimiterStopTwice(t *testing.T) {
	rl := NewRateLimiter("test", 1, time.Second)
	rl.Stop()
	rl.Stop()
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff, xri   string
		remoteAddr string
		want       string
	}{
		{"forwarded chain uses leftmost", "203.0.113.9, 10.0.0.1", "", "10.0.0.2:80", "203.0.113.9"},
		{"forwarded wins over real ip", "203.0.113.9", "198.51.100.4", "10.0.0.2:80", "203.0.113.9"},
		{"real ip", "", " 198.51.100.4 ", "10.0.0.2:80", "198.51.100.4"},
		{"ipv4 remote", "", "", "192.0.2.1:4321", "192.0.2.1"},
		{"ipv6 remote", "", "", "[2001:db8::1]:4321", "2001:db8::1"},
		{"remote without port", "", "", "192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
