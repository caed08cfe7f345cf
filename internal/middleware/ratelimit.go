// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// sweepInterval is how often idle clients are dropped from a limiter.
const sweepInterval = 5 * time.Minute

// RateLimiter caps how many requests one client may send to the route group
// it guards within a sliding window. The scope names that group in logs and
// metrics; each group gets its own limiter and therefore its own budget.
type RateLimiter struct {
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time // per client, oldest first

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter for scope that allows limit requests per
// window and starts a goroutine that drops idle clients. Call Stop to end it.
func NewRateLimiter(scope string, limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		scope:  scope,
		limit:  limit,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
		stop:   make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.sweep()
			case <-rl.stop:
				return
			}
		}
	}()

	return rl
}

// Stop ends the background sweep. It may be called more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Middleware rejects clients over budget with a JSON 429 carrying
// Retry-After, and counts and logs each rejection.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		ok, wait := rl.allow(client)
		if !ok {
			httpRateLimitedTotal.WithLabelValues(rl.scope).Inc()
			slog.Warn("rate limit exceeded",
				"scope", rl.scope,
				"client", client,
				"method", r.Method,
				"path", r.URL.Path,
				"retry_after", wait.String(),
				"request_id", RequestIDFromCtx(r.Context()),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			writeError(w, http.StatusTooManyRequests, "Too Many Requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allow records a request from client if it fits the budget. When it does
// not, wait is the time until the oldest request leaves the window.
func (rl *RateLimiter) allow(client string) (ok bool, wait time.Duration) {
	now := rl.now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := dropBefore(rl.hits[client], cutoff)
	if len(recent) >= rl.limit {
		rl.hits[client] = recent
		return false, recent[0].Sub(cutoff)
	}
	rl.hits[client] = append(recent, now)
	return true, 0
}

// sweep forgets clients with no request inside the window.
func (rl *RateLimiter) sweep() {
	cutoff := rl.now().Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for client, hits := range rl.hits {
		if recent := dropBefore(hits, cutoff); len(recent) == 0 {
			delete(rl.hits, client)
		} else {
			rl.hits[client] = recent
		}
	}
}

// dropBefore returns the suffix of hits newer than cutoff.
func dropBefore(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// retryAfterSeconds rounds wait up to whole seconds, at least one.
func retryAfterSeconds(wait time.Duration) int {
	s := int(math.Ceil(wait.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// clientIP identifies the caller: the leftmost X-Forwarded-For entry, then
// X-Real-IP, then the host part of RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
