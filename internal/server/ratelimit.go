// ratelimit.go - Sliding-window upload quota per client address.
//
// Every upload attempt from an address counts against the window,
// regardless of how the attempt ends. Window state is owned here and
// never shared; entries with no recent activity are dropped by a
// background sweep.
package server

import (
	"net/http"
	"sync"
	"time"
)

// rateLimiter allows at most rate attempts per window per client
// address.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration

	now func() time.Time // injectable for tests
}

// visitor holds the attempt timestamps of one client address.
type visitor struct {
	mu       sync.Mutex
	attempts []time.Time
}

// newRateLimiter creates a limiter allowing rate attempts per window
// per address and starts its cleanup sweep.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
	}
	go rl.cleanup()
	return rl
}

// allow records one attempt from addr and reports whether it is within
// quota. Attempts older than the window no longer count.
func (rl *rateLimiter) allow(addr string) bool {
	rl.mu.Lock()
	v, exists := rl.visitors[addr]
	if !exists {
		v = &visitor{attempts: make([]time.Time, 0, rl.rate)}
		rl.visitors[addr] = v
	}
	now := rl.now()
	rl.mu.Unlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	cutoff := now.Add(-rl.window)
	live := v.attempts[:0]
	for _, t := range v.attempts {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}
	v.attempts = live

	if len(v.attempts) >= rl.rate {
		return false
	}
	v.attempts = append(v.attempts, now)
	return true
}

// middleware rejects over-quota requests with 429 before the wrapped
// handler runs.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(getClientIP(r)) {
			rateLimitedTotal.Inc()
			writeError(w, r, errTooManyRequests())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cleanup drops visitors whose last attempt is two windows old.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := rl.now().Add(-rl.window * 2)

		rl.mu.Lock()
		for addr, v := range rl.visitors {
			v.mu.Lock()
			if len(v.attempts) == 0 || v.attempts[len(v.attempts)-1].Before(cutoff) {
				delete(rl.visitors, addr)
			}
			v.mu.Unlock()
		}
		rl.mu.Unlock()
	}
}

// getClientIP extracts the client address, honoring reverse-proxy
// headers before falling back to RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i, c := range xff {
			if c == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	for i := len(r.RemoteAddr) - 1; i >= 0; i-- {
		if r.RemoteAddr[i] == ':' {
			return r.RemoteAddr[:i]
		}
	}
	return r.RemoteAddr
}
