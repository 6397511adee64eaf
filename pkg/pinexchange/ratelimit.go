// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinexchange

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client IP and evicts buckets that
// have been idle longer than staleAge.
type ipRateLimiter struct {
	mu       sync.Mutex
	entries  map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	staleAge time.Duration
	stopOnce sync.Once
	stopCh   chan struct{}
}

func newIPRateLimiter(r float64, burst int, staleAge, cleanupInterval time.Duration) *ipRateLimiter {
	rl := &ipRateLimiter{
		entries:  make(map[string]*limiterEntry),
		limit:    rate.Limit(r),
		burst:    burst,
		staleAge: staleAge,
		stopCh:   make(chan struct{}),
	}
	go rl.evictLoop(cleanupInterval)
	return rl
}

// Allow reports whether ip may open another connection now.
func (rl *ipRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.entries[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[ip] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

// Len returns the number of tracked IPs.
func (rl *ipRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

// Stop ends the eviction goroutine. It is safe to call more than once.
func (rl *ipRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *ipRateLimiter) evictLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case now := <-ticker.C:
			rl.evict(now)
		}
	}
}

func (rl *ipRateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, e := range rl.entries {
		if now.Sub(e.lastSeen) > rl.staleAge {
			delete(rl.entries, ip)
		}
	}
}
