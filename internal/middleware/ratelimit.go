// Package middleware holds the inbound HTTP middleware.
package middleware

import (
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aaron/footyhub/internal/config"
	"github.com/aaron/footyhub/internal/metrics"
)

// Limiter is a per-client-IP token bucket. Each IP may burst up to
// requests and earns one token back every per/requests.
type Limiter struct {
	requests int
	interval time.Duration
	maxStale time.Duration
	evictAt  int
	now      func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   int
	lastFill time.Time
	lastSeen time.Time
}

// NewLimiter creates a limiter allowing requests per IP per window, e.g.
// NewLimiter(60, time.Minute). Idle buckets are dropped after
// FOOTY_INBOUND_BUCKET_MAX_STALE once more than
// FOOTY_INBOUND_BUCKET_EVICT_THRESHOLD IPs are tracked.
func NewLimiter(requests int, per time.Duration) *Limiter {
	if requests < 1 {
		requests = 1
	}
	interval := per / time.Duration(requests)
	if interval <= 0 {
		interval = time.Nanosecond
	}
	return &Limiter{
		requests: requests,
		interval: interval,
		maxStale: config.InboundBucketMaxStale(),
		evictAt:  config.InboundBucketEvictThreshold(),
		now:      time.Now,
		buckets:  make(map[string]*bucket),
	}
}

// refill credits the tokens earned since the last fill, capped at max.
func (b *bucket) refill(now time.Time, interval time.Duration, max int) {
	earned := int(now.Sub(b.lastFill) / interval)
	if earned <= 0 {
		return
	}
	b.tokens = min(b.tokens+earned, max)
	b.lastFill = now
}

// Allow reports whether a request from ip may proceed and takes a token if so.
func (l *Limiter) Allow(ip string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buckets) > l.evictAt {
		l.evictStale(now)
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{tokens: l.requests, lastFill: now}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	b.refill(now, l.interval, l.requests)

	if b.tokens == 0 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) evictStale(now time.Time) {
	before := len(l.buckets)
	for ip, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.maxStale {
			delete(l.buckets, ip)
		}
	}
	if config.Debug() && len(l.buckets) < before {
		log.Printf("ratelimit: evicted %d idle buckets, %d left", before-len(l.buckets), len(l.buckets))
	}
}

func (l *Limiter) bucketCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Middleware rejects requests over the limit with 429 and a Retry-After.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Allow(clientIP(r)) {
			next.ServeHTTP(w, r)
			return
		}
		metrics.Inbound429.Add(1)
		w.Header().Set("Retry-After", strconv.Itoa(config.InboundRetryAfterSec()))
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
}

// clientIP prefers the first X-Forwarded-For hop over the socket address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
