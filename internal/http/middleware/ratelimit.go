// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the in-process token-bucket limiter. Every caller
// (user ID, else client IP) gets a general bucket; routes registered with
// Route draw from their own, usually tighter, bucket instead, which is how
// vote endpoints are kept from being hammered without slowing page loads.
// Exempt routes and idempotent replays never consume tokens.
//
// The limiter is process-local abuse control, not authorization.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to a caller identity such as "user:abc" or
// "ip:203.0.113.7".
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by the "userID" context value, then the
// X-User-ID header, then the client IP.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get("userID"); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return "user:" + h
		}
		return "ip:" + c.ClientIP()
	}
}

type budget struct {
	rps   rate.Limit
	burst int
}

func newBudget(rps float64, burst int) budget {
	if burst <= 0 {
		burst = 1
	}
	return budget{rps: rate.Limit(rps), burst: burst}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-caller token-bucket limiter. It is safe for
// concurrent use.
type RateLimiter struct {
	keyFn  keyFunc
	def    budget
	routes map[string]budget   // route template -> dedicated budget
	exempt map[string]struct{} // route templates never limited

	mu      sync.Mutex
	buckets map[string]*bucket
	idle    time.Duration // buckets unused this long are evicted
	sweepN  int           // lookups between sweeps
	lookups int
}

// NewRateLimiter returns a limiter granting rps tokens per second with the
// given burst (coerced to at least 1) to every caller.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	return &RateLimiter{
		keyFn:   keyFn,
		def:     newBudget(rps, burst),
		routes:  map[string]budget{},
		exempt:  map[string]struct{}{},
		buckets: map[string]*bucket{},
		idle:    10 * time.Minute,
		sweepN:  5000,
	}
}

// Exempt excludes route templates (c.FullPath()) from limiting. Call it
// before installing Handler.
func (rl *RateLimiter) Exempt(routes ...string) *RateLimiter {
	for _, r := range routes {
		rl.exempt[r] = struct{}{}
	}
	return rl
}

// Route gives the listed route templates their own per-caller bucket with the
// given budget. Routes passed in one call share a bucket. Call it before
// installing Handler.
func (rl *RateLimiter) Route(rps float64, burst int, routes ...string) *RateLimiter {
	b := newBudget(rps, burst)
	for _, r := range routes {
		rl.routes[r] = b
	}
	return rl
}

// limiter returns the bucket for the caller on route, creating it on first
// use. Idle buckets are swept every sweepN lookups, before the requested one
// is touched so a stale entry can be dropped even when it is the one asked for.
func (rl *RateLimiter) limiter(caller, route string) *rate.Limiter {
	b, dedicated := rl.routes[route]
	key := caller
	if dedicated {
		// Routes registered together share a bucket, keyed by the budget.
		key = caller + "|" + strconv.FormatFloat(float64(b.rps), 'g', -1, 64) + "/" + strconv.Itoa(b.burst)
	} else {
		b = rl.def
	}

	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= rl.sweepN {
		for k, v := range rl.buckets {
			if now.Sub(v.lastSeen) >= rl.idle {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.buckets[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(b.rps, b.burst)
	rl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay, which Handler serves without spending a token.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// retryAfter is the whole number of seconds until lim frees a token, at
// least 1.
func retryAfter(lim *rate.Limiter, now time.Time) string {
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return "1"
	}
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	secs := int(math.Ceil(delay.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// Handler returns the limiting middleware. Rejected requests get 429 with the
// usual error envelope and a Retry-After header.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if _, ok := rl.exempt[route]; ok || IsRateBypass(c) {
			c.Next()
			return
		}

		lim := rl.limiter(rl.keyFn(c), route)
		if lim.Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", retryAfter(lim, time.Now()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
