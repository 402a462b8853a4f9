// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory token-bucket rate limiter with buckets
// per (rule, identity). Delivery endpoints are called by upstream chat
// services, where one group message turns into a call per receiver, so they
// get their own rule with a larger burst than the registry endpoints browsers
// and apps call.
//
// The limiter is process-local and is not an authorization mechanism.
package middleware

import (
	"cmp"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP returns a keyFunc that prefers a user identity (from the Gin
// context under "userID" or the X-User-ID header) and falls back to the
// client IP address. Keys are prefixed ("user:abc", "ip:203.0.113.7").
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid := userIDFromCtx(c); uid != "demo-user" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

// RateRule gives requests under PathPrefix their own bucket settings.
type RateRule struct {
	Name       string
	PathPrefix string
	RPS        float64
	Burst      int
}

const defaultRule = "default"

// visitor holds a single rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements per-key token buckets. Idle buckets are evicted
// during lookups. Safe for concurrent use.
type RateLimiter struct {
	rules    []RateRule // longest prefix first; last entry is the default
	keyFn    keyFunc
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
	now      func() time.Time
}

// NewRateLimiter builds a limiter whose default bucket refills at rps with
// the given burst. Rules override the default for matching path prefixes.
// Bursts <= 0 are coerced to 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc, rules ...RateRule) *RateLimiter {
	all := make([]RateRule, 0, len(rules)+1)
	for _, r := range rules {
		if r.PathPrefix == "" {
			continue
		}
		if r.Name == "" {
			r.Name = r.PathPrefix
		}
		r.Burst = max(r.Burst, 1)
		all = append(all, r)
	}
	// longest prefix wins
	slices.SortStableFunc(all, func(a, b RateRule) int {
		return cmp.Compare(len(b.PathPrefix), len(a.PathPrefix))
	})
	all = append(all, RateRule{Name: defaultRule, RPS: rps, Burst: max(burst, 1)})

	return &RateLimiter{
		rules:    all,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
		now:      time.Now,
	}
}

// rule returns the rule matching path.
func (rl *RateLimiter) rule(path string) RateRule {
	for _, r := range rl.rules[:len(rl.rules)-1] {
		if strings.HasPrefix(path, r.PathPrefix) {
			return r
		}
	}
	return rl.rules[len(rl.rules)-1]
}

// getVisitor returns (and touches) the limiter for key under rule r. Every
// 5000 lookups it first evicts buckets idle for at least ttl, so a stale
// bucket is dropped even when it is the one being fetched.
func (rl *RateLimiter) getVisitor(r RateRule, key string) *rate.Limiter {
	now := rl.now()
	id := r.Name + "|" + key

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[id]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rate.Limit(r.RPS), r.Burst)
	rl.visitors[id] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as
// a replay, which is served without consuming tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns a Gin middleware that enforces the limits. A rejected
// request gets 429 with a Retry-After (whole seconds until a token is
// available) and a compact JSON body:
//
//	{"request_id": "<uuid>", "code": "rate_limited", "message": "rate limit exceeded"}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		r := rl.rule(c.Request.URL.Path)
		lim := rl.getVisitor(r, rl.keyFn(c))

		now := rl.now()
		res := lim.ReserveN(now, 1)
		var wait time.Duration
		if res.OK() {
			wait = res.DelayFrom(now)
			if wait == 0 {
				c.Next()
				return
			}
			res.CancelAt(now)
		} else {
			// zero refill rate: nothing will ever free up
			wait = time.Minute
		}

		httpRateLimited.WithLabelValues(r.Name).Inc()
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
