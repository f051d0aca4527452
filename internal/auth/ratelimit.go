package auth

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// RateLimiter throttles password guessing. Failed logins are counted per
// client IP and username inside a fixed window; reaching the limit locks
// that pair out for LockoutDuration.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu       sync.Mutex
	failures map[throttleKey]*failureWindow

	stopOnce sync.Once
	stop     chan struct{}
}

// RateLimitConfig contains configuration for the rate limiter.
type RateLimitConfig struct {
	MaxAttempts     int           // Failures before lockout (default: 5)
	WindowDuration  time.Duration // Window for counting failures (default: 15m)
	LockoutDuration time.Duration // Lockout length (default: 30m)
	CleanupInterval time.Duration // Sweep period for stale entries (default: 5m)
}

// DefaultRateLimitConfig returns the limits used when nothing is configured.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts:     5,
		WindowDuration:  15 * time.Minute,
		LockoutDuration: 30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	d := DefaultRateLimitConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.WindowDuration <= 0 {
		c.WindowDuration = d.WindowDuration
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = d.LockoutDuration
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	return c
}

// Usernames are matched case-insensitively so "Alice" and "alice" share a budget.
type throttleKey struct {
	ip       string
	username string
}

func newThrottleKey(ip, username string) throttleKey {
	return throttleKey{ip: ip, username: strings.ToLower(strings.TrimSpace(username))}
}

type failureWindow struct {
	count       int
	started     time.Time
	lockedUntil time.Time
}

func (w *failureWindow) lockedAt(now time.Time) (time.Duration, bool) {
	if now.Before(w.lockedUntil) {
		return w.lockedUntil.Sub(now), true
	}
	return 0, false
}

// NewRateLimiter creates a limiter and starts its cleanup goroutine. Call
// Stop when done.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		failures: make(map[throttleKey]*failureWindow),
		stop:     make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow reports whether ip may attempt a login as username. When it may
// not, the second value is how long the lockout still lasts.
func (rl *RateLimiter) Allow(ip, username string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.failures[newThrottleKey(ip, username)]
	if !ok {
		return true, 0
	}
	if wait, locked := w.lockedAt(now); locked {
		return false, wait
	}
	return true, 0
}

// RecordFailure counts a failed login and reports whether it triggered a
// lockout, with the lockout length.
func (rl *RateLimiter) RecordFailure(ip, username string) (bool, time.Duration) {
	now := rl.now()
	key := newThrottleKey(ip, username)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.failures[key]
	if !ok || now.Sub(w.started) > rl.cfg.WindowDuration {
		w = &failureWindow{started: now}
		rl.failures[key] = w
	}

	w.count++
	if w.count < rl.cfg.MaxAttempts {
		return false, 0
	}
	w.lockedUntil = now.Add(rl.cfg.LockoutDuration)
	return true, rl.cfg.LockoutDuration
}

// RecordSuccess forgets earlier failures for the pair.
func (rl *RateLimiter) RecordSuccess(ip, username string) {
	rl.mu.Lock()
	delete(rl.failures, newThrottleKey(ip, username))
	rl.mu.Unlock()
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

// sweep drops windows that can no longer block anyone.
func (rl *RateLimiter) sweep() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, w := range rl.failures {
		_, locked := w.lockedAt(now)
		if !locked && now.Sub(w.started) > rl.cfg.WindowDuration {
			delete(rl.failures, key)
		}
	}
}

// RateLimitMiddleware rejects login requests for a locked IP and username
// pair with 429. The login handler records the outcome of attempts that
// get through.
func (rl *RateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		// ShouldBindBodyWith caches the body for the handler's own bind
		var req loginRequest
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil || req.Username == "" {
			c.Next()
			return
		}

		allowed, wait := rl.Allow(c.ClientIP(), req.Username)
		if !allowed {
			seconds := int(math.Ceil(wait.Seconds()))
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       CodeTooManyAttempts,
				"retry_after": seconds,
			})
			return
		}

		c.Next()
	}
}
