package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/clock"
	apperrors "github.com/levelapp/funnel/internal/errors"
	"github.com/levelapp/funnel/internal/metrics"
)

// RateLimiter is a fixed-window request counter per IP address.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// NewRateLimiter creates a new rate limiter. clk and m may be nil. Call Run
// to evict stale visitors.
func NewRateLimiter(rate int, window time.Duration, clk clock.Clock, m *metrics.Metrics, logger *zap.Logger) *RateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		clock:    clk,
		metrics:  m,
		logger:   logger,
	}
}

// Run removes stale visitors every two windows until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := rl.clock.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastReset) > rl.window*2 {
			delete(rl.visitors, ip)
		}
	}
}

// allow checks if a request from the given IP is allowed. It returns the
// requests left in the window and, when denied, how long until it resets.
func (rl *RateLimiter) allow(ip string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()

	v, exists := rl.visitors[ip]
	if !exists || now.Sub(v.lastReset) >= rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true, rl.rate - 1, 0
	}

	if v.tokens > 0 {
		v.tokens--
		return true, v.tokens, 0
	}

	return false, 0, rl.window - now.Sub(v.lastReset)
}

// RateLimit returns HTTP middleware that rate limits requests per client IP.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)

			allowed, remaining, retryAfter := rl.allow(ip)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.rate))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				LoggerWithCorrelation(r.Context(), rl.logger).Warn("rate limit exceeded",
					zap.String("ip", ip),
					zap.String("path", r.URL.Path),
				)
				if rl.metrics != nil {
					rl.metrics.RecordRateLimitHit("ip")
				}
				w.Header().Set("Retry-After", retryAfterSeconds(retryAfter))
				writeError(w, apperrors.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// getClientIP extracts the client IP address from a request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientIP returns the address used to identify a client for rate limiting.
func ClientIP(r *http.Request) string {
	return getClientIP(r)
}

// LoginRateLimiter blocks an IP and email pair after repeated failed logins.
type LoginRateLimiter struct {
	mu       sync.Mutex
	attempts map[string]*loginAttempts
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

type loginAttempts struct {
	count     int
	firstTry  time.Time
	blockedAt time.Time
}

const (
	maxLoginAttempts = 5
	loginWindow      = 15 * time.Minute
	blockDuration    = 30 * time.Minute
)

// NewLoginRateLimiter creates a new login rate limiter. clk and m may be nil.
func NewLoginRateLimiter(clk clock.Clock, m *metrics.Metrics, logger *zap.Logger) *LoginRateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &LoginRateLimiter{
		attempts: make(map[string]*loginAttempts),
		clock:    clk,
		metrics:  m,
		logger:   logger,
	}
}

// Run removes stale entries every login window until ctx is done.
func (lrl *LoginRateLimiter) Run(ctx context.Context) {
	ticker := lrl.clock.NewTicker(loginWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			lrl.sweep()
		}
	}
}

func (lrl *LoginRateLimiter) sweep() {
	lrl.mu.Lock()
	defer lrl.mu.Unlock()

	now := lrl.clock.Now()
	for key, a := range lrl.attempts {
		if (!a.blockedAt.IsZero() && now.Sub(a.blockedAt) > blockDuration) ||
			(a.blockedAt.IsZero() && now.Sub(a.firstTry) > loginWindow) {
			delete(lrl.attempts, key)
		}
	}
}

func loginKey(ip, email string) string {
	return ip + ":" + strings.ToLower(strings.TrimSpace(email))
}

// Check records a login attempt and reports whether it may proceed.
func (lrl *LoginRateLimiter) Check(ip, email string) bool {
	key := loginKey(ip, email)

	lrl.mu.Lock()
	defer lrl.mu.Unlock()

	now := lrl.clock.Now()

	a, exists := lrl.attempts[key]
	if !exists {
		lrl.attempts[key] = &loginAttempts{count: 1, firstTry: now}
		return true
	}

	if !a.blockedAt.IsZero() {
		if now.Sub(a.blockedAt) < blockDuration {
			lrl.logger.Warn("login blocked",
				zap.String("ip", ip),
				zap.Duration("remaining", blockDuration-now.Sub(a.blockedAt)),
			)
			lrl.recordBlocked()
			return false
		}
		// Block expired, reset
		*a = loginAttempts{count: 1, firstTry: now}
		return true
	}

	if now.Sub(a.firstTry) > loginWindow {
		*a = loginAttempts{count: 1, firstTry: now}
		return true
	}

	a.count++
	if a.count > maxLoginAttempts {
		a.blockedAt = now
		lrl.logger.Warn("login rate limit exceeded, blocking",
			zap.String("ip", ip),
			zap.Int("attempts", a.count),
		)
		lrl.recordBlocked()
		return false
	}

	return true
}

func (lrl *LoginRateLimiter) recordBlocked() {
	if lrl.metrics != nil {
		lrl.metrics.RecordAuthRateLimited()
		lrl.metrics.RecordRateLimitHit("login")
	}
}

// RecordSuccess resets the counter after a successful login.
func (lrl *LoginRateLimiter) RecordSuccess(ip, email string) {
	lrl.mu.Lock()
	defer lrl.mu.Unlock()

	delete(lrl.attempts, loginKey(ip, email))
}

// RemainingAttempts returns the number of remaining login attempts.
func (lrl *LoginRateLimiter) RemainingAttempts(ip, email string) int {
	lrl.mu.Lock()
	defer lrl.mu.Unlock()

	a, exists := lrl.attempts[loginKey(ip, email)]
	if !exists {
		return maxLoginAttempts
	}
	if !a.blockedAt.IsZero() {
		if lrl.clock.Now().Sub(a.blockedAt) < blockDuration {
			return 0
		}
		return maxLoginAttempts
	}
	if lrl.clock.Now().Sub(a.firstTry) > loginWindow {
		return maxLoginAttempts
	}

	return max(maxLoginAttempts-a.count, 0)
}
