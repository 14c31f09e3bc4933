// Package ratelimit bounds the LLM cost of the public chat endpoint.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/levelapp/funnel/internal/clock"
)

// Errors for rate limiting.
var (
	ErrRateLimitExceeded       = errors.New("rate limit exceeded")
	ErrConcurrentLimitExceeded = errors.New("concurrent stream limit exceeded")
)

// ChatLimiterConfig holds configuration for the chat limiter.
type ChatLimiterConfig struct {
	// Rate is the sustained number of requests per second per client.
	Rate float64
	// Burst is the number of requests a client may make at once.
	Burst int
	// MaxConcurrent caps open streams across all clients. Zero disables the cap.
	MaxConcurrent int
	// IdleTTL is how long an unused client bucket is kept.
	IdleTTL time.Duration
}

// DefaultChatLimiterConfig returns the defaults: one message every two
// seconds with a burst of five, at most twenty open streams.
func DefaultChatLimiterConfig() ChatLimiterConfig {
	return ChatLimiterConfig{
		Rate:          0.5,
		Burst:         5,
		MaxConcurrent: 20,
		IdleTTL:       10 * time.Minute,
	}
}

// ChatLimiter combines a token bucket per client with a global cap on open
// streams.
type ChatLimiter struct {
	mu sync.Mutex

	config  ChatLimiterConfig
	clients map[string]*chatClient
	active  int

	totalRequests int64
	totalRejected int64

	clock  clock.Clock
	logger *zap.Logger
}

type chatClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ChatLimiterStats is a snapshot of the limiter.
type ChatLimiterStats struct {
	Clients       int   `json:"clients"`
	Active        int   `json:"active"`
	MaxConcurrent int   `json:"max_concurrent"`
	TotalRequests int64 `json:"total_requests"`
	TotalRejected int64 `json:"total_rejected"`
}

// NewChatLimiter creates a new chat limiter. clk may be nil.
func NewChatLimiter(cfg ChatLimiterConfig, clk clock.Clock, logger *zap.Logger) *ChatLimiter {
	defaults := DefaultChatLimiterConfig()
	if cfg.Rate <= 0 {
		cfg.Rate = defaults.Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaults.IdleTTL
	}
	if clk == nil {
		clk = clock.New()
	}
	return &ChatLimiter{
		config:  cfg,
		clients: make(map[string]*chatClient),
		clock:   clk,
		logger:  logger,
	}
}

// Acquire takes a token from key's bucket and a stream slot. Every
// successful Acquire must be paired with a Release.
func (l *ChatLimiter) Acquire(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.totalRequests++
	now := l.clock.Now()

	if l.config.MaxConcurrent > 0 && l.active >= l.config.MaxConcurrent {
		l.reject(key, "concurrent limit")
		return ErrConcurrentLimitExceeded
	}

	c, ok := l.clients[key]
	if !ok {
		c = &chatClient{limiter: rate.NewLimiter(rate.Limit(l.config.Rate), l.config.Burst)}
		l.clients[key] = c
	}
	c.lastSeen = now

	if !c.limiter.AllowN(now, 1) {
		l.reject(key, "client limit")
		return ErrRateLimitExceeded
	}

	l.active++
	return nil
}

// Release frees a stream slot.
func (l *ChatLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active > 0 {
		l.active--
	}
}

func (l *ChatLimiter) reject(key, reason string) {
	l.totalRejected++
	l.logger.Debug("chat request rejected",
		zap.String("client", key),
		zap.String("reason", reason),
		zap.Int("active", l.active),
	)
}

// Sweep drops client buckets idle for longer than IdleTTL and returns how
// many were dropped.
func (l *ChatLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	removed := 0
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > l.config.IdleTTL {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle clients every IdleTTL until ctx is done.
func (l *ChatLimiter) Run(ctx context.Context) {
	ticker := l.clock.NewTicker(l.config.IdleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("idle chat clients dropped", zap.Int("count", n))
			}
		}
	}
}

// Stats returns current limiter statistics.
func (l *ChatLimiter) Stats() ChatLimiterStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return ChatLimiterStats{
		Clients:       len(l.clients),
		Active:        l.active,
		MaxConcurrent: l.config.MaxConcurrent,
		TotalRequests: l.totalRequests,
		TotalRejected: l.totalRejected,
	}
}
