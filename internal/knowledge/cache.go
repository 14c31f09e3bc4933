package knowledge

import (
	"context"

	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/metrics"
)

// PromptBuilder produces the system prompt.
type PromptBuilder interface {
	BuildSystemPrompt(ctx context.Context) string
}

// PromptCache stores the last compiled prompt.
type PromptCache interface {
	// Get returns the cached prompt; ok is false on a miss.
	Get(ctx context.Context) (prompt string, ok bool, err error)

	// Set stores prompt.
	Set(ctx context.Context, prompt string) error

	// Invalidate drops the cached prompt.
	Invalidate(ctx context.Context) error
}

// degradable is implemented by builders that can tell a prompt compiled during
// a store outage from one that reflects the store.
type degradable interface {
	build(ctx context.Context) (prompt string, degraded bool)
}

// CachedCompiler serves the compiled prompt from a cache and compiles on a miss.
// Cache failures fall through to the compiler. Prompts compiled while the
// knowledge store is failing are served but never cached.
type CachedCompiler struct {
	builder PromptBuilder
	cache   PromptCache
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewCachedCompiler wraps builder with cache.
func NewCachedCompiler(builder PromptBuilder, cache PromptCache, m *metrics.Metrics, logger *zap.Logger) *CachedCompiler {
	return &CachedCompiler{
		builder: builder,
		cache:   cache,
		metrics: m,
		logger:  logger.Named("prompt_cache"),
	}
}

// BuildSystemPrompt returns the cached prompt or compiles and caches a new one.
func (c *CachedCompiler) BuildSystemPrompt(ctx context.Context) string {
	prompt, ok, err := c.cache.Get(ctx)
	switch {
	case err != nil:
		c.record("error")
		c.logger.Warn("prompt cache read failed", zap.Error(err))
	case ok:
		c.record("hit")
		return prompt
	default:
		c.record("miss")
	}

	prompt, degraded := c.compile(ctx)
	if degraded {
		c.logger.Warn("knowledge store degraded, not caching fallback prompt")
		return prompt
	}
	if err := c.cache.Set(ctx, prompt); err != nil {
		c.logger.Warn("prompt cache write failed", zap.Error(err))
	}
	return prompt
}

func (c *CachedCompiler) compile(ctx context.Context) (string, bool) {
	if b, ok := c.builder.(degradable); ok {
		return b.build(ctx)
	}
	return c.builder.BuildSystemPrompt(ctx), false
}

// Invalidate drops the cached prompt so the next build reflects the store.
func (c *CachedCompiler) Invalidate(ctx context.Context) {
	if err := c.cache.Invalidate(ctx); err != nil {
		c.logger.Warn("prompt cache invalidation failed", zap.Error(err))
	}
}

func (c *CachedCompiler) record(result string) {
	if c.metrics != nil {
		c.metrics.RecordPromptCache(result)
	}
}
