// Package knowledge compiles the chat system prompt from the knowledge base.
package knowledge

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
	"github.com/levelapp/funnel/internal/metrics"
)

// Source is the read side of the knowledge store the compiler needs.
type Source interface {
	// ListActive returns active entries ordered by priority, highest first.
	ListActive(ctx context.Context) ([]*domain.KnowledgeEntry, error)

	// GetConfig returns the raw value stored under key.
	GetConfig(ctx context.Context, key string) (json.RawMessage, error)
}

// Separator is placed after the persona and after every formatted section.
const Separator = "\n---\n"

// DefaultSystemPrompt is the persona used when none is configured.
func DefaultSystemPrompt() domain.SystemPromptConfig {
	return domain.SystemPromptConfig{
		Prompt: "Tu es l'assistant virtuel de Level App, une agence de développement d'applications mobiles et web.\n" +
			"Tu aides les prospects à comprendre nos services, tarifs et processus.\n" +
			"Sois professionnel, amical et précis. Réponds en français.\n" +
			"Utilise les informations ci-dessous pour répondre aux questions.",
		Personality: "professional",
		Language:    "fr",
		Tone:        "friendly",
	}
}

// Compiler builds the system prompt. A nil source means the knowledge store
// is not configured: the default persona and fallback knowledge are used.
type Compiler struct {
	source  Source
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewCompiler creates a compiler over source, which may be nil.
func NewCompiler(source Source, m *metrics.Metrics, logger *zap.Logger) *Compiler {
	return &Compiler{
		source:  source,
		metrics: m,
		logger:  logger.Named("knowledge"),
	}
}

// BuildSystemPrompt assembles the persona and every formatted active entry.
// Store failures degrade to the default persona and the fallback block; the
// prompt is always produced.
func (c *Compiler) BuildSystemPrompt(ctx context.Context) string {
	prompt, _ := c.build(ctx)
	return prompt
}

// build compiles the prompt and reports whether a store read failed. A
// degraded prompt reflects the outage, not the store contents.
func (c *Compiler) build(ctx context.Context) (prompt string, degraded bool) {
	start := time.Now()
	config, entries, degraded := c.load(ctx)

	parts := []string{config.Prompt, Separator}
	if len(entries) > 0 {
		for _, entry := range entries {
			formatted := FormatEntry(entry)
			if formatted == "" {
				continue
			}
			parts = append(parts, formatted, Separator)
		}
	} else {
		parts = append(parts, FallbackKnowledge)
	}

	prompt = strings.Join(parts, "\n")
	if c.metrics != nil {
		c.metrics.RecordPromptBuild(time.Since(start))
	}
	return prompt, degraded
}

// load fetches the persona and the active entries concurrently. degraded is
// true when either read failed for a reason other than a missing persona.
func (c *Compiler) load(ctx context.Context) (domain.SystemPromptConfig, []*domain.KnowledgeEntry, bool) {
	if c.source == nil {
		c.logger.Warn("knowledge store not configured, using fallback knowledge")
		return DefaultSystemPrompt(), nil, false
	}

	var (
		config                      = DefaultSystemPrompt()
		entries                     []*domain.KnowledgeEntry
		configFailed, entriesFailed bool
	)

	// Neither goroutine returns an error: each one degrades on its own.
	var g errgroup.Group
	g.Go(func() error {
		config, configFailed = c.loadConfig(ctx)
		return nil
	})
	g.Go(func() error {
		list, err := c.source.ListActive(ctx)
		if err != nil {
			c.logger.Error("failed to fetch knowledge entries", zap.Error(err))
			entriesFailed = true
			return nil
		}
		entries = list
		return nil
	})
	_ = g.Wait()

	return config, entries, configFailed || entriesFailed
}

func (c *Compiler) loadConfig(ctx context.Context) (domain.SystemPromptConfig, bool) {
	raw, err := c.source.GetConfig(ctx, domain.ConfigKeySystemPrompt)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return DefaultSystemPrompt(), false
		}
		c.logger.Warn("system prompt config unavailable, using default", zap.Error(err))
		return DefaultSystemPrompt(), true
	}

	var config domain.SystemPromptConfig
	if err := json.Unmarshal(raw, &config); err != nil || strings.TrimSpace(config.Prompt) == "" {
		c.logger.Warn("invalid system prompt config, using default", zap.Error(err))
		return DefaultSystemPrompt(), false
	}
	return config, false
}

// EstimateTokens approximates the token count of text at four characters per token.
func EstimateTokens(text string) int {
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / 4))
}
