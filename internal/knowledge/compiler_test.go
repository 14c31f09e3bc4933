package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
)

type fakeSource struct {
	entries    []*domain.KnowledgeEntry
	config     json.RawMessage
	entriesErr error
	configErr  error
}

func (f *fakeSource) ListActive(ctx context.Context) ([]*domain.KnowledgeEntry, error) {
	if f.entriesErr != nil {
		return nil, f.entriesErr
	}
	return f.entries, nil
}

func (f *fakeSource) GetConfig(ctx context.Context, key string) (json.RawMessage, error) {
	if f.configErr != nil {
		return nil, f.configErr
	}
	if f.config == nil {
		return nil, apperrors.NotFound("config " + key)
	}
	return f.config, nil
}

func faqEntry() *domain.KnowledgeEntry {
	return domain.NewKnowledgeEntry("FAQ", domain.FAQContent{Items: []domain.FAQItem{
		{Question: "Prix ?", Answer: "2000€"},
	}}, 90)
}

func TestBuildSystemPrompt_NilSourceUsesFallback(t *testing.T) {
	c := NewCompiler(nil, nil, zap.NewNop())

	got := c.BuildSystemPrompt(context.Background())

	want := DefaultSystemPrompt().Prompt + "\n" + Separator + "\n" + FallbackKnowledge
	assert.Equal(t, want, got)
	assert.True(t, strings.HasPrefix(got, "Tu es l'assistant virtuel de Level App"))
	assert.Contains(t, got, "## TARIFICATION")
	assert.Contains(t, got, "## FAQ")
	assert.Contains(t, got, "## À PROPOS DE LEVEL APP")
}

func TestBuildSystemPrompt_EntriesAndConfiguredPersona(t *testing.T) {
	src := &fakeSource{
		entries: []*domain.KnowledgeEntry{faqEntry()},
		config:  json.RawMessage(`{"prompt":"P","tone":"friendly"}`),
	}
	c := NewCompiler(src, nil, zap.NewNop())

	got := c.BuildSystemPrompt(context.Background())

	assert.Equal(t, "P\n\n---\n\n## FAQ\n\n**Q: Prix ?**\nR: 2000€\n\n\n---\n", got)
	assert.NotContains(t, got, "## TARIFICATION")
}

func TestBuildSystemPrompt_KeepsSourceOrder(t *testing.T) {
	src := &fakeSource{entries: []*domain.KnowledgeEntry{
		domain.NewKnowledgeEntry("Custom", domain.CustomContextContent{Text: "Parle du MVP"}, 100),
		faqEntry(),
	}}
	c := NewCompiler(src, nil, zap.NewNop())

	got := c.BuildSystemPrompt(context.Background())

	custom := strings.Index(got, "## CONTEXTE ADDITIONNEL")
	faq := strings.Index(got, "## FAQ")
	require.True(t, custom > 0 && faq > 0)
	assert.Less(t, custom, faq)
	assert.Equal(t, 3, strings.Count(got, Separator))
}

func TestBuildSystemPrompt_Degradation(t *testing.T) {
	t.Run("config unavailable uses default persona", func(t *testing.T) {
		src := &fakeSource{entries: []*domain.KnowledgeEntry{faqEntry()}, configErr: errors.New("timeout")}
		got := NewCompiler(src, nil, zap.NewNop()).BuildSystemPrompt(context.Background())

		assert.True(t, strings.HasPrefix(got, DefaultSystemPrompt().Prompt+"\n"+Separator))
		assert.Contains(t, got, "**Q: Prix ?**")
	})

	t.Run("entries unavailable uses fallback", func(t *testing.T) {
		src := &fakeSource{entriesErr: errors.New("connection refused"), config: json.RawMessage(`{"prompt":"P"}`)}
		got := NewCompiler(src, nil, zap.NewNop()).BuildSystemPrompt(context.Background())

		assert.Equal(t, "P\n"+Separator+"\n"+FallbackKnowledge, got)
	})

	t.Run("config with empty prompt uses default persona", func(t *testing.T) {
		src := &fakeSource{config: json.RawMessage(`{"prompt":"  "}`)}
		got := NewCompiler(src, nil, zap.NewNop()).BuildSystemPrompt(context.Background())

		assert.True(t, strings.HasPrefix(got, DefaultSystemPrompt().Prompt))
	})

	t.Run("only unknown sections yields persona and separator", func(t *testing.T) {
		unknown := &domain.KnowledgeEntry{
			Section: "testimonials",
			Content: domain.UnknownContent{Tag: "testimonials", Raw: json.RawMessage(`{}`)},
		}
		src := &fakeSource{entries: []*domain.KnowledgeEntry{unknown}, config: json.RawMessage(`{"prompt":"P"}`)}
		got := NewCompiler(src, nil, zap.NewNop()).BuildSystemPrompt(context.Background())

		assert.Equal(t, "P\n"+Separator, got)
	})
}

func TestCompiler_BuildReportsDegradation(t *testing.T) {
	tests := []struct {
		name   string
		source Source
		want   bool
	}{
		{"healthy store", &fakeSource{entries: []*domain.KnowledgeEntry{faqEntry()}, config: json.RawMessage(`{"prompt":"P"}`)}, false},
		{"persona not configured", &fakeSource{entries: []*domain.KnowledgeEntry{faqEntry()}}, false},
		{"persona read failed", &fakeSource{entries: []*domain.KnowledgeEntry{faqEntry()}, configErr: errors.New("timeout")}, true},
		{"entries read failed", &fakeSource{entriesErr: errors.New("connection refused")}, true},
		{"no store configured", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, degraded := NewCompiler(tt.source, nil, zap.NewNop()).build(context.Background())
			assert.Equal(t, tt.want, degraded)
		})
	}
}

// barrierSource blocks each read until both reads have started.
type barrierSource struct {
	wg      sync.WaitGroup
	timeout bool
	mu      sync.Mutex
}

func newBarrierSource() *barrierSource {
	b := &barrierSource{}
	b.wg.Add(2)
	return b
}

func (b *barrierSource) wait() {
	b.wg.Done()
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		b.mu.Lock()
		b.timeout = true
		b.mu.Unlock()
	}
}

func (b *barrierSource) ListActive(ctx context.Context) ([]*domain.KnowledgeEntry, error) {
	b.wait()
	return []*domain.KnowledgeEntry{faqEntry()}, nil
}

func (b *barrierSource) GetConfig(ctx context.Context, key string) (json.RawMessage, error) {
	b.wait()
	return json.RawMessage(`{"prompt":"P"}`), nil
}

func TestBuildSystemPrompt_ReadsConcurrently(t *testing.T) {
	src := newBarrierSource()
	got := NewCompiler(src, nil, zap.NewNop()).BuildSystemPrompt(context.Background())

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.False(t, src.timeout, "config and entries must be fetched concurrently")
	assert.True(t, strings.HasPrefix(got, "P\n"))
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2},
		{"éèàù", 1},
		{strings.Repeat("x", 400), 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateTokens(tt.text), "EstimateTokens(%q)", tt.text)
	}
}

func TestEstimateTokens_NilSourcePrompt(t *testing.T) {
	prompt := NewCompiler(nil, nil, zap.NewNop()).BuildSystemPrompt(context.Background())
	tokens := EstimateTokens(prompt)

	assert.Greater(t, tokens, 0)
	assert.LessOrEqual(t, tokens*4-len([]rune(prompt)), 3)
}
