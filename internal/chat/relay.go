// Package chat relays visitor conversations to the LLM provider behind a
// system prompt compiled from the knowledge base.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/circuitbreaker"
	apperrors "github.com/levelapp/funnel/internal/errors"
	"github.com/levelapp/funnel/internal/llm"
	"github.com/levelapp/funnel/internal/metrics"
	"github.com/levelapp/funnel/internal/validation"
)

// Provider is the LLM the relay forwards to.
type Provider interface {
	Stream(ctx context.Context, messages []llm.Message, onDelta func(string) error) error
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// PromptBuilder compiles the system prompt. It never fails.
type PromptBuilder interface {
	BuildSystemPrompt(ctx context.Context) string
}

// Sink receives the answer text. WriteDelta must deliver the text to the
// visitor before returning (write and flush).
type Sink interface {
	WriteDelta(text string) error
}

// Result describes how a relayed stream ended.
type Result struct {
	Outcome  string
	Deltas   int
	Duration time.Duration
}

// Config bounds the conversations the relay forwards.
type Config struct {
	// MaxHistory keeps only the most recent turns. Zero keeps all of them.
	MaxHistory int
}

// Relay forwards conversations to the provider.
type Relay struct {
	provider Provider
	prompts  PromptBuilder
	cfg      Config
	metrics  *metrics.Metrics
	events   *metrics.BusinessEventLogger
	logger   *zap.Logger
}

// NewRelay creates a relay.
func NewRelay(provider Provider, prompts PromptBuilder, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Relay {
	logger = logger.Named("chat")
	return &Relay{
		provider: provider,
		prompts:  prompts,
		cfg:      cfg,
		metrics:  m,
		events:   metrics.NewBusinessEventLogger(logger),
		logger:   logger,
	}
}

// Respond streams the provider's answer to transcript into sink.
//
// An error is returned only when nothing was written to sink: the caller can
// still answer with a proper error response. Once text has been delivered a
// provider failure ends the stream early and is reported as a truncated
// Result instead.
func (r *Relay) Respond(ctx context.Context, transcript []llm.Message, sink Sink) (Result, error) {
	messages, err := r.prepare(ctx, transcript)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	deltas := 0
	var sinkErr error
	err = r.provider.Stream(ctx, messages, func(text string) error {
		if werr := sink.WriteDelta(text); werr != nil {
			sinkErr = werr
			return werr
		}
		deltas++
		return nil
	})

	res := Result{Deltas: deltas, Duration: time.Since(start)}
	switch {
	case err == nil:
		res.Outcome = metrics.ChatOutcomeCompleted
	case ctx.Err() != nil || (sinkErr != nil && errors.Is(err, sinkErr)):
		res.Outcome = metrics.ChatOutcomeCanceled
	case deltas > 0:
		res.Outcome = metrics.ChatOutcomeTruncated
		r.logger.Warn("chat stream truncated", zap.Int("deltas", deltas), zap.Error(err))
	default:
		res.Outcome = metrics.ChatOutcomeFailed
		r.logger.Error("chat stream failed before first token", zap.Error(err))
	}
	r.finish(ctx, res, len(transcript))

	if deltas > 0 || err == nil {
		return res, nil
	}
	if res.Outcome == metrics.ChatOutcomeCanceled {
		return res, err
	}
	return res, providerError("ChatRelay.Respond", err)
}

// Ask returns the provider's whole answer to transcript. It backs the admin
// console's prompt check, where streaming is not needed.
func (r *Relay) Ask(ctx context.Context, transcript []llm.Message) (string, error) {
	messages, err := r.prepare(ctx, transcript)
	if err != nil {
		return "", err
	}
	answer, err := r.provider.Complete(ctx, messages)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", providerError("ChatRelay.Ask", err)
	}
	return answer, nil
}

// prepare validates the visitor transcript and prepends the system prompt.
// Client-sent system turns are dropped.
func (r *Relay) prepare(ctx context.Context, transcript []llm.Message) ([]llm.Message, error) {
	if len(transcript) == 0 {
		return nil, apperrors.InvalidRequest("messages array is required")
	}
	if errs := ValidateTranscript(transcript); errs.HasErrors() {
		return nil, apperrors.ValidationFailed("invalid messages", errs)
	}

	turns := make([]llm.Message, 0, len(transcript))
	for _, m := range transcript {
		if m.Role == llm.RoleSystem {
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 {
		return nil, apperrors.InvalidRequest("messages must include a user or assistant turn")
	}
	if r.cfg.MaxHistory > 0 && len(turns) > r.cfg.MaxHistory {
		turns = turns[len(turns)-r.cfg.MaxHistory:]
	}

	messages := make([]llm.Message, 0, len(turns)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: r.prompts.BuildSystemPrompt(ctx)})
	return append(messages, turns...), nil
}

// ValidateTranscript checks every turn's role and content.
func ValidateTranscript(transcript []llm.Message) validation.ValidationErrors {
	v := validation.New()
	for i, m := range transcript {
		field := fmt.Sprintf("messages[%d]", i)
		if !m.Role.Valid() {
			v.AddError(field+".role", "must be one of: user, assistant, system", validation.CodeInvalidValue)
		}
		if strings.TrimSpace(m.Content) == "" {
			v.AddError(field+".content", "is required", validation.CodeRequired)
		}
	}
	return v.Errors()
}

func (r *Relay) finish(ctx context.Context, res Result, turns int) {
	if r.metrics != nil {
		r.metrics.RecordChatStream(res.Outcome, res.Deltas)
	}
	r.events.ChatStreamed(ctx, res.Outcome, turns, res.Deltas, res.Duration)
}

func providerError(op string, err error) error {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return apperrors.Wrap(err, op, apperrors.CodeCircuitOpen, apperrors.ErrCircuitOpen.Message)
	}
	return apperrors.WrapWithOp(apperrors.ProviderError("llm", err), op)
}
