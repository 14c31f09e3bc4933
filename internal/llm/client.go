// Package llm talks to an OpenAI-compatible chat completions provider
// (DeepSeek by default), both whole-answer and streamed.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/circuitbreaker"
	"github.com/levelapp/funnel/internal/metrics"
	"github.com/levelapp/funnel/internal/sanitize"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role the provider accepts.
func (r Role) Valid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Config configures the provider client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	// Timeout bounds a whole Complete call and the wait for the response
	// headers of a Stream call. The streamed body itself is bounded only by
	// the caller's context.
	Timeout time.Duration
}

// Provider defaults.
const (
	DefaultBaseURL     = "https://api.deepseek.com"
	DefaultModel       = "deepseek-chat"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
	DefaultTimeout     = 60 * time.Second
)

const breakerName = "llm"

// Client is a chat completions client guarded by a circuit breaker.
type Client struct {
	cfg            Config
	endpoint       string
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	metrics        *metrics.Metrics
	logger         *zap.Logger
}

// NewClient creates a client. Zero config fields take the provider defaults.
func NewClient(cfg Config, m *metrics.Metrics, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger = logger.Named("llm")

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout

	c := &Client{
		cfg:        cfg,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		httpClient: &http.Client{Transport: transport},
		metrics:    m,
		logger:     logger,
	}
	c.circuitBreaker = circuitbreaker.New(breakerName, circuitbreaker.DefaultConfig(), logger,
		circuitbreaker.WithStateChange(c.onBreakerStateChange))
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code,omitempty"`
}

// APIError is a non-200 answer from the provider.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("llm: provider error %d: %s - %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("llm: provider error %d: %s", e.StatusCode, e.Message)
}

// ErrEmptyResponse is returned by Complete when the provider sent no choices.
var ErrEmptyResponse = errors.New("llm: empty response")

// Complete sends the conversation and returns the whole answer.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	var answer string
	err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := c.post(ctx, messages, false)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var out chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("llm: decoding response: %w", err)
		}
		if len(out.Choices) == 0 {
			return ErrEmptyResponse
		}
		answer = out.Choices[0].Message.Content

		c.logger.Debug("completion received",
			zap.Int("prompt_tokens", out.Usage.PromptTokens),
			zap.Int("completion_tokens", out.Usage.CompletionTokens),
		)
		return nil
	})
	c.record(start, err)
	if err != nil {
		return "", err
	}
	return answer, nil
}

// Stream sends the conversation with streaming enabled and calls onDelta
// with each piece of answer text, in order. It returns when the provider
// sends [DONE] or closes the stream, when onDelta fails, or when ctx is
// canceled. Canceling ctx aborts the outbound request.
//
// The circuit breaker covers opening the stream. Errors while reading the
// body are returned but do not trip the breaker.
func (c *Client) Stream(ctx context.Context, messages []Message, onDelta func(string) error) error {
	start := time.Now()

	var body io.ReadCloser
	err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := c.post(ctx, messages, true)
		if err != nil {
			return err
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		c.record(start, err)
		return err
	}
	defer body.Close()

	parser := NewParser(onDelta)
	err = readStream(ctx, body, parser)
	if skipped := parser.Skipped(); skipped > 0 {
		c.logger.Warn("skipped malformed stream lines", zap.Int("count", skipped))
	}
	c.record(start, err)
	return err
}

func readStream(ctx context.Context, body io.Reader, parser *Parser) error {
	buf := make([]byte, 4096)
	for !parser.Done() {
		n, err := body.Read(buf)
		if n > 0 {
			if ferr := parser.Feed(buf[:n]); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return parser.Close()
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("llm: reading stream: %w", err)
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, messages []Message, stream bool) (*http.Response, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("llm: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseAPIError(resp)
	}
	return resp, nil
}

func parseAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wrapped struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Type: wrapped.Error.Type, Message: sanitize.String(wrapped.Error.Message)}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: sanitize.String(msg)}
}

func (c *Client) record(start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		c.metrics.RecordCircuitOpen()
		return
	}
	c.metrics.RecordLLMCall(err == nil, time.Since(start))
}

func (c *Client) onBreakerStateChange(name string, from, to circuitbreaker.State) {
	if c.metrics == nil {
		return
	}
	// Gauge values: 0 closed, 1 half-open, 2 open.
	switch to {
	case circuitbreaker.StateClosed:
		c.metrics.SetCircuitBreakerState(name, 0)
	case circuitbreaker.StateHalfOpen:
		c.metrics.SetCircuitBreakerState(name, 1)
	case circuitbreaker.StateOpen:
		c.metrics.SetCircuitBreakerState(name, 2)
		c.metrics.RecordCircuitTrip()
	}
}

// CircuitBreakerStats returns the provider circuit breaker statistics.
func (c *Client) CircuitBreakerStats() circuitbreaker.Stats {
	return c.circuitBreaker.Stats()
}

// IsCircuitOpen reports whether provider calls are currently rejected.
func (c *Client) IsCircuitOpen() bool {
	return c.circuitBreaker.IsOpen()
}

// ResetCircuitBreaker closes the provider circuit.
func (c *Client) ResetCircuitBreaker() {
	c.circuitBreaker.Reset()
}

// CloseIdleConnections closes kept-alive provider connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}
