package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/circuitbreaker"
	"github.com/levelapp/funnel/internal/metrics"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m := metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	c := NewClient(Config{
		APIKey:      "sk-test",
		BaseURL:     srv.URL + "/",
		Temperature: 0.7,
		Timeout:     5 * time.Second,
	}, m, zap.NewNop())
	return c, m
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{APIKey: "k"}, nil, zap.NewNop())

	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, "https://api.deepseek.com/chat/completions", c.endpoint)
	assert.Equal(t, DefaultMaxTokens, c.cfg.MaxTokens)
	assert.Equal(t, "closed", c.CircuitBreakerStats().State)
	assert.False(t, c.IsCircuitOpen())
}

func TestClient_Stream_RequestAndDeltas(t *testing.T) {
	var got chatRequest
	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, piece := range []string{"Bonjour", " !"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", piece)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var deltas []string
	err := c.Stream(context.Background(), []Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "Salut"},
	}, func(s string) error {
		deltas = append(deltas, s)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Bonjour", " !"}, deltas)
	assert.True(t, got.Stream)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMCallsTotal.WithLabelValues("success")))
}

func TestClient_Stream_APIError(t *testing.T) {
	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Authentication Fails","type":"authentication_error"}}`)
	})

	called := false
	err := c.Stream(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, func(string) error {
		called = true
		return nil
	})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "authentication_error", apiErr.Type)
	assert.Equal(t, "Authentication Fails", apiErr.Message)
	assert.False(t, called)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMCallsTotal.WithLabelValues("failure")))
}

func TestClient_Stream_PlainTextError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	err := c.Stream(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, func(string) error { return nil })

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream exploded", apiErr.Message)
}

func TestClient_Stream_ErrorMasksEchoedKey(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided: sk-live0123456789abcd","type":"invalid_request_error"}}`)
	})

	err := c.Stream(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, func(string) error { return nil })

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Incorrect API key provided: sk-****abcd", apiErr.Message)
}

func TestClient_Stream_CircuitOpens(t *testing.T) {
	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	msgs := []Message{{Role: RoleUser, Content: "x"}}
	noop := func(string) error { return nil }

	for i := 0; i < circuitbreaker.DefaultConfig().FailureThreshold; i++ {
		require.Error(t, c.Stream(context.Background(), msgs, noop))
	}

	err := c.Stream(context.Background(), msgs, noop)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.True(t, c.IsCircuitOpen())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("llm")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CircuitBreakerTrips))

	c.ResetCircuitBreaker()
	assert.False(t, c.IsCircuitOpen())
}

func TestClient_Stream_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	err := c.Stream(ctx, []Message{{Role: RoleUser, Content: "x"}}, func(s string) error {
		cancel()
		return nil
	})

	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Equal(t, "closed", c.CircuitBreakerStats().State)
	assert.Equal(t, int64(0), c.CircuitBreakerStats().TotalFailures)
}

func TestClient_Complete(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","choices":[{"message":{"role":"assistant","content":"Un MVP démarre à 2000€."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":10,"completion_tokens":8,"total_tokens":18}}`)
	})

	answer, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "Prix ?"}})

	require.NoError(t, err)
	assert.Equal(t, "Un MVP démarre à 2000€.", answer)
}

func TestClient_Complete_EmptyResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"c1","choices":[]}`)
	})

	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}})

	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleSystem, RoleUser, RoleAssistant} {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("tool").Valid())
}
