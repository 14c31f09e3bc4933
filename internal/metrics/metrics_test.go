package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	if m == nil {
		t.Fatal("NewMetricsWithRegistry returned nil")
	}
	if m.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal not initialized")
	}
	if m.ChatStreamsTotal == nil {
		t.Error("ChatStreamsTotal not initialized")
	}
	if m.PromptCacheTotal == nil {
		t.Error("PromptCacheTotal not initialized")
	}
}

func TestMetrics_RecordAuthAttempt(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordAuthAttempt(true)
	m.RecordAuthAttempt(true)
	m.RecordAuthAttempt(false)
	m.RecordAuthRateLimited()

	successCount := testutil.ToFloat64(m.AuthAttemptsTotal.WithLabelValues("success"))
	failureCount := testutil.ToFloat64(m.AuthAttemptsTotal.WithLabelValues("failure"))
	limitedCount := testutil.ToFloat64(m.AuthAttemptsTotal.WithLabelValues("rate_limited"))

	if successCount != 2 {
		t.Errorf("success count = %f, expected 2", successCount)
	}
	if failureCount != 1 {
		t.Errorf("failure count = %f, expected 1", failureCount)
	}
	if limitedCount != 1 {
		t.Errorf("rate_limited count = %f, expected 1", limitedCount)
	}
}

func TestMetrics_FunnelEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordEstimate()
	m.RecordEstimate()
	m.RecordLeadCreated("calculator")
	m.RecordQuoteSaved(true)
	m.RecordQuoteSaved(false)
	m.RecordQuoteSaved(false)

	if got := testutil.ToFloat64(m.EstimatesTotal); got != 2 {
		t.Errorf("estimates = %f, expected 2", got)
	}
	if got := testutil.ToFloat64(m.LeadsCreated.WithLabelValues("calculator")); got != 1 {
		t.Errorf("leads = %f, expected 1", got)
	}
	if got := testutil.ToFloat64(m.QuotesSaved.WithLabelValues("create")); got != 1 {
		t.Errorf("quote creates = %f, expected 1", got)
	}
	if got := testutil.ToFloat64(m.QuotesSaved.WithLabelValues("update")); got != 2 {
		t.Errorf("quote updates = %f, expected 2", got)
	}
}

func TestMetrics_KnowledgeAndPromptCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordKnowledgeMutation("restore")
	m.RecordPromptCache("hit")
	m.RecordPromptCache("hit")
	m.RecordPromptCache("miss")
	m.RecordPromptBuild(20 * time.Millisecond)

	if got := testutil.ToFloat64(m.KnowledgeMutations.WithLabelValues("restore")); got != 1 {
		t.Errorf("restore mutations = %f, expected 1", got)
	}
	if got := testutil.ToFloat64(m.PromptCacheTotal.WithLabelValues("hit")); got != 2 {
		t.Errorf("cache hits = %f, expected 2", got)
	}
	if got := testutil.ToFloat64(m.PromptCacheTotal.WithLabelValues("miss")); got != 1 {
		t.Errorf("cache misses = %f, expected 1", got)
	}
}

func TestMetrics_RecordChatStream(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordChatStream(ChatOutcomeCompleted, 12)
	m.RecordChatStream(ChatOutcomeTruncated, 3)
	m.RecordChatStream(ChatOutcomeFailed, 0)

	if got := testutil.ToFloat64(m.ChatStreamsTotal.WithLabelValues(ChatOutcomeCompleted)); got != 1 {
		t.Errorf("completed = %f, expected 1", got)
	}
	if got := testutil.ToFloat64(m.ChatDeltasRelayed); got != 15 {
		t.Errorf("deltas = %f, expected 15", got)
	}
}

func TestMetrics_RecordLLMCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordLLMCall(true, 2*time.Second)
	m.RecordLLMCall(false, 500*time.Millisecond)
	m.RecordCircuitOpen()
	m.RecordCircuitTrip()

	successCount := testutil.ToFloat64(m.LLMCallsTotal.WithLabelValues("success"))
	failureCount := testutil.ToFloat64(m.LLMCallsTotal.WithLabelValues("failure"))
	circuitOpenCount := testutil.ToFloat64(m.LLMCallsTotal.WithLabelValues("circuit_open"))
	tripCount := testutil.ToFloat64(m.CircuitBreakerTrips)

	if successCount != 1 {
		t.Errorf("success count = %f, expected 1", successCount)
	}
	if failureCount != 1 {
		t.Errorf("failure count = %f, expected 1", failureCount)
	}
	if circuitOpenCount != 1 {
		t.Errorf("circuit_open count = %f, expected 1", circuitOpenCount)
	}
	if tripCount != 1 {
		t.Errorf("trip count = %f, expected 1", tripCount)
	}
}

func TestMetrics_SetCircuitBreakerState(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.SetCircuitBreakerState("llm", 0)
	if state := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("llm")); state != 0 {
		t.Errorf("state = %f, expected 0 (closed)", state)
	}

	m.SetCircuitBreakerState("llm", 2)
	if state := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("llm")); state != 2 {
		t.Errorf("state = %f, expected 2 (open)", state)
	}
}

func TestMetrics_RecordDBQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordDBQuery("select", 50*time.Millisecond, nil)
	m.RecordDBQuery("insert", 100*time.Millisecond, errors.New("unique violation"))

	selectErrors := testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("select"))
	insertErrors := testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("insert"))

	if selectErrors != 0 {
		t.Errorf("select errors = %f, expected 0", selectErrors)
	}
	if insertErrors != 1 {
		t.Errorf("insert errors = %f, expected 1", insertErrors)
	}
}

func TestMetrics_SessionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordSessionCreated()
	m.RecordSessionCreated()
	m.RecordSessionsExpired(3)

	if created := testutil.ToFloat64(m.SessionsCreated); created != 2 {
		t.Errorf("created = %f, expected 2", created)
	}
	if expired := testutil.ToFloat64(m.SessionsExpired); expired != 3 {
		t.Errorf("expired = %f, expected 3", expired)
	}
}

func TestMetrics_RateLimiting(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordRateLimitHit("chat")
	m.RecordRateLimitHit("chat")
	m.RecordRateLimitHit("general")

	if hits := testutil.ToFloat64(m.RateLimitHitsTotal.WithLabelValues("chat")); hits != 2 {
		t.Errorf("chat hits = %f, expected 2", hits)
	}
	if hits := testutil.ToFloat64(m.RateLimitHitsTotal.WithLabelValues("general")); hits != 1 {
		t.Errorf("general hits = %f, expected 1", hits)
	}
}

func TestMetrics_Middleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodPatch, "/api/leads/0b9f0c1e-2f4a-4d7e-9a51-3c2d1e0f9a8b/booking", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d, expected %d", rr.Code, http.StatusCreated)
	}

	count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("PATCH", "/api/leads/:id", "201"))
	if count != 1 {
		t.Errorf("request count = %f, expected 1", count)
	}
}

func TestMetrics_Middleware_InFlight(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	inFlightDuringHandler := float64(-1)
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlightDuringHandler = testutil.ToFloat64(m.HTTPRequestsInFlight)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if inFlightDuringHandler != 1 {
		t.Errorf("in-flight during handler = %f, expected 1", inFlightDuringHandler)
	}
	if after := testutil.ToFloat64(m.HTTPRequestsInFlight); after != 0 {
		t.Errorf("in-flight after = %f, expected 0", after)
	}
}

func TestMetrics_Middleware_Flush(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	flushed := false
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("wrapped writer must implement http.Flusher")
		}
		w.Write([]byte("delta"))
		f.Flush()
		flushed = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

	if !flushed || !rr.Flushed {
		t.Error("expected the recorder to be flushed")
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/health", "/health"},
		{"/api/estimate", "/api/estimate"},
		{"/api/leads", "/api/leads"},
		{"/api/leads/abc/booking", "/api/leads/:id"},
		{"/api/admin/quotes", "/api/admin/quotes"},
		{"/api/admin/quotes/123", "/api/admin/quotes/:id"},
		{"/api/admin/quotes/price", "/api/admin/quotes/:id"},
		{"/api/admin/knowledge", "/api/admin/knowledge"},
		{"/api/admin/knowledge/faq", "/api/admin/knowledge/:section"},
		{"/api/admin/knowledge/versions", "/api/admin/knowledge/versions"},
		{"/api/admin/knowledge/preview", "/api/admin/knowledge/preview"},
		{"/api/admin/knowledge/system-prompt", "/api/admin/knowledge/system-prompt"},
		{"/unknown/path", "/unknown/path"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizePath(tt.input); got != tt.expected {
				t.Errorf("normalizePath(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	t.Run("WriteHeader", func(t *testing.T) {
		w := httptest.NewRecorder()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		rw.WriteHeader(http.StatusNotFound)
		if rw.statusCode != http.StatusNotFound {
			t.Errorf("statusCode = %d, expected %d", rw.statusCode, http.StatusNotFound)
		}

		rw.WriteHeader(http.StatusOK)
		if rw.statusCode != http.StatusNotFound {
			t.Errorf("statusCode after second call = %d, expected %d", rw.statusCode, http.StatusNotFound)
		}
	})

	t.Run("Write", func(t *testing.T) {
		w := httptest.NewRecorder()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		rw.Write([]byte("test"))
		if rw.statusCode != http.StatusOK {
			t.Errorf("statusCode = %d, expected %d", rw.statusCode, http.StatusOK)
		}
		if !rw.written {
			t.Error("written should be true after Write")
		}
	})
}

func TestMetrics_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)
	m.RecordEstimate()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, expected %d", rr.Code, http.StatusOK)
	}
}
