// Package metrics provides Prometheus metrics collection for the application.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome/status label values for metrics.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Chat stream outcomes.
const (
	ChatOutcomeCompleted = "completed"
	ChatOutcomeTruncated = "truncated"
	ChatOutcomeFailed    = "failed"
	ChatOutcomeCanceled  = "canceled"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Authentication metrics
	AuthAttemptsTotal *prometheus.CounterVec
	SessionsCreated   prometheus.Counter
	SessionsExpired   prometheus.Counter

	// Funnel metrics
	EstimatesTotal prometheus.Counter
	LeadsCreated   *prometheus.CounterVec
	QuotesSaved    *prometheus.CounterVec

	// Knowledge metrics
	KnowledgeMutations *prometheus.CounterVec
	PromptCacheTotal   *prometheus.CounterVec
	PromptBuildSeconds prometheus.Histogram

	// Chat and LLM metrics
	ChatStreamsTotal    *prometheus.CounterVec
	ChatDeltasRelayed   prometheus.Counter
	LLMCallsTotal       *prometheus.CounterVec
	LLMCallDuration     prometheus.Histogram
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHitsTotal *prometheus.CounterVec

	// Registry used for this metrics instance (nil means default registry)
	registry prometheus.Gatherer
}

// NewMetrics creates a new Metrics instance with all collectors registered.
func NewMetrics() *Metrics {
	m := newMetricsWithRegistry(prometheus.DefaultRegisterer)
	m.registry = prometheus.DefaultGatherer
	return m
}

// NewMetricsWithRegistry creates metrics using a custom registry (for testing).
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	m := newMetricsWithRegistry(reg)
	m.registry = reg
	return m
}

func newMetricsWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status code",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "funnel_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "funnel_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		AuthAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_auth_attempts_total",
				Help: "Total number of admin authentication attempts by outcome",
			},
			[]string{"outcome"}, // "success", "failure", "rate_limited"
		),
		SessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "funnel_sessions_created_total",
				Help: "Total number of admin sessions created",
			},
		),
		SessionsExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "funnel_sessions_expired_total",
				Help: "Total number of expired admin sessions removed",
			},
		),

		EstimatesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "funnel_estimates_total",
				Help: "Total number of calculator estimates computed",
			},
		),
		LeadsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_leads_created_total",
				Help: "Total number of leads captured by source",
			},
			[]string{"source"},
		),
		QuotesSaved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_quotes_saved_total",
				Help: "Total number of admin quotes saved by operation",
			},
			[]string{"operation"}, // "create", "update"
		),

		KnowledgeMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_knowledge_mutations_total",
				Help: "Total number of knowledge base mutations by operation",
			},
			[]string{"operation"},
		),
		PromptCacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_prompt_cache_total",
				Help: "Compiled system prompt cache lookups by result",
			},
			[]string{"result"}, // "hit", "miss", "error"
		),
		PromptBuildSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "funnel_prompt_build_duration_seconds",
				Help:    "Time taken to compile the system prompt",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),

		ChatStreamsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_chat_streams_total",
				Help: "Total number of chat streams by outcome",
			},
			[]string{"outcome"},
		),
		ChatDeltasRelayed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "funnel_chat_deltas_relayed_total",
				Help: "Total number of text deltas relayed to chat clients",
			},
		),
		LLMCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_llm_calls_total",
				Help: "Total number of LLM provider calls by status",
			},
			[]string{"status"}, // "success", "failure", "circuit_open"
		),
		LLMCallDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "funnel_llm_call_duration_seconds",
				Help:    "Duration of LLM provider calls until the response is complete",
				Buckets: []float64{.5, 1, 2, 5, 10, 15, 30, 60},
			},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "funnel_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "funnel_circuit_breaker_trips_total",
				Help: "Total number of times the circuit breaker has tripped",
			},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "funnel_db_query_duration_seconds",
				Help:    "Duration of database queries",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"}, // "select", "insert", "update", "delete"
		),
		DBQueryErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_db_query_errors_total",
				Help: "Total number of database query errors",
			},
			[]string{"operation"},
		),

		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_rate_limit_hits_total",
				Help: "Total number of rate limit hits by limiter",
			},
			[]string{"limiter"}, // "general", "login", "chat"
		),
	}
}

// Handler returns the Prometheus HTTP handler for scraping metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware returns an HTTP middleware that records request metrics.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := normalizePath(r.URL.Path)

		m.HTTPRequestsTotal.WithLabelValues(
			r.Method,
			path,
			strconv.Itoa(wrapped.statusCode),
		).Inc()

		m.HTTPRequestDuration.WithLabelValues(
			r.Method,
			path,
		).Observe(time.Since(start).Seconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// Flush forwards to the underlying writer so streamed chat responses reach the client.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// dynamicPrefixes collapse paths with identifiers into one label value.
var dynamicPrefixes = []struct {
	prefix string
	label  string
}{
	{"/api/leads/", "/api/leads/:id"},
	{"/api/admin/quotes/", "/api/admin/quotes/:id"},
	{"/api/admin/knowledge/versions", "/api/admin/knowledge/versions"},
	{"/api/admin/knowledge/preview", "/api/admin/knowledge/preview"},
	{"/api/admin/knowledge/import", "/api/admin/knowledge/import"},
	{"/api/admin/knowledge/system-prompt", "/api/admin/knowledge/system-prompt"},
	{"/api/admin/knowledge/", "/api/admin/knowledge/:section"},
}

// normalizePath normalizes URL paths to prevent high cardinality labels.
func normalizePath(path string) string {
	for _, p := range dynamicPrefixes {
		if strings.HasPrefix(path, p.prefix) && len(path) > len(p.prefix) {
			return p.label
		}
		if path == p.prefix {
			return path
		}
	}
	return path
}

// RecordAuthAttempt records an authentication attempt.
func (m *Metrics) RecordAuthAttempt(success bool) {
	outcome := outcomeFailure
	if success {
		outcome = outcomeSuccess
	}
	m.AuthAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordAuthRateLimited records a rate-limited auth attempt.
func (m *Metrics) RecordAuthRateLimited() {
	m.AuthAttemptsTotal.WithLabelValues("rate_limited").Inc()
}

// RecordSessionCreated records a new session creation.
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionsExpired records removed expired sessions.
func (m *Metrics) RecordSessionsExpired(n int64) {
	m.SessionsExpired.Add(float64(n))
}

// RecordEstimate records a computed calculator estimate.
func (m *Metrics) RecordEstimate() {
	m.EstimatesTotal.Inc()
}

// RecordLeadCreated records a captured lead.
func (m *Metrics) RecordLeadCreated(source string) {
	m.LeadsCreated.WithLabelValues(source).Inc()
}

// RecordQuoteSaved records a saved quote. created distinguishes the first save.
func (m *Metrics) RecordQuoteSaved(created bool) {
	op := "update"
	if created {
		op = "create"
	}
	m.QuotesSaved.WithLabelValues(op).Inc()
}

// RecordKnowledgeMutation records a knowledge base write.
func (m *Metrics) RecordKnowledgeMutation(operation string) {
	m.KnowledgeMutations.WithLabelValues(operation).Inc()
}

// RecordPromptCache records a compiled prompt cache lookup: "hit", "miss" or "error".
func (m *Metrics) RecordPromptCache(result string) {
	m.PromptCacheTotal.WithLabelValues(result).Inc()
}

// RecordPromptBuild records the duration of a prompt compilation.
func (m *Metrics) RecordPromptBuild(duration time.Duration) {
	m.PromptBuildSeconds.Observe(duration.Seconds())
}

// RecordChatStream records the outcome of a chat stream and the deltas it relayed.
func (m *Metrics) RecordChatStream(outcome string, deltas int) {
	m.ChatStreamsTotal.WithLabelValues(outcome).Inc()
	m.ChatDeltasRelayed.Add(float64(deltas))
}

// RecordLLMCall records an LLM provider call.
func (m *Metrics) RecordLLMCall(success bool, duration time.Duration) {
	status := outcomeFailure
	if success {
		status = outcomeSuccess
	}
	m.LLMCallsTotal.WithLabelValues(status).Inc()
	m.LLMCallDuration.Observe(duration.Seconds())
}

// RecordCircuitOpen records a call rejected by an open circuit.
func (m *Metrics) RecordCircuitOpen() {
	m.LLMCallsTotal.WithLabelValues("circuit_open").Inc()
}

// RecordCircuitTrip records a circuit breaker opening.
func (m *Metrics) RecordCircuitTrip() {
	m.CircuitBreakerTrips.Inc()
}

// SetCircuitBreakerState sets the circuit breaker state for a service.
// State: 0=closed, 1=half-open, 2=open
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordDBQuery records a database query.
func (m *Metrics) RecordDBQuery(operation string, duration time.Duration, err error) {
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(limiter string) {
	m.RateLimitHitsTotal.WithLabelValues(limiter).Inc()
}
