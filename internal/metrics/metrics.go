// Package metrics declares the Prometheus collectors for the generation
// pipeline and HTTP surface. Collectors register with the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CompletionsTotal counts completion calls by outcome (ok, error, empty).
	CompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_completions_total",
		Help: "Completion service calls by outcome",
	}, []string{"outcome"})

	// CompletionDuration tracks completion latency.
	CompletionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recommendation_completion_duration_seconds",
		Help:    "Completion service latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~32s
	})

	// CacheLookups counts multi-option cache lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_cache_lookups_total",
		Help: "Multi-option cache lookups by result",
	}, []string{"result"})

	// InflightJoins counts requests that joined an identical in-flight generation.
	InflightJoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recommendation_inflight_joins_total",
		Help: "Multi-option requests served by joining an in-flight generation",
	})

	// StrategySelections counts strategy assignments.
	StrategySelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_strategy_selections_total",
		Help: "Strategy assignments by strategy",
	}, []string{"strategy"})

	// QualityScore tracks confidence scores by strategy.
	QualityScore = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recommendation_quality_score",
		Help:    "Confidence score of generated candidates",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	}, []string{"strategy"})

	// GateAttempts tracks how many attempts the quality gate needed.
	GateAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recommendation_gate_attempts",
		Help:    "Attempts consumed by the quality gate per request",
		Buckets: []float64{1, 2, 3, 4, 5},
	})

	// GateOutcomes counts gate terminations by outcome (accepted, exhausted, failed).
	GateOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_gate_outcomes_total",
		Help: "Quality gate terminations by outcome",
	}, []string{"outcome"})

	// IsolationViolations counts fence self-check failures.
	IsolationViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_isolation_violations_total",
		Help: "Context fence self-check failures by analysis mode",
	}, []string{"mode"})

	// VersionsAppended counts ledger appends by change type.
	VersionsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_versions_appended_total",
		Help: "Versions appended to the ledger by change type",
	}, []string{"change_type"})

	// HTTPRequests counts HTTP requests by route and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_http_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"route", "code"})

	// HTTPDuration tracks HTTP handler latency by route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recommendation_http_request_duration_seconds",
		Help:    "HTTP handler latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// RateLimited counts requests rejected by the HTTP rate limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recommendation_rate_limited_total",
		Help: "HTTP requests rejected by the per-client rate limiter",
	})
)
