// Package observability holds the Prometheus metrics and OpenTelemetry tracing
// used by the governance engine.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts requests by method, route and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_governance_http_requests_total",
		Help: "Total HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	// HTTPLatency records request latency by method and route.
	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_governance_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// ScoreComputations counts scoring runs by outcome.
	ScoreComputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_governance_score_computations_total",
		Help: "Total score computations by outcome",
	}, []string{"outcome"})

	// QualificationScores is the distribution of computed qualification scores.
	QualificationScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crm_governance_qualification_score",
		Help:    "Distribution of computed qualification scores",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	// DecisionRequests counts created requests by purpose and initial status.
	DecisionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_governance_decision_requests_total",
		Help: "Total decision requests created by purpose and status",
	}, []string{"purpose", "status"})

	// DecisionOutcomes counts decide calls by outcome.
	DecisionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_governance_decision_outcomes_total",
		Help: "Total decide calls by outcome",
	}, []string{"outcome"})

	// DecisionLatency records time from request creation to a terminal decision.
	DecisionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_governance_decision_latency_seconds",
		Help:    "Time from request creation to terminal decision",
		Buckets: []float64{60, 300, 900, 3600, 4 * 3600, 8 * 3600, 24 * 3600, 72 * 3600},
	}, []string{"purpose", "status"})

	// BlockedMutations counts writes refused by the lock gate.
	BlockedMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_governance_blocked_mutations_total",
		Help: "Total mutations blocked by a pending decision",
	}, []string{"entity_type"})

	// LeadTransitions counts lead status changes.
	LeadTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_governance_lead_transitions_total",
		Help: "Total lead status transitions",
	}, []string{"from", "to", "source"})

	// PolicyErrors counts fail-closed refusals caused by invalid policies.
	PolicyErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_governance_policy_errors_total",
		Help: "Total operations refused because a policy is invalid",
	}, []string{"policy"})
)

// ObserveDecision records the terminal latency of a decision request.
func ObserveDecision(purpose, status string, createdAt, decidedAt time.Time) {
	DecisionLatency.WithLabelValues(purpose, status).Observe(decidedAt.Sub(createdAt).Seconds())
}
