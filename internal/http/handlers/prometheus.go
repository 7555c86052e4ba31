package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	trackRequestsTotal *prometheus.CounterVec
	eventsTotal        *prometheus.CounterVec
	spamChecksTotal    *prometheus.CounterVec
	rateLimitedTotal   *prometheus.CounterVec
	funnelLeadsTotal   *prometheus.CounterVec
	intentScores       *prometheus.HistogramVec

	// BlockedRequests counts uniform denials issued by the block guard.
	BlockedRequests prometheus.Counter
)

func InitPrometheusMetrics() {
	trackRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leadpulse",
			Name:      "track_requests_total",
			Help:      "Total tracking API calls by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leadpulse",
			Name:      "events_total",
			Help:      "Total recorded interaction events by type.",
		},
		[]string{"type"},
	)
	spamChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leadpulse",
			Name:      "spam_checks_total",
			Help:      "Total spam classifications by verdict.",
		},
		[]string{"verdict"},
	)
	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leadpulse",
			Name:      "rate_limited_total",
			Help:      "Total requests denied by the rate limiter, by action.",
		},
		[]string{"action"},
	)
	funnelLeadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leadpulse",
			Name:      "funnel_leads_total",
			Help:      "Total funnel leads by source site and status transition.",
		},
		[]string{"site", "status"},
	)
	intentScores = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "leadpulse",
			Name:      "intent_score",
			Help:      "Distribution of recomputed intent scores by level.",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"level"},
	)
	BlockedRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "leadpulse",
			Name:      "blocked_requests_total",
			Help:      "Total requests denied because the IP is blocked.",
		},
	)

	prometheus.MustRegister(
		trackRequestsTotal,
		eventsTotal,
		spamChecksTotal,
		rateLimitedTotal,
		funnelLeadsTotal,
		intentScores,
		BlockedRequests,
	)
}
