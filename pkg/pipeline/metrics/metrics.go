package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_queries_total",
			Help: "Total number of processed questions by outcome",
		},
		[]string{"status"},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datachat_query_duration_seconds",
			Help:    "End-to-end duration of processed questions in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	QueryTokensTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datachat_query_tokens_total",
			Help: "Total number of LLM tokens attributed to processed questions",
		},
	)

	IntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_intents_total",
			Help: "Total number of classified questions by intent",
		},
		[]string{"intent"},
	)

	RefinementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_sql_refinements_total",
			Help: "Total number of SQL refinements by trigger",
		},
		[]string{"reason"},
	)

	SchemaContextBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_schema_context_builds_total",
			Help: "Total number of schema context requests by outcome",
		},
		[]string{"result"},
	)
)
