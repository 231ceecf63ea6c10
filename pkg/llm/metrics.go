package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_llm_requests_total",
			Help: "Total number of LLM completion requests",
		},
		[]string{"task", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datachat_llm_request_duration_seconds",
			Help:    "Duration of LLM completion requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"task"},
	)

	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_llm_tokens_total",
			Help: "Total number of LLM tokens consumed",
		},
		[]string{"task", "direction"},
	)
)
