package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultError = "error"
	resultStore = "store"
	resultSkip  = "skip"
)

var (
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_cache_operations_total",
			Help: "Total number of response cache operations by result",
		},
		[]string{"prefix", "result"},
	)
)
