package pipeline

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/malbeclabs/datachat/pkg/pipeline/metrics"
)

const durationWindow = 1024

// MetricsSummary is the formatted view of QueryMetrics.
type MetricsSummary struct {
	TotalQueries      int64  `json:"total_queries"`
	SuccessRate       string `json:"success_rate"`
	AvgQueryTime      string `json:"avg_query_time"`
	P95QueryTime      string `json:"p95_query_time"`
	TotalTokens       int64  `json:"total_tokens"`
	TotalCost         string `json:"total_cost"`
	SuccessfulQueries int64  `json:"successful_queries"`
	FailedQueries     int64  `json:"failed_queries"`
}

// QueryMetrics accumulates per-question outcomes for the lifetime of the
// process. Memory use is bounded: averages come from running sums and the
// percentile from a ring of recent durations.
type QueryMetrics struct {
	mu sync.Mutex

	total      int64
	successful int64
	failed     int64
	tokens     int64
	cost       float64
	timeSum    time.Duration

	recent [durationWindow]time.Duration
	next   int
	filled int
}

// NewQueryMetrics creates an empty collector.
func NewQueryMetrics() *QueryMetrics {
	return &QueryMetrics{}
}

// Record adds the outcome of one answered question.
func (m *QueryMetrics) Record(success bool, duration time.Duration, tokens int64, cost float64) {
	m.mu.Lock()
	m.total++
	if success {
		m.successful++
	} else {
		m.failed++
	}
	m.tokens += tokens
	m.cost += cost
	m.timeSum += duration
	m.recent[m.next] = duration
	m.next = (m.next + 1) % durationWindow
	if m.filled < durationWindow {
		m.filled++
	}
	m.mu.Unlock()

	status := "success"
	if !success {
		status = "failure"
	}
	metrics.QueriesTotal.WithLabelValues(status).Inc()
	metrics.QueryDuration.Observe(duration.Seconds())
	metrics.QueryTokensTotal.Add(float64(tokens))
}

// Summary returns the formatted totals.
func (m *QueryMetrics) Summary() MetricsSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.total == 0 {
		return MetricsSummary{
			SuccessRate:  "0.0%",
			AvgQueryTime: "0.00s",
			P95QueryTime: "0.00s",
			TotalCost:    "$0.0000",
		}
	}

	recent := make([]time.Duration, m.filled)
	copy(recent, m.recent[:m.filled])
	sort.Slice(recent, func(i, j int) bool { return recent[i] < recent[j] })
	p95 := recent[(len(recent)*95+99)/100-1]

	return MetricsSummary{
		TotalQueries:      m.total,
		SuccessRate:       fmt.Sprintf("%.1f%%", float64(m.successful)/float64(m.total)*100),
		AvgQueryTime:      fmt.Sprintf("%.2fs", (m.timeSum / time.Duration(m.total)).Seconds()),
		P95QueryTime:      fmt.Sprintf("%.2fs", p95.Seconds()),
		TotalTokens:       m.tokens,
		TotalCost:         fmt.Sprintf("$%.4f", m.cost),
		SuccessfulQueries: m.successful,
		FailedQueries:     m.failed,
	}
}
