package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/malbeclabs/datachat/pkg/pipeline/metrics"
)

// IntentRouter decides whether a question goes to the database or to the
// knowledge base.
type IntentRouter struct {
	log       *slog.Logger
	llm       LLM
	retriever Retriever
}

// NewIntentRouter builds a router. retriever may be nil when no knowledge
// base is configured.
func NewIntentRouter(log *slog.Logger, llm LLM, retriever Retriever) *IntentRouter {
	return &IntentRouter{log: log, llm: llm, retriever: retriever}
}

// Classify decides whether question is answered from data or documents.
func (r *IntentRouter) Classify(ctx context.Context, question string) (Intent, Usage, error) {
	var usage Usage
	if r.retriever == nil {
		return r.observe(IntentSQLData), usage, nil
	}
	n, err := r.retriever.Count(ctx)
	if err != nil {
		r.log.Warn("pipeline: knowledge base count failed, assuming empty", "error", err)
		n = 0
	}
	if n == 0 {
		return r.observe(IntentSQLData), usage, nil
	}

	resp, err := r.llm.ClassifyIntent(ctx, question)
	if err != nil {
		return "", usage, fmt.Errorf("failed to classify intent: %w", err)
	}
	usage.Add(resp)

	label := strings.ToUpper(strings.TrimSpace(resp.Content))
	switch {
	case strings.Contains(label, string(IntentKnowledgeBase)):
		return r.observe(IntentKnowledgeBase), usage, nil
	case strings.Contains(label, string(IntentSQLData)):
		return r.observe(IntentSQLData), usage, nil
	default:
		r.log.Debug("pipeline: ambiguous intent, defaulting to SQL_DATA", "label", resp.Content)
		return r.observe(IntentSQLData), usage, nil
	}
}

func (r *IntentRouter) observe(intent Intent) Intent {
	metrics.IntentsTotal.WithLabelValues(string(intent)).Inc()
	return intent
}
