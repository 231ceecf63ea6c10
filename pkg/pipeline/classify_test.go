package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/malbeclabs/datachat/pkg/llm"
	"github.com/malbeclabs/datachat/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntentRouter_ShortCircuits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		retriever Retriever
	}{
		{"no retriever", nil},
		{"empty knowledge base", &fakeRetriever{count: 0}},
		{"count error", &fakeRetriever{count: 5, countErr: errors.New("db locked")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fl := &fakeLLM{}
			r := NewIntentRouter(logger.Discard(), fl, tt.retriever)
			intent, usage, err := r.Classify(context.Background(), "what is the refund policy?")
			require.NoError(t, err)
			assert.Equal(t, IntentSQLData, intent)
			assert.Zero(t, usage)
			assert.Equal(t, 0, fl.Calls(llm.TaskClassifyIntent))
		})
	}
}

func TestIntentRouter_Labels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  Intent
	}{
		{"KNOWLEDGE_BASE", IntentKnowledgeBase},
		{"  knowledge_base\n", IntentKnowledgeBase},
		{"The answer is `KNOWLEDGE_BASE`.", IntentKnowledgeBase},
		{"SQL_DATA", IntentSQLData},
		{"sql_data", IntentSQLData},
		{"I'm not sure", IntentSQLData},
		{"", IntentSQLData},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()

			fl := &fakeLLM{ClassifyIntentFunc: func(context.Context, string) (llm.Response, error) {
				return llm.Response{Content: tt.label, TokensUsed: 12, Cost: 0.001}, nil
			}}
			r := NewIntentRouter(logger.Discard(), fl, &fakeRetriever{count: 3})
			intent, usage, err := r.Classify(context.Background(), "q")
			require.NoError(t, err)
			assert.Equal(t, tt.want, intent)
			assert.Equal(t, int64(12), usage.Tokens)
		})
	}
}

func TestIntentRouter_LLMErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("rate limited")
	fl := &fakeLLM{ClassifyIntentFunc: func(context.Context, string) (llm.Response, error) {
		return llm.Response{}, boom
	}}
	r := NewIntentRouter(logger.Discard(), fl, &fakeRetriever{count: 1})
	_, _, err := r.Classify(context.Background(), "q")
	require.ErrorIs(t, err, boom)
}
