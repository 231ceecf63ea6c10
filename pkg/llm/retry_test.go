package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/malbeclabs/datachat/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFastRetrying(next Completer, tries uint) *Retrying {
	r := NewRetrying(logger.Discard(), next, tries)
	r.interval = time.Millisecond
	return r
}

func TestRetrying_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	r := newFastRetrying(&fakeCompleter{
		CompleteFunc: func(context.Context, string, string, CompleteOptions) (Completion, error) {
			calls++
			if calls < 3 {
				return Completion{}, &StatusError{StatusCode: 529, Body: "overloaded"}
			}
			return Completion{Text: "ok"}, nil
		},
	}, 3)

	c, err := r.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "ok", c.Text)
	assert.Equal(t, 3, calls)
}

func TestRetrying_StopsOnPermanentErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"bad request", &StatusError{StatusCode: 400, Body: "bad"}},
		{"unauthorized", &StatusError{StatusCode: 401, Body: "nope"}},
		{"empty response", ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			r := newFastRetrying(&fakeCompleter{
				CompleteFunc: func(context.Context, string, string, CompleteOptions) (Completion, error) {
					calls++
					return Completion{}, tt.err
				},
			}, 5)

			_, err := r.Complete(context.Background(), "sys", "user")
			require.Error(t, err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestRetrying_GivesUpAfterMaxTries(t *testing.T) {
	t.Parallel()

	calls := 0
	boom := errors.New("connection reset")
	r := newFastRetrying(&fakeCompleter{
		CompleteFunc: func(context.Context, string, string, CompleteOptions) (Completion, error) {
			calls++
			return Completion{}, boom
		},
	}, 2)

	_, err := r.Complete(context.Background(), "sys", "user")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestStatusError_Retryable(t *testing.T) {
	t.Parallel()

	assert.True(t, (&StatusError{StatusCode: 429}).Retryable())
	assert.True(t, (&StatusError{StatusCode: 503}).Retryable())
	assert.False(t, (&StatusError{StatusCode: 404}).Retryable())
}
