package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// StatusError is returned by HTTP backends for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if sent again.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// Retrying retries transient backend failures with exponential backoff.
type Retrying struct {
	log      *slog.Logger
	next     Completer
	maxTries uint
	maxWait  time.Duration
	interval time.Duration
}

func NewRetrying(log *slog.Logger, next Completer, maxTries uint) *Retrying {
	if maxTries == 0 {
		maxTries = 3
	}
	return &Retrying{log: log, next: next, maxTries: maxTries, maxWait: 30 * time.Second, interval: 500 * time.Millisecond}
}

func (r *Retrying) Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...CompleteOption) (Completion, error) {
	attempt := 0
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.interval
	return backoff.Retry(ctx, func() (Completion, error) {
		attempt++
		c, err := r.next.Complete(ctx, systemPrompt, userPrompt, opts...)
		if err == nil {
			return c, nil
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return Completion{}, backoff.Permanent(err)
		}
		if errors.Is(err, ErrEmptyResponse) {
			return Completion{}, backoff.Permanent(err)
		}
		r.log.Warn("llm: completion attempt failed", "attempt", attempt, "error", err)
		return Completion{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.maxTries),
		backoff.WithMaxElapsedTime(r.maxWait),
	)
}
