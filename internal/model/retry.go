package model

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/harsh7800/adofly/internal/logging"
)

// Backoff computes exponential delays between attempts.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff starts at 500ms and doubles up to 8s.
var DefaultBackoff = Backoff{Initial: 500 * time.Millisecond, Max: 8 * time.Second, Multiplier: 2}

// NextDelay returns the wait before retry number attempt (0-based).
func (b Backoff) NextDelay(attempt int) time.Duration {
	delay := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt))
	if delay > float64(b.Max) {
		return b.Max
	}
	return time.Duration(delay)
}

// Retryable reports whether err is worth another attempt: transport
// failures, rate limits, server errors and empty completions are; caller
// cancellation and other client errors are not.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return false
	}
	var se StatusError
	if errors.As(err, &se) {
		code := se.StatusCode()
		return code == http.StatusTooManyRequests || code >= 500
	}
	return true
}

// Retrying wraps a Model and retries retryable failures with backoff.
type Retrying struct {
	next       Model
	maxRetries int
	backoff    Backoff
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// RetryOption configures a Retrying model.
type RetryOption func(*Retrying)

// WithBackoff overrides DefaultBackoff.
func WithBackoff(b Backoff) RetryOption {
	return func(r *Retrying) { r.backoff = b }
}

// WithRetryLogger sets the logger used to report retries.
func WithRetryLogger(l *slog.Logger) RetryOption {
	return func(r *Retrying) { r.logger = l }
}

// WithRetry wraps m so that each Complete makes up to maxRetries extra
// attempts.
func WithRetry(m Model, maxRetries int, opts ...RetryOption) *Retrying {
	r := &Retrying{
		next:       m,
		maxRetries: maxRetries,
		backoff:    DefaultBackoff,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.Or(r.logger)
	return r
}

// Complete implements Model.
func (r *Retrying) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff.NextDelay(attempt - 1)
			r.logger.Warn("model call failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.Any("error", lastErr))
			if err := r.sleep(ctx, delay); err != nil {
				return "", err
			}
		}
		out, err := r.next.Complete(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !Retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
