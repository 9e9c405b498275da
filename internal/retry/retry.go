// Package retry executes operations with exponential backoff, delegating the
// retry-or-fail decision to the apperr classifier so there is a single source
// of truth for what counts as transient.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"opencode-nexus/internal/apperr"
)

// ErrExhausted marks a failure that persisted through the whole retry budget.
var ErrExhausted = errors.New("retries exhausted")

// Config defines retry behavior for one call. Immutable per call.
type Config struct {
	MaxRetries        int           // total attempt ceiling; 1 means a single attempt
	InitialDelay      time.Duration // delay before the first retry
	MaxDelay          time.Duration // cap on any single delay
	BackoffMultiplier float64       // growth factor between delays
	Timeout           time.Duration // ceiling on the whole call, all attempts included
}

// DefaultConfig provides sensible defaults for API calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
		Timeout:           30 * time.Second,
	}
}

// AggressiveConfig retries more often with shorter waits.
func AggressiveConfig() Config {
	return Config{
		MaxRetries:        5,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 1.5,
		Timeout:           30 * time.Second,
	}
}

// ConservativeConfig retries less often with longer waits.
func ConservativeConfig() Config {
	return Config{
		MaxRetries:        2,
		InitialDelay:      2 * time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 3.0,
		Timeout:           60 * time.Second,
	}
}

// delay returns the backoff before retrying after the given 1-indexed
// attempt, never exceeding MaxDelay.
func (c Config) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.BackoffMultiplier, float64(attempt-1))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	return time.Duration(d)
}

// Do runs op until it succeeds, fails with a non-retryable error, exhausts
// the attempt budget, or the overall timeout elapses. label is an advisory
// context string embedded in terminal errors so callers can find the cause.
//
// A timed-out attempt keeps running in the background; its result is
// discarded, never applied.
func Do[T any](ctx context.Context, cfg Config, label string, op func(context.Context) (T, error)) (T, error) {
	return DoWithDiscard(ctx, cfg, label, op, nil)
}

// DoWithDiscard is Do with a hook for orphaned results. When an attempt is
// abandoned by the overall timeout but later completes successfully, discard
// receives the result so the caller can release whatever it holds (close a
// stream, drain a channel). The hook runs on the orphan's goroutine.
func DoWithDiscard[T any](ctx context.Context, cfg Config, label string, op func(context.Context) (T, error), discard func(T)) (T, error) {
	var zero T
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		result, err := runAttempt(ctx, op, discard)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			// Overall timeout (or caller cancellation) trumps the remaining budget.
			return zero, withLabel(label, deadlineErr(ctx, lastErr))
		}
		if !apperr.IsRetryable(err) {
			return zero, withLabel(label, err)
		}
		if attempt == cfg.MaxRetries {
			break
		}

		delay := cfg.delay(attempt)
		slog.Debug("retrying after error",
			"label", label,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return zero, withLabel(label, deadlineErr(ctx, lastErr))
		case <-time.After(delay):
		}
	}

	return zero, withLabel(label, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, cfg.MaxRetries, lastErr))
}

// runAttempt races one invocation of op against ctx. If ctx wins, the
// invocation is orphaned: it runs to completion in its goroutine and its
// outcome is ignored, except that a successful result is handed to discard
// for disposal.
func runAttempt[T any](ctx context.Context, op func(context.Context) (T, error), discard func(T)) (T, error) {
	type outcome struct {
		val T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := op(ctx)
		ch <- outcome{val: v, err: err}
	}()

	select {
	case out := <-ch:
		return out.val, out.err
	case <-ctx.Done():
		if discard != nil {
			go func() {
				if out := <-ch; out.err == nil {
					discard(out.val)
				}
			}()
		}
		var zero T
		return zero, ctx.Err()
	}
}

// deadlineErr folds the context error and the last attempt's error into one
// terminal error without repeating the same cause twice.
func deadlineErr(ctx context.Context, lastErr error) error {
	if lastErr == nil || errors.Is(lastErr, ctx.Err()) {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %w", ctx.Err(), lastErr)
}

func withLabel(label string, err error) error {
	if label == "" {
		return err
	}
	return fmt.Errorf("%s: %w", label, err)
}
