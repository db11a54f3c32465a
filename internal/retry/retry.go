package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Class tells the engine what to do with a failed attempt.
type Class int

const (
	// Terminal failures are propagated immediately, no further attempts.
	Terminal Class = iota
	// Retryable failures are presumed transient: timeouts, connection
	// resets, storage throttling.
	Retryable
)

// Classifier maps an attempt error to a Class. The right classification
// is environment-specific (which storage error codes are transient), so
// it is injected rather than hard-coded here.
type Classifier func(err error) Class

// Policy bounds the attempt budget and shapes the backoff curve. The
// wait before attempt k+1 is BaseDelay * Multiplier^(k-1), capped at
// MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   time.Second,
	Multiplier:  2.0,
	MaxDelay:    10 * time.Second,
}

// Delay returns the backoff before attempt+1, where attempt is 1-based.
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// ExhaustedError reports that every attempt of the budget failed with a
// retryable error. It carries the last cause.
type ExhaustedError struct {
	Attempts int
	Cause    error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *ExhaustedError) Unwrap() error { return e.Cause }

// Exhausted reports whether err is (or wraps) an ExhaustedError.
func Exhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

// Do runs op up to p.MaxAttempts times. op receives the 1-based attempt
// number. A Terminal classification propagates the error immediately;
// once the budget is spent the last cause comes back wrapped in an
// ExhaustedError. Backoff waits respect ctx.
func Do[T any](ctx context.Context, p Policy, classify Classifier, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := op(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if classify != nil && classify(err) == Terminal {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, p.Delay(attempt)); err != nil {
			return zero, err
		}
	}

	return zero, &ExhaustedError{Attempts: p.MaxAttempts, Cause: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
