// Package ai holds what the speech and language providers share: error
// classification and retry with backoff.
package ai

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

var (
	// ErrRecoverable marks a temporary provider failure (network drop, rate
	// limit, 5xx). Retrying may succeed.
	ErrRecoverable = errors.New("recoverable provider error")

	// ErrFatal marks a permanent provider failure (bad API key, unknown voice or
	// model, malformed request). Retrying will not help.
	ErrFatal = errors.New("fatal provider error")
)

// RetryConfig controls Retry.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterPercent float64 // 0.0-1.0
}

// DefaultRetryConfig is used by the websocket providers when dialing.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:    3,
	InitialDelay:  500 * time.Millisecond,
	MaxDelay:      5 * time.Second,
	BackoffFactor: 2.0,
	JitterPercent: 0.1,
}

// IsRecoverable reports whether err is worth retrying.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// IsFatal reports whether err must not be retried.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// ProviderError wraps a provider failure with its retry classification.
type ProviderError struct {
	Underlying error
	Retryable  bool
	Message    string
}

func (e *ProviderError) Error() string {
	switch {
	case e.Message != "" && e.Underlying != nil:
		return e.Message + ": " + e.Underlying.Error()
	case e.Message != "":
		return e.Message
	case e.Underlying != nil:
		return e.Underlying.Error()
	}
	return "provider error"
}

// Is makes errors.Is match both the classification sentinel and the
// underlying error.
func (e *ProviderError) Is(target error) bool {
	if e.Retryable {
		return target == ErrRecoverable
	}
	return target == ErrFatal
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// NewRecoverableError classifies underlying as retryable.
func NewRecoverableError(underlying error, message string) error {
	return &ProviderError{Underlying: underlying, Retryable: true, Message: message}
}

// NewFatalError classifies underlying as permanent.
func NewFatalError(underlying error, message string) error {
	return &ProviderError{Underlying: underlying, Retryable: false, Message: message}
}

// Retry calls fn until it succeeds, returns a non-recoverable error, the
// retries are used up, or ctx is done. The last error is returned.
func Retry(ctx context.Context, cfg RetryConfig, fn func(attempt int) error) error {
	var err error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(cfg.delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if err = fn(attempt); err == nil || !IsRecoverable(err) {
			return err
		}
	}
	return err
}

func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.JitterPercent > 0 {
		d += d * c.JitterPercent * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}
