package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/flowcraft/reactorpipe/core"
)

// RetryConfig configures retry behavior for both the step engine and any
// higher-level retry orchestrator. There is exactly one backoff formula in
// this package (ComputeBackoff); every retry path in the module calls it
// rather than recomputing its own delay.
type RetryConfig struct {
	MaxAttempts   int
	RetryWait     time.Duration // base wait before the formula doubles it per attempt
	MaxBackoff    time.Duration
	JitterEnabled bool
}

// DefaultRetryConfig provides sensible defaults
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		RetryWait:     100 * time.Millisecond,
		MaxBackoff:    5 * time.Second,
		JitterEnabled: true,
	}
}

// ComputeBackoff returns the delay to wait after a failed attempt, before
// trying attempt+1. It implements wait = min(maxBackoff, retryWait * 2^(attempt-1)),
// then multiplies by a uniform [0.5, 1.0) jitter factor when enabled. attempt
// is 1-indexed: the delay computed after the first failed attempt passes 1.
func ComputeBackoff(attempt int, config *RetryConfig) time.Duration {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if attempt < 1 {
		attempt = 1
	}

	backoff := time.Duration(float64(config.RetryWait) * math.Pow(2, float64(attempt-1)))
	if backoff > config.MaxBackoff {
		backoff = config.MaxBackoff
	}

	if config.JitterEnabled {
		jitter := 0.5 + rand.Float64()*0.5
		backoff = time.Duration(float64(backoff) * jitter)
	}

	return backoff
}

// Retry executes fn up to config.MaxAttempts times, sleeping between attempts
// per ComputeBackoff. It returns nil on the first success, ctx.Err() if the
// context is cancelled while waiting, or a wrapped core.ErrMaxRetriesExceeded
// once attempts are exhausted.
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == config.MaxAttempts {
			break
		}

		delay := ComputeBackoff(attempt, config)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded for %v: %w", config.MaxAttempts, lastErr, core.ErrMaxRetriesExceeded)
}

// RetryWithClassifier behaves like Retry but stops retrying as soon as
// classifier reports the most recent failure as non-retryable, returning
// that failure immediately instead of continuing to exhaustion.
func RetryWithClassifier(ctx context.Context, config *RetryConfig, classifier func(error) bool, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if !classifier(lastErr) {
			return lastErr
		}

		if attempt == config.MaxAttempts {
			break
		}

		delay := ComputeBackoff(attempt, config)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded for %v: %w", config.MaxAttempts, lastErr, core.ErrMaxRetriesExceeded)
}

// RetryExecutor is a reusable, loggable wrapper around Retry/RetryWithClassifier
// that retries a function according to its RetryConfig. The step engine does
// not use it; it runs its own attempt loop over ComputeBackoff and IsRetryable.
type RetryExecutor struct {
	config *RetryConfig
	logger core.Logger
}

// NewRetryExecutor creates a RetryExecutor. A nil config falls back to
// DefaultRetryConfig.
func NewRetryExecutor(config *RetryConfig) *RetryExecutor {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryExecutor{
		config: config,
		logger: &core.NoOpLogger{},
	}
}

// SetLogger installs a logger used to report attempt/exhaustion events.
func (r *RetryExecutor) SetLogger(logger core.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Execute retries fn per the executor's RetryConfig.
func (r *RetryExecutor) Execute(ctx context.Context, fn func() error) error {
	err := Retry(ctx, r.config, fn)
	if err != nil {
		r.logger.Warn("retry exhausted", map[string]interface{}{
			"max_attempts": r.config.MaxAttempts,
			"error":        err.Error(),
		})
	}
	return err
}

// ExecuteWithClassifier retries fn, stopping early when classifier marks the
// most recent failure non-retryable.
func (r *RetryExecutor) ExecuteWithClassifier(ctx context.Context, classifier func(error) bool, fn func() error) error {
	err := RetryWithClassifier(ctx, r.config, classifier, fn)
	if err != nil {
		r.logger.Warn("retry exhausted or classified non-retryable", map[string]interface{}{
			"max_attempts": r.config.MaxAttempts,
			"error":        err.Error(),
		})
	}
	return err
}
