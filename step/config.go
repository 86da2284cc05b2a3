package step

import (
	"fmt"
	"time"

	"github.com/flowcraft/reactorpipe/core"
)

// Config is the immutable per-step policy (§3 StepConfig): retry limits,
// backpressure sizing, batching, ordering and thread-safety declarations.
// A Config is built once at composition time by merging global defaults
// with per-step overrides, and is never mutated afterward.
type Config struct {
	RetryLimit       int
	RetryWait        time.Duration
	MaxBackoff       time.Duration
	Jitter           bool
	RecoverOnFailure bool

	BPCapacity int
	BPStrategy BackpressureStrategy

	BatchSize    int
	BatchTimeout time.Duration

	Ordering     Ordering
	ThreadSafety ThreadSafety
}

// DefaultConfig returns the pipeline-wide defaults from §6's configuration
// surface: retry-limit 3, retry-wait 2000ms, max-backoff 30000ms, jitter
// false, recover-on-failure false, backpressure capacity 1024, BUFFER.
func DefaultConfig() Config {
	return Config{
		RetryLimit:       3,
		RetryWait:        2000 * time.Millisecond,
		MaxBackoff:       30000 * time.Millisecond,
		Jitter:           false,
		RecoverOnFailure: false,
		BPCapacity:       1024,
		BPStrategy:       Buffer,
		BatchSize:        100,
		BatchTimeout:     DefaultBatchTimeout,
		Ordering:         Strict,
		ThreadSafety:     Unsafe,
	}
}

// Override holds the subset of fields a per-step or per-aspect declaration
// wants to change relative to the pipeline defaults. Nil fields are left at
// the base value. Merge records nothing about provenance beyond what the
// caller already tracks; composer.Builder layers calls to Merge to realize
// the global -> per-step -> aspect-declared precedence from §4.7/§9.
type Override struct {
	RetryLimit       *int
	RetryWait        *time.Duration
	MaxBackoff       *time.Duration
	Jitter           *bool
	RecoverOnFailure *bool
	BPCapacity       *int
	BPStrategy       *BackpressureStrategy
	BatchSize        *int
	BatchTimeout     *time.Duration
	Ordering         *Ordering
	ThreadSafety     *ThreadSafety
}

// Merge applies override on top of base, returning a new Config. base is
// never mutated.
func Merge(base Config, override Override) Config {
	merged := base
	if override.RetryLimit != nil {
		merged.RetryLimit = *override.RetryLimit
	}
	if override.RetryWait != nil {
		merged.RetryWait = *override.RetryWait
	}
	if override.MaxBackoff != nil {
		merged.MaxBackoff = *override.MaxBackoff
	}
	if override.Jitter != nil {
		merged.Jitter = *override.Jitter
	}
	if override.RecoverOnFailure != nil {
		merged.RecoverOnFailure = *override.RecoverOnFailure
	}
	if override.BPCapacity != nil {
		merged.BPCapacity = *override.BPCapacity
	}
	if override.BPStrategy != nil {
		merged.BPStrategy = *override.BPStrategy
	}
	if override.BatchSize != nil {
		merged.BatchSize = *override.BatchSize
	}
	if override.BatchTimeout != nil {
		merged.BatchTimeout = *override.BatchTimeout
	}
	if override.Ordering != nil {
		merged.Ordering = *override.Ordering
	}
	if override.ThreadSafety != nil {
		merged.ThreadSafety = *override.ThreadSafety
	}
	return merged
}

// Validate checks the invariants from §3: retryLimit>=0, retryWait>=0,
// maxBackoff>=retryWait, bpCapacity>0, batchSize>0, batchTimeout>0.
func (c Config) Validate() error {
	if c.RetryLimit < 0 {
		return fmt.Errorf("retry limit must be >= 0, got %d: %w", c.RetryLimit, core.ErrInvalidConfiguration)
	}
	if c.RetryWait < 0 {
		return fmt.Errorf("retry wait must be >= 0: %w", core.ErrInvalidConfiguration)
	}
	if c.MaxBackoff < c.RetryWait {
		return fmt.Errorf("max backoff (%s) must be >= retry wait (%s): %w", c.MaxBackoff, c.RetryWait, core.ErrInvalidConfiguration)
	}
	if c.BPCapacity <= 0 {
		return fmt.Errorf("backpressure capacity must be > 0, got %d: %w", c.BPCapacity, core.ErrInvalidConfiguration)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be > 0, got %d: %w", c.BatchSize, core.ErrInvalidConfiguration)
	}
	if c.BatchTimeout <= 0 {
		return fmt.Errorf("batch timeout must be > 0: %w", core.ErrInvalidConfiguration)
	}
	return nil
}
