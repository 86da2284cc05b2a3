package resilience

import (
	"errors"

	"github.com/flowcraft/reactorpipe/core"
)

// IsRetryable walks err's cause/suppressed chain and reports whether the step
// engine should retry the attempt that produced it. The chain is walked using
// Go's native multi-cause unwrapping (the same Unwrap() []error mechanism
// errors.Join relies on), cycle-guarded by a visited set so a pathological
// error graph can't loop forever.
//
// An error is non-retryable when the chain contains:
//   - core.ErrNonRetryable (set via core.MarkNonRetryable)
//   - core.ErrNilDereference
//   - a core.HTTPStatusError with a 4xx status code
//
// Everything else is treated as retryable, including context deadline/cancel
// errors - the caller (Retry, RetryWithClassifier) already checks ctx.Done()
// independently before consulting the classifier.
func IsRetryable(err error) bool {
	if err == nil {
		return true
	}
	return !isNonRetryable(err, make(map[error]bool))
}

func isNonRetryable(err error, visited map[error]bool) bool {
	if err == nil || visited[err] {
		return false
	}
	visited[err] = true

	if errors.Is(err, core.ErrNonRetryable) || errors.Is(err, core.ErrNilDereference) {
		return true
	}

	var httpErr *core.HTTPStatusError
	if errors.As(err, &httpErr) && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
		return true
	}

	switch x := err.(type) {
	case interface{ Unwrap() error }:
		return isNonRetryable(x.Unwrap(), visited)
	case interface{ Unwrap() []error }:
		for _, cause := range x.Unwrap() {
			if isNonRetryable(cause, visited) {
				return true
			}
		}
	}

	return false
}

// Classifier adapts IsRetryable to the func(error) bool shape RetryWithClassifier
// and RetryExecutor.ExecuteWithClassifier expect.
func Classifier(err error) bool {
	return IsRetryable(err)
}
