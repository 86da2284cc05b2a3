package resilience

import (
	"errors"
	"fmt"
	"testing"

	"github.com/flowcraft/reactorpipe/core"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryablePlainError(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("transient blip")))
}

func TestIsRetryableNilError(t *testing.T) {
	assert.True(t, IsRetryable(nil))
}

func TestIsRetryableMarkedNonRetryable(t *testing.T) {
	err := core.MarkNonRetryable(errors.New("bad input"))
	assert.False(t, IsRetryable(err))
}

func TestIsRetryableNilDereference(t *testing.T) {
	assert.False(t, IsRetryable(core.ErrNilDereference))
}

func TestIsRetryableHTTP4xx(t *testing.T) {
	err := &core.HTTPStatusError{StatusCode: 404, Err: errors.New("not found")}
	assert.False(t, IsRetryable(err))
}

func TestIsRetryableHTTP5xx(t *testing.T) {
	err := &core.HTTPStatusError{StatusCode: 503, Err: errors.New("unavailable")}
	assert.True(t, IsRetryable(err))
}

func TestIsRetryableWrappedNonRetryable(t *testing.T) {
	inner := core.MarkNonRetryable(errors.New("validation failed"))
	wrapped := fmt.Errorf("step enrich-order failed: %w", inner)
	assert.False(t, IsRetryable(wrapped))
}

func TestIsRetryableJoinedErrors(t *testing.T) {
	joined := errors.Join(errors.New("side effect logged"), core.ErrNilDereference)
	assert.False(t, IsRetryable(joined))
}

func TestIsRetryableJoinedAllRetryable(t *testing.T) {
	joined := errors.Join(errors.New("timeout"), errors.New("connection reset"))
	assert.True(t, IsRetryable(joined))
}

func TestClassifierMatchesIsRetryable(t *testing.T) {
	err := core.MarkNonRetryable(errors.New("x"))
	assert.Equal(t, IsRetryable(err), Classifier(err))
}
