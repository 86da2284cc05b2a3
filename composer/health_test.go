package composer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flowcraft/reactorpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthPollerAwaitSucceedsWhenAllHealthy(t *testing.T) {
	checker := DependencyCheckerFunc{NameStr: "cache", Fn: func(ctx context.Context) core.DependencyStatus {
		return core.DependencyHealthy
	}}
	poller := NewHealthPoller([]DependencyChecker{checker}, core.HealthConfig{PollInterval: 10 * time.Millisecond, PollTimeout: time.Second})

	err := poller.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, poller.allHealthy())
}

func TestHealthPollerAwaitFailsOnDefinitiveUnhealthy(t *testing.T) {
	checker := DependencyCheckerFunc{NameStr: "cache", Fn: func(ctx context.Context) core.DependencyStatus {
		return core.DependencyUnhealthy
	}}
	poller := NewHealthPoller([]DependencyChecker{checker}, core.HealthConfig{PollInterval: 10 * time.Millisecond, PollTimeout: time.Second})

	err := poller.Await(context.Background())
	assert.ErrorIs(t, err, core.ErrDependencyUnhealthy)
}

func TestHealthPollerAwaitTimesOutOnPending(t *testing.T) {
	checker := DependencyCheckerFunc{NameStr: "cache", Fn: func(ctx context.Context) core.DependencyStatus {
		return core.DependencyPending
	}}
	poller := NewHealthPoller([]DependencyChecker{checker}, core.HealthConfig{PollInterval: 5 * time.Millisecond, PollTimeout: 20 * time.Millisecond})

	err := poller.Await(context.Background())
	assert.ErrorIs(t, err, core.ErrDependencyUnhealthy)
}

func TestHealthPollerEventuallyHealthy(t *testing.T) {
	calls := 0
	checker := DependencyCheckerFunc{NameStr: "cache", Fn: func(ctx context.Context) core.DependencyStatus {
		calls++
		if calls < 3 {
			return core.DependencyPending
		}
		return core.DependencyHealthy
	}}
	poller := NewHealthPoller([]DependencyChecker{checker}, core.HealthConfig{PollInterval: 5 * time.Millisecond, PollTimeout: time.Second})

	err := poller.Await(context.Background())
	require.NoError(t, err)
}

func TestHealthPollerHandlerReportsStatus(t *testing.T) {
	checker := DependencyCheckerFunc{NameStr: "cache", Fn: func(ctx context.Context) core.DependencyStatus {
		return core.DependencyHealthy
	}}
	poller := NewHealthPoller([]DependencyChecker{checker}, core.HealthConfig{PollInterval: 10 * time.Millisecond, PollTimeout: time.Second})
	require.NoError(t, poller.Await(context.Background()))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	poller.Handler()(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"UP"`)
}

func TestHealthPollerHandlerReportsDownBeforeAwait(t *testing.T) {
	checker := DependencyCheckerFunc{NameStr: "cache", Fn: func(ctx context.Context) core.DependencyStatus {
		return core.DependencyPending
	}}
	poller := NewHealthPoller([]DependencyChecker{checker}, core.HealthConfig{PollInterval: 10 * time.Millisecond, PollTimeout: time.Second})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	poller.Handler()(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
