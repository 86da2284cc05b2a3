package cachepolicy

import (
	"context"
	"testing"

	"github.com/flowcraft/reactorpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedKeyRegistry(key string) *Registry {
	r := NewRegistry()
	r.Register(KeyStrategyFunc{Prio: 1, Fn: func(ctx context.Context, item any) string { return key }})
	return r
}

func TestEngineCacheOnlyAlwaysWritesAndBypassesRead(t *testing.T) {
	backend := NewInMemoryBackend()
	eng := NewEngine("enrich", backend, fixedKeyRegistry("order-1"), core.NoOpTelemetrySink{})

	called := false
	remote := func(ctx context.Context, item any) (any, error) {
		called = true
		return item, nil
	}

	result, status, err := eng.Execute(context.Background(), "payload", Directive{Policy: CacheOnly}, remote)
	require.NoError(t, err)
	assert.Equal(t, Bypass, status)
	assert.Equal(t, "payload", result)
	assert.False(t, called, "CACHE_ONLY never invokes remote")

	_, found, _ := backend.Get(context.Background(), "order-1")
	assert.True(t, found, "CACHE_ONLY must write through")
}

func TestEnginePreferCacheMissThenHit(t *testing.T) {
	backend := NewInMemoryBackend()
	eng := NewEngine("enrich", backend, fixedKeyRegistry("order-1"), core.NoOpTelemetrySink{})

	calls := 0
	remote := func(ctx context.Context, item any) (any, error) {
		calls++
		return "remote-value", nil
	}

	result, status, err := eng.Execute(context.Background(), "payload", Directive{Policy: PreferCache}, remote)
	require.NoError(t, err)
	assert.Equal(t, Miss, status)
	assert.Equal(t, "remote-value", result)
	assert.Equal(t, 1, calls)

	result, status, err = eng.Execute(context.Background(), "payload", Directive{Policy: PreferCache}, remote)
	require.NoError(t, err)
	assert.Equal(t, Hit, status)
	assert.Equal(t, "remote-value", result)
	assert.Equal(t, 1, calls, "second call must be served from cache")
}

func TestEngineReturnCachedAliasBehavesLikePreferCache(t *testing.T) {
	backend := NewInMemoryBackend()
	eng := NewEngine("enrich", backend, fixedKeyRegistry("order-1"), core.NoOpTelemetrySink{})
	remote := func(ctx context.Context, item any) (any, error) { return "v", nil }

	_, status, err := eng.Execute(context.Background(), "payload", Directive{Policy: ReturnCached}, remote)
	require.NoError(t, err)
	assert.Equal(t, Miss, status)
}

func TestEngineSkipIfPresentChecksExistenceOnly(t *testing.T) {
	backend := NewInMemoryBackend()
	eng := NewEngine("enrich", backend, fixedKeyRegistry("order-1"), core.NoOpTelemetrySink{})

	calls := 0
	remote := func(ctx context.Context, item any) (any, error) {
		calls++
		return "remote-value", nil
	}

	result, status, err := eng.Execute(context.Background(), "input", Directive{Policy: SkipIfPresent}, remote)
	require.NoError(t, err)
	assert.Equal(t, Miss, status)
	assert.Equal(t, "remote-value", result)

	result, status, err = eng.Execute(context.Background(), "input", Directive{Policy: SkipIfPresent}, remote)
	require.NoError(t, err)
	assert.Equal(t, Hit, status)
	assert.Equal(t, "input", result, "present path emits the original input unchanged")
	assert.Equal(t, 1, calls)
}

func TestEngineRequireCacheFailsOnMiss(t *testing.T) {
	backend := NewInMemoryBackend()
	eng := NewEngine("enrich", backend, fixedKeyRegistry("order-1"), core.NoOpTelemetrySink{})

	_, status, err := eng.Execute(context.Background(), "input", Directive{Policy: RequireCache}, nil)
	assert.ErrorIs(t, err, core.ErrCacheMiss)
	assert.Equal(t, Miss, status)
}

func TestEngineRequireCacheHitsAfterPriorWrite(t *testing.T) {
	backend := NewInMemoryBackend()
	eng := NewEngine("enrich", backend, fixedKeyRegistry("order-1"), core.NoOpTelemetrySink{})

	_, _, err := eng.Execute(context.Background(), "input", Directive{Policy: CacheOnly}, nil)
	require.NoError(t, err)

	result, status, err := eng.Execute(context.Background(), "input", Directive{Policy: RequireCache}, nil)
	require.NoError(t, err)
	assert.Equal(t, Hit, status)
	assert.Equal(t, "input", result)
}

func TestEngineBypassCacheNeverTouchesBackend(t *testing.T) {
	backend := NewInMemoryBackend()
	eng := NewEngine("enrich", backend, fixedKeyRegistry("order-1"), core.NoOpTelemetrySink{})

	calls := 0
	remote := func(ctx context.Context, item any) (any, error) {
		calls++
		return "remote-value", nil
	}

	_, status, err := eng.Execute(context.Background(), "input", Directive{Policy: BypassCache}, remote)
	require.NoError(t, err)
	assert.Equal(t, Bypass, status)
	assert.Equal(t, 1, calls)

	_, found, _ := backend.Get(context.Background(), "order-1")
	assert.False(t, found, "BYPASS_CACHE must not write")
}

func TestEngineRequireCacheWithBlankKeyFails(t *testing.T) {
	backend := NewInMemoryBackend()
	eng := NewEngine("enrich", backend, NewRegistry(), core.NoOpTelemetrySink{})

	_, status, err := eng.Execute(context.Background(), "input", Directive{Policy: RequireCache}, nil)
	assert.ErrorIs(t, err, core.ErrCacheMiss)
	assert.Equal(t, Miss, status)
}

func TestEnginePreferCacheWithBlankKeyBypassesAndCallsRemote(t *testing.T) {
	backend := NewInMemoryBackend()
	eng := NewEngine("enrich", backend, NewRegistry(), core.NoOpTelemetrySink{})

	calls := 0
	remote := func(ctx context.Context, item any) (any, error) {
		calls++
		return "remote-value", nil
	}

	result, status, err := eng.Execute(context.Background(), "input", Directive{Policy: PreferCache}, remote)
	require.NoError(t, err)
	assert.Equal(t, Bypass, status)
	assert.Equal(t, "remote-value", result)
	assert.Equal(t, 1, calls)
}

func TestEngineNilBackendForcesBypass(t *testing.T) {
	eng := NewEngine("enrich", nil, fixedKeyRegistry("order-1"), core.NoOpTelemetrySink{})

	calls := 0
	remote := func(ctx context.Context, item any) (any, error) {
		calls++
		return "remote-value", nil
	}

	result, status, err := eng.Execute(context.Background(), "input", Directive{Policy: CacheOnly}, remote)
	require.NoError(t, err)
	assert.Equal(t, Bypass, status)
	assert.Equal(t, "remote-value", result)
	assert.Equal(t, 1, calls)
}

func TestEngineVersionTagPrefixesKey(t *testing.T) {
	backend := NewInMemoryBackend()
	eng := NewEngine("enrich", backend, fixedKeyRegistry("order-1"), core.NoOpTelemetrySink{})

	ctx := core.WithPipelineMetadata(context.Background(), core.MetaVersionTag, "v2")
	_, _, err := eng.Execute(ctx, "input", Directive{Policy: CacheOnly}, nil)
	require.NoError(t, err)

	_, found, _ := backend.Get(context.Background(), "v2:order-1")
	assert.True(t, found, "version tag must prefix the resolved base key")

	_, foundUnprefixed, _ := backend.Get(context.Background(), "order-1")
	assert.False(t, foundUnprefixed)
}

func TestEngineCacheWriteFailureNeverAbortsPrimaryFlow(t *testing.T) {
	eng := NewEngine("enrich", failingBackend{}, fixedKeyRegistry("order-1"), core.NoOpTelemetrySink{})

	result, status, err := eng.Execute(context.Background(), "input", Directive{Policy: CacheOnly}, nil)
	require.NoError(t, err)
	assert.Equal(t, Bypass, status)
	assert.Equal(t, "input", result)
}

// failingBackend simulates a backend whose writes always fail, to exercise
// the "cache write failures never abort the primary flow" requirement.
type failingBackend struct{}

func (failingBackend) Get(ctx context.Context, key string) ([]byte, bool, error) { return nil, false, nil }
func (failingBackend) Put(ctx context.Context, key string, value []byte, ttlSeconds int64) error {
	return assert.AnError
}
func (failingBackend) Exists(ctx context.Context, key string) (bool, error)           { return false, nil }
func (failingBackend) Invalidate(ctx context.Context, key string) (bool, error)       { return false, nil }
func (failingBackend) InvalidateByPrefix(ctx context.Context, prefix string) (int64, error) {
	return 0, nil
}
