package step

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendAll(ctx context.Context, values ...any) <-chan Item {
	ch := make(chan Item, len(values))
	for _, v := range values {
		ch <- Item{Value: v}
	}
	close(ch)
	return ch
}

func drain(ch <-chan Item) []Item {
	var out []Item
	for it := range ch {
		out = append(out, it)
	}
	return out
}

func TestEngineOneToOneHappyPath(t *testing.T) {
	s := New("upper", OneToOne, DefaultConfig())
	s.OneToOne = func(ctx context.Context, in any) (any, error) {
		return strings.ToUpper(in.(string)) + "!", nil
	}
	e := NewEngine(s, nil)

	ctx := context.Background()
	out := e.Run(ctx, sendAll(ctx, "a", "b", "c"))
	items := drain(out)

	require.Len(t, items, 3)
	assert.Equal(t, "A!", items[0].Value)
	assert.Equal(t, "B!", items[1].Value)
	assert.Equal(t, "C!", items[2].Value)
}

func TestEngineRetryThenSuccess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryLimit = 3
	cfg.RetryWait = 5 * time.Millisecond
	cfg.MaxBackoff = 50 * time.Millisecond
	cfg.Jitter = false

	var calls int32
	s := New("flaky", OneToOne, cfg)
	s.OneToOne = func(ctx context.Context, in any) (any, error) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	}
	e := NewEngine(s, nil)

	ctx := context.Background()
	out := e.Run(ctx, sendAll(ctx, "x"))
	items := drain(out)

	require.Len(t, items, 1)
	assert.NoError(t, items[0].Err)
	assert.Equal(t, "ok", items[0].Value)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 3, items[0].Attempts)
}

func TestEngineRetryExhaustedRecovers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryLimit = 1 // 2 total attempts
	cfg.RetryWait = time.Millisecond
	cfg.MaxBackoff = 10 * time.Millisecond
	cfg.RecoverOnFailure = true

	var calls int32
	s := New("flaky", OneToOne, cfg)
	s.OneToOne = func(ctx context.Context, in any) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("always fails")
	}
	s.DeadLetter = func(ctx context.Context, in any, cause error) (any, bool) {
		return "FALLBACK", true
	}
	e := NewEngine(s, nil)

	ctx := context.Background()
	out := e.Run(ctx, sendAll(ctx, "x"))
	items := drain(out)

	require.Len(t, items, 1)
	assert.NoError(t, items[0].Err)
	assert.Equal(t, "FALLBACK", items[0].Value)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestEngineRetryExhaustedPropagates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryLimit = 1
	cfg.RetryWait = time.Millisecond
	cfg.MaxBackoff = 10 * time.Millisecond
	cfg.RecoverOnFailure = false

	s := New("flaky", OneToOne, cfg)
	s.OneToOne = func(ctx context.Context, in any) (any, error) {
		return nil, errors.New("always fails")
	}
	e := NewEngine(s, nil)

	ctx := context.Background()
	out := e.Run(ctx, sendAll(ctx, "x"))
	items := drain(out)

	require.Len(t, items, 1)
	assert.Error(t, items[0].Err)
}

func TestEngineSideEffectReemitsOriginal(t *testing.T) {
	s := New("log", SideEffect, DefaultConfig())
	var seen []any
	s.SideEffect = func(ctx context.Context, in any) error {
		seen = append(seen, in)
		return nil
	}
	e := NewEngine(s, nil)

	ctx := context.Background()
	out := e.Run(ctx, sendAll(ctx, "payload"))
	items := drain(out)

	require.Len(t, items, 1)
	assert.Equal(t, "payload", items[0].Value)
	assert.Equal(t, []any{"payload"}, seen)
}

func TestEngineManyToOneBatchesBySize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.BatchTimeout = 200 * time.Millisecond

	var batches [][]any
	s := New("sum", ManyToOne, cfg)
	s.Batch = func(ctx context.Context, batch []any) (any, error) {
		batches = append(batches, batch)
		total := 0
		for _, v := range batch {
			total += v.(int)
		}
		return total, nil
	}
	e := NewEngine(s, nil)

	ctx := context.Background()
	out := e.Run(ctx, sendAll(ctx, 1, 2, 3, 4, 5))
	items := drain(out)

	require.Len(t, items, 3) // [1,2] [3,4] [5] (final partial batch on timeout/close)
	assert.Equal(t, 3, items[0].Value)
	assert.Equal(t, 7, items[1].Value)
	assert.Equal(t, 5, items[2].Value)
}

func TestEngineOneToManyFanOut(t *testing.T) {
	s := New("split", OneToMany, DefaultConfig())
	s.SubStream = func(ctx context.Context, in any) (<-chan any, error) {
		out := make(chan any, 3)
		for _, c := range in.(string) {
			out <- string(c)
		}
		close(out)
		return out, nil
	}
	e := NewEngine(s, nil)

	ctx := context.Background()
	out := e.Run(ctx, sendAll(ctx, "abc"))
	items := drain(out)

	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].Value)
	assert.Equal(t, "b", items[1].Value)
	assert.Equal(t, "c", items[2].Value)
}

func TestEngineUpstreamFailurePassesThroughLineage(t *testing.T) {
	s := New("next", OneToOne, DefaultConfig())
	called := false
	s.OneToOne = func(ctx context.Context, in any) (any, error) {
		called = true
		return in, nil
	}
	e := NewEngine(s, nil)

	ctx := context.Background()
	in := make(chan Item, 1)
	in <- Item{Err: errors.New("upstream failed")}
	close(in)

	items := drain(e.Run(ctx, in))
	require.Len(t, items, 1)
	assert.Error(t, items[0].Err)
	assert.False(t, called, "step function must not run for an already-failed lineage")
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.MaxBackoff = cfg.RetryWait - time.Millisecond
	assert.Error(t, bad.Validate())
}

func TestMergeOverridesOnlySetFields(t *testing.T) {
	base := DefaultConfig()
	limit := 9
	merged := Merge(base, Override{RetryLimit: &limit})

	assert.Equal(t, 9, merged.RetryLimit)
	assert.Equal(t, base.RetryWait, merged.RetryWait)
}

func TestResolveConcurrencySequentialAlwaysConcatenates(t *testing.T) {
	c, warn := ResolveConcurrency(Sequential, Relaxed, Safe, 128)
	assert.Equal(t, 1, c)
	assert.False(t, warn)
}

func TestResolveConcurrencyAutoMergesWhenSafeAndRelaxed(t *testing.T) {
	c, warn := ResolveConcurrency(Auto, Relaxed, Safe, 64)
	assert.Equal(t, 64, c)
	assert.False(t, warn)
}

func TestResolveConcurrencyParallelWarnsWhenUnsafe(t *testing.T) {
	c, warn := ResolveConcurrency(Parallel, Relaxed, Unsafe, 64)
	assert.Equal(t, 1, c)
	assert.True(t, warn)
}
