package cachepolicy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryBackendGetPutRoundTrip(t *testing.T) {
	b := NewInMemoryBackend()
	ctx := context.Background()

	_, found, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.Put(ctx, "k1", []byte("v1"), 0))
	val, found, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", string(val))
}

func TestInMemoryBackendExpiresAfterTTL(t *testing.T) {
	b := NewInMemoryBackend()
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "k1", []byte("v1"), 0))
	b.mu.Lock()
	b.entries["k1"] = inMemoryEntry{value: []byte("v1"), expiresAt: time.Now().Add(-time.Second)}
	b.mu.Unlock()

	_, found, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found, "expired entry must not be returned")
}

func TestInMemoryBackendInvalidate(t *testing.T) {
	b := NewInMemoryBackend()
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "k1", []byte("v1"), 0))
	existed, err := b.Invalidate(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, existed)

	_, found, _ := b.Get(ctx, "k1")
	assert.False(t, found)

	existed, err = b.Invalidate(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestInMemoryBackendInvalidateByPrefix(t *testing.T) {
	b := NewInMemoryBackend()
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "order:1", []byte("a"), 0))
	require.NoError(t, b.Put(ctx, "order:2", []byte("b"), 0))
	require.NoError(t, b.Put(ctx, "invoice:1", []byte("c"), 0))

	count, err := b.InvalidateByPrefix(ctx, "order:")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, found, _ := b.Get(ctx, "invoice:1")
	assert.True(t, found, "non-matching prefix must survive")
}

func TestInMemoryBackendExistsMirrorsGet(t *testing.T) {
	b := NewInMemoryBackend()
	ctx := context.Background()

	exists, err := b.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, b.Put(ctx, "k1", []byte("v1"), 0))
	exists, err = b.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, exists)
}
