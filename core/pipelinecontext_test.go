package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithPipelineMetadataRoundTrip(t *testing.T) {
	ctx := WithPipelineMetadata(context.Background(), MetaVersionTag, "v2")
	assert.Equal(t, "v2", VersionTag(ctx))
}

func TestWithPipelineMetadataIsAdditive(t *testing.T) {
	ctx := context.Background()
	ctx = WithPipelineMetadata(ctx, MetaVersionTag, "v1")
	ctx = WithPipelineMetadata(ctx, MetaReplayMode, "dlq-42")

	assert.Equal(t, "v1", VersionTag(ctx))
	assert.True(t, IsReplay(ctx))
}

func TestWithPipelineMetadataLaterOverrides(t *testing.T) {
	ctx := context.Background()
	ctx = WithPipelineMetadata(ctx, MetaVersionTag, "v1")
	ctx = WithPipelineMetadata(ctx, MetaVersionTag, "v2")

	assert.Equal(t, "v2", VersionTag(ctx))
}

func TestWithPipelineMetadataDoesNotMutateParent(t *testing.T) {
	parent := WithPipelineMetadata(context.Background(), MetaVersionTag, "v1")
	child := WithPipelineMetadata(parent, MetaVersionTag, "v2")

	assert.Equal(t, "v1", VersionTag(parent))
	assert.Equal(t, "v2", VersionTag(child))
}

func TestPipelineMetadataFromEmptyContext(t *testing.T) {
	meta := PipelineMetadataFrom(context.Background())
	assert.Empty(t, meta)
}

func TestCachePolicyOverrideAccessor(t *testing.T) {
	ctx := WithPipelineMetadata(context.Background(), MetaCachePolicyOverride, "bypass")
	assert.Equal(t, "bypass", CachePolicyOverride(ctx))
}

func TestSortedKeysDeterministic(t *testing.T) {
	meta := PipelineMetadata{"b": "2", "a": "1", "c": "3"}
	assert.Equal(t, []string{"a", "b", "c"}, meta.SortedKeys())
}
