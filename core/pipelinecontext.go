package core

import (
	"context"
	"sort"
)

// pipelineContextKey is the unexported context key type for the pipeline
// context store, preventing collisions with keys set by other packages.
type pipelineContextKey struct{}

// PipelineMetadata holds request-scoped metadata that flows alongside a
// payload through every step of a pipeline run: version tag, replay mode,
// and any per-request cache policy override. It is carried on the
// context.Context passed into every step invocation so steps, the Cache
// Policy Engine, and the Telemetry Sink all observe the same values without
// threading an extra parameter through every signature.
//
// A PipelineMetadata value is immutable once stored: WithPipelineMetadata
// always produces a new map, so concurrent branches of a ManyToMany fan-out
// can each attach their own overrides without racing on a shared map.
type PipelineMetadata map[string]string

const (
	// MetaVersionTag names the version tag entry, mirrored from HeaderVersionTag
	// when a pipeline run is triggered over HTTP.
	MetaVersionTag = "version_tag"

	// MetaReplayMode names the replay-mode entry. A non-empty value signals the
	// run is replaying a previously dead-lettered invocation rather than a live one.
	MetaReplayMode = "replay_mode"

	// MetaCachePolicyOverride names the per-request cache policy override entry.
	MetaCachePolicyOverride = "cache_policy_override"

	// MetaCacheStatus names the entry the Cache Policy Engine records its
	// HIT/MISS/BYPASS/ERROR decision into (§4.4/§4.5), mirrored outward as
	// HeaderCacheStatus ("x-pipeline-cache-status") when a run crosses an
	// HTTP boundary.
	MetaCacheStatus = "cache_status"
)

// WithPipelineMetadata attaches key/value pairs to ctx's pipeline metadata,
// returning a new context. Existing entries are preserved; a key present in
// both the existing store and labels is overridden by labels.
func WithPipelineMetadata(ctx context.Context, labels ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	existing, _ := ctx.Value(pipelineContextKey{}).(PipelineMetadata)

	merged := make(PipelineMetadata, len(existing)+len(labels)/2)
	for k, v := range existing {
		merged[k] = v
	}
	for i := 0; i+1 < len(labels); i += 2 {
		if labels[i] == "" {
			continue
		}
		merged[labels[i]] = labels[i+1]
	}

	return context.WithValue(ctx, pipelineContextKey{}, merged)
}

// PipelineMetadataFrom returns the metadata stored on ctx, or an empty,
// non-nil map if none has been set.
func PipelineMetadataFrom(ctx context.Context) PipelineMetadata {
	if ctx == nil {
		return PipelineMetadata{}
	}
	meta, _ := ctx.Value(pipelineContextKey{}).(PipelineMetadata)
	if meta == nil {
		return PipelineMetadata{}
	}
	return meta
}

// VersionTag is a convenience accessor for MetaVersionTag.
func VersionTag(ctx context.Context) string {
	return PipelineMetadataFrom(ctx)[MetaVersionTag]
}

// IsReplay is a convenience accessor reporting whether ctx is tagged as a
// dead-letter replay run.
func IsReplay(ctx context.Context) bool {
	return PipelineMetadataFrom(ctx)[MetaReplayMode] != ""
}

// CachePolicyOverride is a convenience accessor for MetaCachePolicyOverride.
func CachePolicyOverride(ctx context.Context) string {
	return PipelineMetadataFrom(ctx)[MetaCachePolicyOverride]
}

// CacheStatus is a convenience accessor for MetaCacheStatus, the Cache
// Policy Engine's last recorded HIT/MISS/BYPASS/ERROR decision.
func CacheStatus(ctx context.Context) string {
	return PipelineMetadataFrom(ctx)[MetaCacheStatus]
}

// resultRecorderKey is the context key under which an in-flight step
// invocation can report metadata the engine folds into the item's outgoing
// context once the call returns. A step's process function signature
// returns a value and an error only, so it has no direct way to hand back
// an updated context; RecordResult gives it an indirect one.
type resultRecorderKey struct{}

// WithResultRecorder installs an empty recorder box on ctx and returns the
// annotated context together with a function that reads back whatever was
// recorded into it by the time the caller is done. step.Engine uses this to
// let a wrapped step (for example one routed through the Cache Policy
// Engine, §4.4/§4.5) report a result like cacheStatus without changing the
// step function's signature.
func WithResultRecorder(ctx context.Context) (context.Context, func() PipelineMetadata) {
	box := make(PipelineMetadata)
	return context.WithValue(ctx, resultRecorderKey{}, &box), func() PipelineMetadata { return box }
}

// RecordResult stores key/value into ctx's result recorder box, if WithResultRecorder
// installed one; it is a silent no-op otherwise, so code that records results
// works whether or not a caller is watching.
func RecordResult(ctx context.Context, key, value string) {
	box, ok := ctx.Value(resultRecorderKey{}).(*PipelineMetadata)
	if !ok || box == nil {
		return
	}
	(*box)[key] = value
}

// SortedKeys returns the metadata's keys in sorted order, used wherever
// metadata is rendered deterministically (log fields, cache key components).
func (m PipelineMetadata) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
