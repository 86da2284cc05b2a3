package cachepolicy

import (
	"context"
	"encoding/json"

	"github.com/flowcraft/reactorpipe/core"
	"golang.org/x/sync/singleflight"
)

// RemoteFunc invokes the underlying step logic that would otherwise run,
// producing the value the cache would have returned. The engine calls it on
// a cache miss (or never, for CACHE_ONLY/REQUIRE_CACHE).
type RemoteFunc func(ctx context.Context, item any) (any, error)

// Directive is one step's cache configuration: the policy to apply, its TTL,
// and the type tag used for key-prefixing and invalidate-all-of-type.
type Directive struct {
	Policy   Policy
	TTL      int64 // seconds; 0 stores the entry with no expiry
	TypeFQCN string
}

// Engine executes the Cache Policy Engine's five read/write flows (§4.4)
// around a single item, using a Registry to resolve the base key and a
// CacheBackend for storage. A nil Backend makes every policy behave as
// BYPASS_CACHE, since there is nowhere to read or write.
type Engine struct {
	Backend  core.CacheBackend
	Registry *Registry
	Sink     core.TelemetrySink
	Step     string

	// group collapses concurrent misses on the same key into a single
	// remote call (§4.4 "dedup is an optional backend concern" — the engine
	// provides it in-process since the backend contract does not require it).
	group singleflight.Group
}

// NewEngine builds a cache policy engine. sink may be core.NoOpTelemetrySink{}.
func NewEngine(step string, backend core.CacheBackend, registry *Registry, sink core.TelemetrySink) *Engine {
	if sink == nil {
		sink = core.NoOpTelemetrySink{}
	}
	return &Engine{Backend: backend, Registry: registry, Sink: sink, Step: step}
}

// callRemoteOnce dedupes concurrent remote calls sharing key, so a burst of
// readers missing the same cache entry triggers one remote call instead of
// one per reader.
func (e *Engine) callRemoteOnce(ctx context.Context, key string, item any, remote RemoteFunc) (any, error) {
	v, err, _ := e.group.Do(key, func() (any, error) {
		return remote(ctx, item)
	})
	return v, err
}

// Execute runs directive's policy for item, calling remote on a cache miss
// (or unconditionally for BYPASS_CACHE; never for CACHE_ONLY or
// REQUIRE_CACHE). It returns the emitted
// value, the recorded status, and an error only when the policy demands a
// cache hit that did not occur (REQUIRE_CACHE) or the remote call itself fails.
func (e *Engine) Execute(ctx context.Context, item any, directive Directive, remote RemoteFunc) (any, Status, error) {
	policy := directive.Policy.Normalize()

	if e.Backend == nil {
		policy = BypassCache
	}

	baseKey := e.Registry.Resolve(ctx, item)
	versionTag := core.VersionTag(ctx)

	if baseKey == "" {
		if policy == RequireCache {
			return nil, Miss, core.ErrCacheMiss
		}
		policy = BypassCache
	}
	key := BuildKey(versionTag, baseKey)

	switch policy {
	case CacheOnly:
		return e.runCacheOnly(ctx, item, key, directive)
	case PreferCache:
		return e.runPreferCache(ctx, item, key, directive, remote)
	case SkipIfPresent:
		return e.runSkipIfPresent(ctx, item, key, directive, remote)
	case RequireCache:
		return e.runRequireCache(ctx, key)
	case BypassCache:
		return e.runBypass(ctx, item, remote)
	default:
		return e.runBypass(ctx, item, remote)
	}
}

func (e *Engine) runCacheOnly(ctx context.Context, item any, key string, directive Directive) (any, Status, error) {
	e.writeThrough(ctx, key, item, directive)
	return item, Bypass, nil
}

func (e *Engine) runPreferCache(ctx context.Context, item any, key string, directive Directive, remote RemoteFunc) (any, Status, error) {
	if raw, found, err := e.Backend.Get(ctx, key); err == nil && found {
		e.Sink.CacheHit(ctx, e.Step, key)
		if value, decodeErr := decode(raw); decodeErr == nil {
			return value, Hit, nil
		}
	}
	e.Sink.CacheMiss(ctx, e.Step, key)

	result, err := e.callRemoteOnce(ctx, key, item, remote)
	if err != nil {
		return nil, Miss, err
	}
	e.writeThrough(ctx, key, result, directive)
	return result, Miss, nil
}

func (e *Engine) runSkipIfPresent(ctx context.Context, item any, key string, directive Directive, remote RemoteFunc) (any, Status, error) {
	exists, err := e.Backend.Exists(ctx, key)
	if err == nil && exists {
		e.Sink.CacheHit(ctx, e.Step, key)
		return item, Hit, nil
	}
	e.Sink.CacheMiss(ctx, e.Step, key)

	result, err := e.callRemoteOnce(ctx, key, item, remote)
	if err != nil {
		return nil, Miss, err
	}
	e.writeThrough(ctx, key, result, directive)
	return result, Miss, nil
}

func (e *Engine) runRequireCache(ctx context.Context, key string) (any, Status, error) {
	raw, found, err := e.Backend.Get(ctx, key)
	if err != nil || !found {
		e.Sink.CacheMiss(ctx, e.Step, key)
		return nil, Miss, core.ErrCacheMiss
	}
	e.Sink.CacheHit(ctx, e.Step, key)
	value, decodeErr := decode(raw)
	if decodeErr != nil {
		return nil, Miss, core.ErrCacheMiss
	}
	return value, Hit, nil
}

func (e *Engine) runBypass(ctx context.Context, item any, remote RemoteFunc) (any, Status, error) {
	result, err := remote(ctx, item)
	if err != nil {
		return nil, Bypass, err
	}
	return result, Bypass, nil
}

// writeThrough stores value under key. A marshal or backend write failure
// never aborts the primary flow; it is discarded without being logged, and
// the calling flow still reports its HIT/MISS/BYPASS status, not ERROR.
func (e *Engine) writeThrough(ctx context.Context, key string, value any, directive Directive) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = e.Backend.Put(ctx, key, raw, directive.TTL)
}

// decode unmarshals raw into a generic value. Cached values lose their
// concrete Go type across the JSON round trip; callers needing a specific
// type re-decode the returned map[string]any themselves.
func decode(raw []byte) (any, error) {
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
