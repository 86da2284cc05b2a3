package cachepolicy

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// KeyStrategy resolves a cache key for an item. Strategies are consulted
// highest priority first; returning "" means "this strategy does not
// apply", so the registry falls through to the next one (§3 CacheKeyStrategy).
type KeyStrategy interface {
	Priority() int
	ResolveKey(ctx context.Context, item any) string
}

// KeyStrategyFunc adapts a plain function to KeyStrategy.
type KeyStrategyFunc struct {
	Prio int
	Fn   func(ctx context.Context, item any) string
}

func (k KeyStrategyFunc) Priority() int { return k.Prio }
func (k KeyStrategyFunc) ResolveKey(ctx context.Context, item any) string {
	return k.Fn(ctx, item)
}

// Registry holds the process-wide, read-after-startup set of key strategies
// (§5 shared resources: "Key strategy registry... read-only after startup").
type Registry struct {
	mu         sync.RWMutex
	strategies []KeyStrategy
}

// NewRegistry builds an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a strategy, keeping the internal list sorted by descending
// priority so Resolve always walks highest-priority first.
func (r *Registry) Register(s KeyStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies = append(r.strategies, s)
	sort.SliceStable(r.strategies, func(i, j int) bool {
		return r.strategies[i].Priority() > r.strategies[j].Priority()
	})
}

// Resolve returns the first non-empty key produced by a registered
// strategy, or "" if none applies.
func (r *Registry) Resolve(ctx context.Context, item any) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.strategies {
		if key := s.ResolveKey(ctx, item); key != "" {
			return key
		}
	}
	return ""
}

// BuildKey composes the final cache key from a resolved base key and an
// optional version tag: "[versionTag:]baseKey" (§4.4 key derivation).
func BuildKey(versionTag, baseKey string) string {
	if versionTag == "" {
		return baseKey
	}
	return fmt.Sprintf("%s:%s", versionTag, baseKey)
}

// TypePrefix builds the prefix used for invalidate-all-of-type operations:
// "[<versionTag>:]<typeFqcn>:" (§4.4).
func TypePrefix(versionTag, typeFqcn string) string {
	if versionTag == "" {
		return typeFqcn + ":"
	}
	return fmt.Sprintf("%s:%s:", versionTag, typeFqcn)
}
