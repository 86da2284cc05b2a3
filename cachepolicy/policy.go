// Package cachepolicy implements the Cache Policy Engine (§4.4): given an
// item and a configured cache policy, it produces the policy-specific flow
// around a remote call (read-through, cache-only write, skip-if-present,
// require-cache, bypass) and returns the resulting cache status, which the
// composer's cache wrapper records onto the pipeline context.
package cachepolicy

import "strings"

// Policy selects how cache reads/writes interact with a remote call.
type Policy string

const (
	CacheOnly      Policy = "cache-only"
	PreferCache    Policy = "prefer-cache"
	ReturnCached   Policy = "return-cached" // alias of PreferCache, identical semantics (§9 open question resolved)
	SkipIfPresent  Policy = "skip-if-present"
	RequireCache   Policy = "require-cache"
	BypassCache    Policy = "bypass-cache"
)

// Normalize resolves the return-cached/prefer-cache alias to a single
// canonical value so callers only ever switch on one spelling.
func (p Policy) Normalize() Policy {
	if p == ReturnCached {
		return PreferCache
	}
	return p
}

// ParsePolicy parses a configuration string into a Policy, defaulting to
// CacheOnly per the §6 configuration surface default.
func ParsePolicy(s string) (Policy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(CacheOnly):
		return CacheOnly, true
	case string(PreferCache):
		return PreferCache, true
	case string(ReturnCached):
		return ReturnCached, true
	case string(SkipIfPresent):
		return SkipIfPresent, true
	case string(RequireCache):
		return RequireCache, true
	case string(BypassCache):
		return BypassCache, true
	default:
		return "", false
	}
}

// Status is the outcome recorded onto the pipeline context after a cache
// policy decision (§4.4, mirrors core.HeaderCacheStatus values).
type Status string

const (
	Hit    Status = "HIT"
	Miss   Status = "MISS"
	Bypass Status = "BYPASS"
	Error  Status = "ERROR"
)
