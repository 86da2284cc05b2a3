package core

import "time"

// Environment variable names. Config.LoadFromEnv() reads REDIS_URL (as a
// fallback after PIPELINE_CACHE_REDIS_URL); it reads the port, namespace and
// development-mode settings from PIPELINE_PORT, PIPELINE_NAMESPACE and
// PIPELINE_DEV_MODE, not from the NAMESPACE, PORT and DEV_MODE names below.
const (
	EnvRedisURL  = "REDIS_URL"  // Redis connection URL for the cache backend
	EnvNamespace = "NAMESPACE"  // Kubernetes namespace, used to key shared cache prefixes
	EnvPort      = "PORT"       // HTTP port for the readiness probe
	EnvDevMode   = "DEV_MODE"   // Development mode flag, relaxes startup health requirements
)

// Pipeline Context Store propagation headers (§4.5). These carry the flow-scoped
// context across process boundaries whenever a step invokes a remote service.
const (
	HeaderVersionTag          = "x-pipeline-version"
	HeaderReplayMode          = "x-pipeline-replay"
	HeaderCachePolicyOverride = "x-pipeline-cache-policy"
	HeaderCacheStatus         = "x-pipeline-cache-status"
)

// Cache key defaults (§4.4).
const (
	// DefaultCachePrefix is prepended to every cache key before the version tag
	// and the key strategy's own key segment.
	// Format: <prefix><version-tag>:<strategy-key>
	DefaultCachePrefix = "reactorpipe:cache:"

	// DefaultCacheTTL is the default for Config.Cache.TTL. It is not
	// substituted into a cachepolicy.Directive whose TTL is 0; such entries
	// are stored with no expiry.
	DefaultCacheTTL = 15 * time.Minute
)

// Startup health polling defaults (§5.4).
const (
	// DefaultHealthPollInterval is how often the readiness probe re-checks
	// startup dependencies while they remain PENDING.
	DefaultHealthPollInterval = 2 * time.Second

	// DefaultHealthPollTimeout bounds how long the composer waits for all
	// startup dependencies to report HEALTHY before giving up.
	DefaultHealthPollTimeout = 5 * time.Minute
)

// Parallelism Policy defaults (§4.6).
const (
	// DefaultMaxConcurrency bounds the number of in-flight goroutines a merged
	// PARALLEL step stage may run concurrently.
	DefaultMaxConcurrency = 128
)
