package core

import "context"

// RemoteStepInvoker is the transport adapter contract a composed pipeline
// calls into whenever a step's process function delegates to a remote
// service instead of running in-process. The core ships no transport
// implementation; callers supply one (gRPC, REST, in-process test double).
//
// Every call receives ctx carrying the current PipelineMetadata; an
// implementation must inject HeaderVersionTag, HeaderReplayMode, and
// HeaderCachePolicyOverride into the outbound call. The methods return no
// context, so a HeaderCacheStatus value in the response is not carried back
// to the caller through this interface.
type RemoteStepInvoker interface {
	// InvokeUnary performs a single request/response call.
	InvokeUnary(ctx context.Context, stepID string, request []byte) ([]byte, error)

	// InvokeServerStream sends one request and receives a stream of responses.
	InvokeServerStream(ctx context.Context, stepID string, request []byte) (<-chan StreamChunk, error)

	// InvokeClientStream sends a stream of requests and receives one response.
	InvokeClientStream(ctx context.Context, stepID string, requests <-chan []byte) ([]byte, error)

	// InvokeBidi sends and receives streams concurrently.
	InvokeBidi(ctx context.Context, stepID string, requests <-chan []byte) (<-chan StreamChunk, error)
}

// StreamChunk carries one element of a streamed remote response, or a
// terminal error in place of a value.
type StreamChunk struct {
	Data []byte
	Err  error
}

// CacheBackend is the cache storage contract the Cache Policy Engine reads
// and writes through. Implementations must provide atomic single-key
// operations; the engine never retries a backend call itself and never
// serializes concurrent readers of the same key.
type CacheBackend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttlSeconds int64) error
	Exists(ctx context.Context, key string) (bool, error)
	Invalidate(ctx context.Context, key string) (bool, error)
	InvalidateByPrefix(ctx context.Context, prefix string) (int64, error)
}

// PersistenceProvider is the storage contract a SideEffect step's
// persistence aspect calls through. DuplicateKeyPolicy absorption (fail,
// ignore, upsert) is applied by the caller using the error returned here;
// a provider signals a duplicate key by returning an error satisfying
// errors.Is(err, ErrDuplicateKey).
type PersistenceProvider interface {
	Type() string
	Supports(entity any) bool
	Persist(ctx context.Context, entity any) (any, error)
	PersistOrUpdate(ctx context.Context, entity any) (any, error)
}

// TelemetrySink receives the named event hooks emitted by the step engine,
// aspect-expanded side-effect steps, and the cache policy engine. All
// methods must be safe for concurrent use; the core never serializes
// calls into the sink.
type TelemetrySink interface {
	StepStart(ctx context.Context, step string, attempt int)
	StepItem(ctx context.Context, step string)
	StepRetry(ctx context.Context, step string, attempt int, wait, cause string)
	StepFailure(ctx context.Context, step string, attempt int, cause string)
	StepComplete(ctx context.Context, step string, attempts int, failed bool)
	BufferDepth(ctx context.Context, step string, depth, capacity int)
	CacheHit(ctx context.Context, step, key string)
	CacheMiss(ctx context.Context, step, key string)
}

// NoOpTelemetrySink discards every event. Used when a pipeline is composed
// without an explicit TelemetrySink.
type NoOpTelemetrySink struct{}

func (NoOpTelemetrySink) StepStart(ctx context.Context, step string, attempt int)          {}
func (NoOpTelemetrySink) StepItem(ctx context.Context, step string)                        {}
func (NoOpTelemetrySink) StepRetry(ctx context.Context, step string, attempt int, wait, cause string) {
}
func (NoOpTelemetrySink) StepFailure(ctx context.Context, step string, attempt int, cause string) {}
func (NoOpTelemetrySink) StepComplete(ctx context.Context, step string, attempts int, failed bool) {
}
func (NoOpTelemetrySink) BufferDepth(ctx context.Context, step string, depth, capacity int) {}
func (NoOpTelemetrySink) CacheHit(ctx context.Context, step, key string)                    {}
func (NoOpTelemetrySink) CacheMiss(ctx context.Context, step, key string)                   {}

// MetricsTelemetrySink adapts the core MetricsRegistry weak-coupling pattern
// into a TelemetrySink, so a pipeline composed without its own sink still
// reports into whatever metrics backend the telemetry module registered.
type MetricsTelemetrySink struct{}

func (MetricsTelemetrySink) StepStart(ctx context.Context, step string, attempt int) {
	emitMetricWithContext(ctx, MetricStepExecutions, 1, "step", step)
}

func (MetricsTelemetrySink) StepItem(ctx context.Context, step string) {
	emitMetricWithContext(ctx, MetricPipelineStepSuccess, 1, "step", step)
}

func (MetricsTelemetrySink) StepRetry(ctx context.Context, step string, attempt int, wait, cause string) {
	emitMetricWithContext(ctx, MetricStepRetries, 1, "step", step)
}

func (MetricsTelemetrySink) StepFailure(ctx context.Context, step string, attempt int, cause string) {
	emitMetricWithContext(ctx, MetricStepErrors, 1, "step", step)
	emitMetricWithContext(ctx, MetricPipelineStepFailure, 1, "step", step)
}

func (MetricsTelemetrySink) StepComplete(ctx context.Context, step string, attempts int, failed bool) {
	status := "success"
	if failed {
		status = "failure"
	}
	emitMetricWithContext(ctx, MetricPipelineExecutions, 1, "step", step, "status", status)
}

func (MetricsTelemetrySink) BufferDepth(ctx context.Context, step string, depth, capacity int) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.Gauge(MetricBackpressureQueueDepth, float64(depth), "step", step)
	}
}

func (MetricsTelemetrySink) CacheHit(ctx context.Context, step, key string) {
	emitMetricWithContext(ctx, MetricCacheHits, 1, "step", step)
}

func (MetricsTelemetrySink) CacheMiss(ctx context.Context, step, key string) {
	emitMetricWithContext(ctx, MetricCacheMisses, 1, "step", step)
}
