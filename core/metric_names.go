package core

// Metric name constants shared by every TelemetrySink implementation and by
// the telemetry package's metric declarations. They live here, rather than
// in telemetry, because telemetry already imports core (SetMetricsRegistry);
// core importing telemetry back would cycle. telemetry.Metric* constants
// alias these so callers can keep spelling them either way.
const (
	// Step engine metrics
	MetricStepExecutions = "pipeline.step.executions"
	MetricStepDuration    = "pipeline.step.duration"
	MetricStepErrors      = "pipeline.step.errors"
	MetricStepRetries     = "pipeline.step.retries"

	// Cache policy metrics
	MetricCacheHits   = "pipeline.cache.hits"
	MetricCacheMisses = "pipeline.cache.misses"

	// Backpressure metrics
	MetricBackpressureQueueDepth = "pipeline.backpressure.queue_depth"
	MetricBackpressureDropped    = "pipeline.backpressure.dropped"

	// Pipeline run metrics
	MetricPipelineExecutions  = "pipeline.run.executions"
	MetricPipelineDuration    = "pipeline.run.duration"
	MetricPipelineStepSuccess = "pipeline.run.step.success"
	MetricPipelineStepFailure = "pipeline.run.step.failure"
)
