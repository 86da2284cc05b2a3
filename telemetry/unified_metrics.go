// Package telemetry provides unified metrics infrastructure for the reactorpipe runtime.
//
// This file defines the unified metrics contract that enables consistent observability
// across all runtime components (step engine, cache policy engine, composer). Using
// these unified metrics ensures that dashboards and queries work regardless of which
// component emitted them.
//
// Usage:
//
//	// In the step engine
//	telemetry.RecordExecution(telemetry.ModuleStep, "enrich", durationMs, "success")
//
//	// In the composer's pipeline runner
//	telemetry.RecordExecution(telemetry.ModuleComposer, "checkout-pipeline", durationMs, "success")
//
// Both emit the same metric (execution.duration_ms, execution.total) with a "module"
// label that identifies the source, enabling unified dashboard queries.
package telemetry

// Module label values for identifying metric sources.
// These are used as the "module" label value in unified metrics.
const (
	// ModuleStep identifies metrics from the step engine
	ModuleStep = "step"

	// ModuleCache identifies metrics from the cache policy engine
	ModuleCache = "cache"

	// ModuleComposer identifies metrics from the pipeline composer/runner
	ModuleComposer = "composer"
)

// Unified metric names - use these constants to ensure consistent naming.
// All components should emit metrics using these names with appropriate module labels.
// Note: These are distinct from the step/cache-specific metrics in metrics.go
const (
	// Execution metrics - for any unit of work (a step, a pipeline run)
	UnifiedExecutionDuration = "execution.duration_ms"
	UnifiedExecutionTotal    = "execution.total"
	UnifiedExecutionErrors   = "execution.errors"

	// Remote call metrics - for the Remote Step Invoker used by cache misses
	UnifiedRemoteCallDuration = "remote_call.duration_ms"
	UnifiedRemoteCallTotal    = "remote_call.total"
	UnifiedRemoteCallRetries  = "remote_call.retries"
)

// RecordExecution records unified execution metrics with proper module labeling.
// This should be called at the end of any step or pipeline run.
func RecordExecution(module string, operation string, durationMs float64, status string) {
	Histogram(UnifiedExecutionDuration, durationMs,
		"module", module,
		"operation", operation,
		"status", status,
	)
	Counter(UnifiedExecutionTotal,
		"module", module,
		"operation", operation,
		"status", status,
	)
}

// RecordExecutionError records an execution error with error type classification.
func RecordExecutionError(module string, operation string, errorType string) {
	Counter(UnifiedExecutionErrors,
		"module", module,
		"operation", operation,
		"error_type", errorType,
	)
}

// RecordRemoteCall records remote step invocation metrics, emitted around the
// RemoteFunc a cache miss falls through to.
func RecordRemoteCall(module string, target string, durationMs float64, status string) {
	Histogram(UnifiedRemoteCallDuration, durationMs,
		"module", module,
		"target", target,
		"status", status,
	)
	Counter(UnifiedRemoteCallTotal,
		"module", module,
		"target", target,
		"status", status,
	)
}

// RecordRemoteCallRetry records a remote call retry attempt.
func RecordRemoteCallRetry(module string, target string) {
	Counter(UnifiedRemoteCallRetries,
		"module", module,
		"target", target,
	)
}

// init declares the unified metrics with appropriate types and buckets.
// This ensures metrics are pre-registered with the correct configuration.
func init() {
	DeclareMetrics("unified", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:    UnifiedExecutionDuration,
				Type:    "histogram",
				Help:    "Execution duration in milliseconds",
				Labels:  []string{"module", "operation", "status"},
				Unit:    "ms",
				Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
			},
			{
				Name:   UnifiedExecutionTotal,
				Type:   "counter",
				Help:   "Total executions",
				Labels: []string{"module", "operation", "status"},
			},
			{
				Name:   UnifiedExecutionErrors,
				Type:   "counter",
				Help:   "Execution errors by type",
				Labels: []string{"module", "operation", "error_type"},
			},
			{
				Name:    UnifiedRemoteCallDuration,
				Type:    "histogram",
				Help:    "Remote step invocation duration in milliseconds",
				Labels:  []string{"module", "target", "status"},
				Unit:    "ms",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000},
			},
			{
				Name:   UnifiedRemoteCallTotal,
				Type:   "counter",
				Help:   "Total remote step invocations",
				Labels: []string{"module", "target", "status"},
			},
			{
				Name:   UnifiedRemoteCallRetries,
				Type:   "counter",
				Help:   "Remote step invocation retry attempts",
				Labels: []string{"module", "target"},
			},
		},
	})
}
