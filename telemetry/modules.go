package telemetry

// This file contains metric declarations for all modules
// It's in the telemetry package to avoid import cycles

func init() {
	// Step engine metrics
	DeclareMetrics("step", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   MetricStepExecutions,
				Type:   "counter",
				Help:   "Step execution count",
				Labels: []string{"step", "shape"},
			},
			{
				Name:    MetricStepDuration + "_ms",
				Type:    "histogram",
				Help:    "Step execution duration in milliseconds",
				Labels:  []string{"step", "shape", "status"},
				Unit:    "ms",
				Buckets: []float64{1, 10, 100, 1000, 10000},
			},
			{
				Name:   MetricStepErrors,
				Type:   "counter",
				Help:   "Step execution errors",
				Labels: []string{"step", "error_type"},
			},
			{
				Name:   "pipeline.step.retries",
				Type:   "counter",
				Help:   "Retry attempts issued by the step engine",
				Labels: []string{"step", "classification"},
			},
		},
	})

	// Cache policy engine metrics
	DeclareMetrics("cache", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   MetricCacheHits,
				Type:   "counter",
				Help:   "Cache hits",
				Labels: []string{"step", "policy"},
			},
			{
				Name:   MetricCacheMisses,
				Type:   "counter",
				Help:   "Cache misses",
				Labels: []string{"step", "policy"},
			},
			{
				Name:   "pipeline.cache.writes",
				Type:   "counter",
				Help:   "Cache write-through attempts",
				Labels: []string{"step", "result"},
			},
		},
	})

	// Backpressure buffer metrics
	DeclareMetrics("backpressure", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   MetricBackpressureQueueDepth,
				Type:   "gauge",
				Help:   "Items currently buffered ahead of a stage",
				Labels: []string{"step"},
			},
			{
				Name:   MetricBackpressureDropped,
				Type:   "counter",
				Help:   "Items dropped by a DROP-strategy buffer",
				Labels: []string{"step", "strategy"},
			},
		},
	})

	// Pipeline composer/runner metrics
	DeclareMetrics("pipeline", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   MetricPipelineExecutions,
				Type:   "counter",
				Help:   "Pipeline runs started",
				Labels: []string{"pipeline"},
			},
			{
				Name:    MetricPipelineDuration + "_ms",
				Type:    "histogram",
				Help:    "End-to-end pipeline run duration",
				Labels:  []string{"pipeline", "status"},
				Unit:    "ms",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000},
			},
			{
				Name:   "pipeline.run.dependency_health",
				Type:   "gauge",
				Help:   "Startup dependency health (0=down, 1=up)",
				Labels: []string{"dependency"},
			},
		},
	})
}
