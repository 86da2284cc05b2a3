// Command example wires a small end-to-end pipeline: two OneToOne steps, an
// audit aspect inserted after each step, and a cache policy engine guarding
// the second step's simulated remote call. It demonstrates composing,
// health-gating, and running a pipeline the way a service built on this
// runtime would.
package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/flowcraft/reactorpipe/aspect"
	"github.com/flowcraft/reactorpipe/cachepolicy"
	"github.com/flowcraft/reactorpipe/composer"
	"github.com/flowcraft/reactorpipe/core"
	"github.com/flowcraft/reactorpipe/step"
	"github.com/flowcraft/reactorpipe/telemetry"
)

func main() {
	cfg, err := core.NewConfig(
		core.WithName("example-pipeline"),
		core.WithMaxConcurrency(32),
		core.WithHealthPolling(50*time.Millisecond, 5*time.Second),
	)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Wires core.MetricsTelemetrySink through to a real exporter: Initialize
	// registers a telemetry-backed core.MetricsRegistry (EnableFrameworkIntegration)
	// so every MetricsTelemetrySink event below actually leaves the process instead
	// of finding globalMetricsRegistry nil and discarding the metric.
	telemetryCfg := telemetry.UseProfile(telemetry.ProfileDevelopment).WithOverrides(telemetry.Config{
		ServiceName: cfg.Name,
	})
	if err := telemetry.Initialize(telemetryCfg); err != nil {
		cfg.Logger().Warn("telemetry disabled: exporter unavailable", map[string]interface{}{"error": err.Error()})
	}

	cache := cachepolicy.NewInMemoryBackend()
	keyRegistry := cachepolicy.NewRegistry()
	keyRegistry.Register(cachepolicy.KeyStrategyFunc{
		Prio: 10,
		Fn: func(ctx context.Context, item any) string {
			s, ok := item.(string)
			if !ok || s == "" {
				return ""
			}
			return "order:" + s
		},
	})
	cacheEngine := cachepolicy.NewEngine("enrich", cache, keyRegistry, core.MetricsTelemetrySink{})

	registry := composer.NewRegistry()

	validate := step.New("validate", step.OneToOne, step.DefaultConfig())
	validate.OneToOne = func(ctx context.Context, in any) (any, error) {
		s, ok := in.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("validate: empty input")
		}
		return strings.ToUpper(s) + "!", nil
	}
	if err := registry.Register(validate); err != nil {
		log.Fatalf("register validate: %v", err)
	}

	enrich := step.New("enrich", step.OneToOne, step.DefaultConfig())
	enrich.OneToOne = func(ctx context.Context, in any) (any, error) {
		remote := func(ctx context.Context, item any) (any, error) {
			// Stands in for a call through a RemoteStepInvoker.
			return item.(string) + "#enriched", nil
		}
		result, status, err := cacheEngine.Execute(ctx, in, cachepolicy.Directive{
			Policy: cachepolicy.PreferCache,
			TTL:    60,
		}, remote)
		if err != nil {
			return nil, err
		}
		cfg.Logger().Debug("cache lookup", map[string]interface{}{"status": string(status)})
		return result, nil
	}
	if err := registry.Register(enrich); err != nil {
		log.Fatalf("register enrich: %v", err)
	}

	auditAspect := aspect.Aspect{
		Name:     "audit",
		Enabled:  true,
		Scope:    aspect.Global,
		Position: aspect.AfterStep,
		Order:    0,
	}

	pipeline, err := composer.NewBuilder(registry).
		WithOrder("validate", "enrich").
		WithAspects(auditAspect).
		WithAspectHandler("audit", func(ctx context.Context, in any, a aspect.Aspect) error {
			cfg.Logger().Info("audit", map[string]interface{}{"value": in})
			return nil
		}).
		WithParallelism(cfg.Parallelism).
		WithTelemetry(core.MetricsTelemetrySink{}).
		Compose()
	if err != nil {
		log.Fatalf("compose: %v", err)
	}

	poller := composer.NewHealthPoller([]composer.DependencyChecker{
		composer.DependencyCheckerFunc{
			NameStr: "cache",
			Fn: func(ctx context.Context) core.DependencyStatus {
				return core.DependencyHealthy
			},
		},
	}, cfg.Health)

	ctx := context.Background()
	if err := poller.Await(ctx); err != nil {
		log.Fatalf("startup health: %v", err)
	}

	ctx = core.WithPipelineMetadata(ctx, core.MetaVersionTag, "v1")

	in := make(chan any, 3)
	in <- "a"
	in <- "b"
	in <- "c"
	close(in)

	out := pipeline.RunStreamStream(ctx, in)
	values, errs := step.Values(out)
	for _, e := range errs {
		cfg.Logger().Error("pipeline item failed", map[string]interface{}{"error": e.Error()})
	}
	fmt.Println(values)
}
