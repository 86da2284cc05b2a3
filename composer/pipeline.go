package composer

import (
	"context"
	"fmt"
	"reflect"

	"github.com/flowcraft/reactorpipe/aspect"
	"github.com/flowcraft/reactorpipe/cachepolicy"
	"github.com/flowcraft/reactorpipe/core"
	"github.com/flowcraft/reactorpipe/step"
)

// AspectHandler implements one aspect's synthetic side-effect step (§4.2):
// it runs for its side effect only, against the value flowing through the
// anchor position, and never changes that value.
type AspectHandler func(ctx context.Context, in any, a aspect.Aspect) error

// Pipeline is a composed, ready-to-run sequence of step engines folded from
// an effective step order.
type Pipeline struct {
	stages []*step.Engine
}

// Builder assembles a Pipeline from a step registry, a declared order, and
// an aspect set, following the global -> per-step -> aspect-declared
// override precedence (§9 design notes).
type Builder struct {
	registry   *Registry
	order      []string
	aspects    []aspect.Aspect
	types      map[string]aspect.StepTypes
	formatter  aspect.Formatter
	handlers   map[string]AspectHandler
	mode       step.Mode
	maxConc    int
	sink       core.TelemetrySink
	overrides  map[string]step.Override
	aspectOver map[string]step.Override

	// cacheEngines/cacheDirectives hold the Cache Policy Engine wiring for
	// steps whose "cache" aspect Compose must route through it (§4.2 special
	// case), keyed by step name.
	cacheEngines    map[string]*cachepolicy.Engine
	cacheDirectives map[string]cachepolicy.Directive
}

// NewBuilder starts a pipeline build against registry.
func NewBuilder(registry *Registry) *Builder {
	return &Builder{
		registry:        registry,
		types:           make(map[string]aspect.StepTypes),
		handlers:        make(map[string]AspectHandler),
		formatter:       aspect.DefaultFormatter,
		mode:            step.Sequential,
		maxConc:         core.DefaultMaxConcurrency,
		sink:            core.NoOpTelemetrySink{},
		overrides:       make(map[string]step.Override),
		aspectOver:      make(map[string]step.Override),
		cacheEngines:    make(map[string]*cachepolicy.Engine),
		cacheDirectives: make(map[string]cachepolicy.Directive),
	}
}

// WithOrder sets the declared step order (by registry name).
func (b *Builder) WithOrder(order ...string) *Builder {
	b.order = order
	return b
}

// WithAspects sets the cross-cutting aspects to expand around the order.
func (b *Builder) WithAspects(aspects ...aspect.Aspect) *Builder {
	b.aspects = aspects
	return b
}

// WithAspectHandler registers the function that implements a named aspect's
// synthetic side-effect step. An aspect present in WithAspects without a
// matching handler composes as a no-op side effect.
func (b *Builder) WithAspectHandler(name string, handler AspectHandler) *Builder {
	b.handlers[name] = handler
	return b
}

// WithAspectOverride applies a per-aspect Config override to every synthetic
// step that aspect materialises, the outermost layer of the three-tier
// override precedence.
func (b *Builder) WithAspectOverride(aspectName string, override step.Override) *Builder {
	b.aspectOver[aspectName] = override
	return b
}

// WithStepOverride applies a per-step Config override on top of the
// pipeline defaults already baked into the registered step.
func (b *Builder) WithStepOverride(stepName string, override step.Override) *Builder {
	b.overrides[stepName] = override
	return b
}

// WithCacheEngine registers the Cache Policy Engine a "cache" aspect
// targeting stepName must route that step's invocation through (§4.2
// special case: a cache aspect is never expanded into a synthetic step;
// instead it marks the adjacent user step's own invocation). Compose fails
// if a step carries an enabled cache aspect with no matching engine.
func (b *Builder) WithCacheEngine(stepName string, engine *cachepolicy.Engine, directive cachepolicy.Directive) *Builder {
	b.cacheEngines[stepName] = engine
	b.cacheDirectives[stepName] = directive
	return b
}

// WithFormatter overrides the synthetic step naming formatter, typically to
// set a transport suffix.
func (b *Builder) WithFormatter(f aspect.Formatter) *Builder {
	b.formatter = f
	return b
}

// WithParallelism sets the pipeline-level parallelism policy (§4.7).
func (b *Builder) WithParallelism(cfg core.ParallelismConfig) *Builder {
	switch cfg.DefaultMode {
	case "sequential":
		b.mode = step.Sequential
	case "parallel":
		b.mode = step.Parallel
	default:
		b.mode = step.Auto
	}
	if cfg.MaxConcurrency > 0 {
		b.maxConc = cfg.MaxConcurrency
	}
	return b
}

// WithTelemetry sets the sink every stage reports events to.
func (b *Builder) WithTelemetry(sink core.TelemetrySink) *Builder {
	if sink != nil {
		b.sink = sink
	}
	return b
}

// Compose resolves the effective step order, validates neighbour type
// compatibility, and folds every effective step into a Pipeline.
func (b *Builder) Compose() (*Pipeline, error) {
	if len(b.order) == 0 {
		return nil, fmt.Errorf("pipeline has no declared steps: %w", core.ErrInvalidConfiguration)
	}

	for _, name := range b.order {
		s, ok := b.registry.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("step %q not found in registry: %w", name, core.ErrInvalidConfiguration)
		}
		b.types[name] = aspect.StepTypes{InType: typeName(s.InType), OutType: typeName(s.OutType)}
	}

	effective := aspect.Expand(b.order, b.aspects, b.types, b.formatter)

	stages := make([]*step.Engine, 0, len(effective))
	var prevOut string
	for i, entry := range effective {
		s, err := b.resolveStep(entry)
		if err != nil {
			return nil, err
		}
		if err := s.Config.Validate(); err != nil {
			return nil, fmt.Errorf("step %q: %w", s.Name, err)
		}

		if i > 0 {
			in := typeName(s.InType)
			if prevOut != "" && in != "" && prevOut != in {
				return nil, fmt.Errorf("neighbour type mismatch: step %q expects %q but previous step produces %q: %w",
					s.Name, in, prevOut, core.ErrInvalidConfiguration)
			}
		}
		prevOut = typeName(s.OutType)

		eng := step.NewEngine(s, b.sink)
		eng.Mode = b.mode
		eng.MaxConcurrency = b.maxConc
		stages = append(stages, eng)
	}

	return &Pipeline{stages: stages}, nil
}

// resolveStep returns the user-registered step for a plain entry, or
// synthesizes a SideEffect step wrapping the registered AspectHandler (or a
// no-op) for a synthetic entry.
func (b *Builder) resolveStep(entry aspect.EffectiveStep) (*step.Step, error) {
	if !entry.Synthetic {
		s, ok := b.registry.Lookup(entry.StepName)
		if !ok {
			return nil, fmt.Errorf("step %q not found in registry: %w", entry.StepName, core.ErrInvalidConfiguration)
		}
		if override, ok := b.overrides[entry.StepName]; ok {
			cfg := step.Merge(s.Config, override)
			merged := *s
			merged.Config = cfg
			s = &merged
		}
		if aspect.HasCacheAspect(b.aspects, entry.StepName) {
			return b.wrapWithCache(s, entry.StepName)
		}
		return s, nil
	}

	anchor, ok := b.registry.Lookup(entry.AnchorStep)
	if !ok {
		return nil, fmt.Errorf("aspect %q anchor step %q not found: %w", entry.Aspect.Name, entry.AnchorStep, core.ErrInvalidConfiguration)
	}

	cfg := step.DefaultConfig()
	cfg.RecoverOnFailure = entry.Aspect.RecoverOnFailure
	if override, ok := b.aspectOver[entry.Aspect.Name]; ok {
		cfg = step.Merge(cfg, override)
	}

	handler := b.handlers[entry.Aspect.Name]
	sideEffect := func(ctx context.Context, in any) error {
		if handler == nil {
			return nil
		}
		return handler(ctx, in, entry.Aspect)
	}

	var elemType any
	if entry.Position == aspect.AfterStep {
		elemType = anchor.OutType
	} else {
		elemType = anchor.InType
	}

	synthetic := step.New(entry.SyntheticName, step.SideEffect, cfg)
	synthetic.SideEffect = sideEffect
	synthetic.InType = elemType
	synthetic.OutType = elemType
	return synthetic, nil
}

// wrapWithCache routes s's one-to-one invocation through the Cache Policy
// Engine registered for stepName and records the resulting cache status on
// the item's context under core.MetaCacheStatus.
func (b *Builder) wrapWithCache(s *step.Step, stepName string) (*step.Step, error) {
	engine, ok := b.cacheEngines[stepName]
	if !ok || s.OneToOne == nil {
		return nil, fmt.Errorf("step %q carries a cache aspect but has no cache engine or one-to-one function: %w", stepName, core.ErrInvalidConfiguration)
	}
	directive, inner, wrapped := b.cacheDirectives[stepName], s.OneToOne, *s
	wrapped.OneToOne = func(ctx context.Context, in any) (any, error) {
		out, status, err := engine.Execute(ctx, in, directive, cachepolicy.RemoteFunc(inner))
		core.RecordResult(ctx, core.MetaCacheStatus, string(status))
		return out, err
	}
	return &wrapped, nil
}

func typeName(v any) string {
	if v == nil {
		return ""
	}
	return reflect.TypeOf(v).String()
}
