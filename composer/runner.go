package composer

import (
	"context"
	"fmt"

	"github.com/flowcraft/reactorpipe/core"
	"github.com/flowcraft/reactorpipe/step"
)

// run folds every stage's Engine.Run in sequence, feeding stage i+1 from
// stage i's output channel, and returns the final stage's output.
func (p *Pipeline) run(ctx context.Context, in <-chan step.Item) <-chan step.Item {
	out := in
	for _, stage := range p.stages {
		out = stage.Run(ctx, out)
	}
	return out
}

func singleItemSource(value any) <-chan step.Item {
	ch := make(chan step.Item, 1)
	ch <- step.Item{Value: value}
	close(ch)
	return ch
}

func valueStreamSource(ctx context.Context, in <-chan any) <-chan step.Item {
	out := make(chan step.Item)
	go func() {
		defer close(out)
		for v := range in {
			select {
			case out <- step.Item{Value: v}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// RunUnaryUnary feeds a single input item through the pipeline and collects
// the single resulting output item. It fails if the pipeline produces zero
// or more than one item, since unary-unary composition requires the folded
// stages to reduce to exactly one result.
func (p *Pipeline) RunUnaryUnary(ctx context.Context, input any) (any, error) {
	out := p.run(ctx, singleItemSource(input))
	values, errs := step.Values(out)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unary-unary pipeline produced %d items, want 1: %w", len(values), core.ErrInvalidConfiguration)
	}
	return values[0], nil
}

// RunUnaryStream feeds a single input item through the pipeline and returns
// its lazy result stream, for pipelines ending in a OneToMany/ManyToMany stage.
func (p *Pipeline) RunUnaryStream(ctx context.Context, input any) <-chan step.Item {
	return p.run(ctx, singleItemSource(input))
}

// RunStreamUnary feeds a stream of input items through the pipeline and
// collects the single resulting output item, for pipelines ending in a
// ManyToOne (aggregating) stage.
func (p *Pipeline) RunStreamUnary(ctx context.Context, in <-chan any) (any, error) {
	out := p.run(ctx, valueStreamSource(ctx, in))
	values, errs := step.Values(out)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("stream-unary pipeline produced %d items, want 1: %w", len(values), core.ErrInvalidConfiguration)
	}
	return values[0], nil
}

// RunStreamStream feeds a stream of input items through the pipeline and
// returns its lazy result stream.
func (p *Pipeline) RunStreamStream(ctx context.Context, in <-chan any) <-chan step.Item {
	return p.run(ctx, valueStreamSource(ctx, in))
}
