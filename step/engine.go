package step

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowcraft/reactorpipe/core"
	"github.com/flowcraft/reactorpipe/resilience"
)

// Engine wraps a Step with the uniform retry/backpressure/DLQ/telemetry
// behaviour described in §4.1. One Engine per composed step; engines are
// folded together by the composer package into a single pipeline.
type Engine struct {
	step *Step
	sink core.TelemetrySink

	// Mode and MaxConcurrency resolve this step's merge strategy per §4.7;
	// the composer sets these from the pipeline-level parallelism policy.
	Mode           Mode
	MaxConcurrency int
}

// NewEngine builds an Engine for step, reporting events on sink. A nil sink
// falls back to core.NoOpTelemetrySink.
func NewEngine(s *Step, sink core.TelemetrySink) *Engine {
	if sink == nil {
		sink = core.NoOpTelemetrySink{}
	}
	return &Engine{step: s, sink: sink, Mode: Sequential, MaxConcurrency: 1}
}

func (e *Engine) retryConfig() *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:   e.step.Config.RetryLimit + 1, // first call is attempt 1
		RetryWait:     e.step.Config.RetryWait,
		MaxBackoff:    e.step.Config.MaxBackoff,
		JitterEnabled: e.step.Config.Jitter,
	}
}

// runWithRetry invokes fn, retrying per the step's Config using the
// canonical resilience.ComputeBackoff formula, classifying failures via
// resilience.IsRetryable, and emitting step-retry/step-failure telemetry.
// It returns the final error (nil on success) and the attempt count.
func (e *Engine) runWithRetry(ctx context.Context, fn func() error) (err error, attempts int) {
	cfg := e.retryConfig()
	e.sink.StepStart(ctx, e.step.Name, 1)

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err(), attempt - 1
		default:
		}

		err = fn()
		attempts = attempt
		if err == nil {
			e.sink.StepComplete(ctx, e.step.Name, attempts, false)
			return nil, attempts
		}

		if !resilience.IsRetryable(err) {
			e.sink.StepFailure(ctx, e.step.Name, attempt, err.Error())
			e.sink.StepComplete(ctx, e.step.Name, attempts, true)
			return err, attempts
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		wait := resilience.ComputeBackoff(attempt, cfg)
		e.sink.StepRetry(ctx, e.step.Name, attempt, wait.String(), err.Error())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err(), attempts
		case <-timer.C:
		}
	}

	e.sink.StepFailure(ctx, e.step.Name, attempts, err.Error())
	e.sink.StepComplete(ctx, e.step.Name, attempts, true)
	return fmt.Errorf("step %q exhausted %d attempts: %w", e.step.Name, attempts, core.ErrMaxRetriesExceeded), attempts
}

// recover applies the step's DLQ policy once retries are exhausted. ok is
// true when the lineage continues (either success, or a DLQ replacement was
// produced); ok is false when the failure must propagate.
func (e *Engine) recover(ctx context.Context, original any, cause error) (value any, ok bool) {
	if !e.step.Config.RecoverOnFailure {
		return nil, false
	}
	if e.step.DeadLetter == nil {
		return original, true
	}
	replacement, produced := e.step.DeadLetter(ctx, original, cause)
	if !produced {
		return nil, true // DLQ recorded, nothing to re-emit
	}
	return replacement, true
}

// Run drives in through this step according to its Shape, returning the
// downstream item stream. The returned channel is closed once in is
// exhausted and every in-flight item has been processed or cancelled.
func (e *Engine) Run(ctx context.Context, in <-chan Item) <-chan Item {
	switch e.step.Shape {
	case OneToOne:
		return e.runOneToOne(ctx, in)
	case SideEffect:
		return e.runSideEffect(ctx, in)
	case OneToMany, ManyToMany:
		return e.runSubStream(ctx, in)
	case ManyToOne:
		return e.runBatch(ctx, in)
	default:
		out := make(chan Item)
		close(out)
		return out
	}
}

func (e *Engine) runOneToOne(ctx context.Context, in <-chan Item) <-chan Item {
	concurrency, _ := ResolveConcurrency(e.Mode, e.step.Config.Ordering, e.step.Config.ThreadSafety, e.MaxConcurrency)
	out := make(chan Item, e.step.Config.BPCapacity)

	process := func(it Item) (Item, bool) {
		if it.Err != nil {
			return it, true // lineage already failed upstream
		}
		itemCtx := it.Context(ctx)
		recordCtx, readResult := core.WithResultRecorder(itemCtx)

		var result any
		err, attempts := e.runWithRetry(recordCtx, func() error {
			var callErr error
			result, callErr = e.step.OneToOne(recordCtx, it.Value)
			return callErr
		})

		outCtx := itemCtx
		if recorded := readResult(); len(recorded) > 0 {
			labels := make([]string, 0, len(recorded)*2)
			for k, v := range recorded {
				labels = append(labels, k, v)
			}
			outCtx = core.WithPipelineMetadata(itemCtx, labels...)
		}

		if err != nil {
			if replacement, ok := e.recover(outCtx, it.Value, err); ok {
				if replacement == nil {
					return Item{}, false // DLQ absorbed, nothing to emit
				}
				return Item{Value: replacement, Attempts: attempts, Ctx: outCtx}, true
			}
			return Item{Err: err, Attempts: attempts, Ctx: outCtx}, true
		}
		e.sink.StepItem(outCtx, e.step.Name)
		return Item{Value: result, Attempts: attempts, Ctx: outCtx}, true
	}

	if concurrency <= 1 {
		go func() {
			defer close(out)
			for it := range in {
				result, emit := process(it)
				if !emit {
					continue
				}
				select {
				case out <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out
	}

	go func() {
		defer close(out)
		sem := make(chan struct{}, concurrency)
		var wg sync.WaitGroup
		for it := range in {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			wg.Add(1)
			go func(it Item) {
				defer wg.Done()
				defer func() { <-sem }()
				result, emit := process(it)
				if !emit {
					return
				}
				select {
				case out <- result:
				case <-ctx.Done():
				}
			}(it)
		}
		wg.Wait()
	}()
	return out
}

func (e *Engine) runSideEffect(ctx context.Context, in <-chan Item) <-chan Item {
	out := make(chan Item, e.step.Config.BPCapacity)
	go func() {
		defer close(out)
		for it := range in {
			if it.Err != nil {
				select {
				case out <- it:
				case <-ctx.Done():
					return
				}
				continue
			}

			itemCtx := it.Context(ctx)
			err, attempts := e.runWithRetry(itemCtx, func() error {
				return e.step.SideEffect(itemCtx, it.Value)
			})

			result := Item{Value: it.Value, Attempts: attempts, Ctx: itemCtx}
			if err != nil {
				if _, ok := e.recover(itemCtx, it.Value, err); !ok {
					result = Item{Err: err, Attempts: attempts, Ctx: itemCtx}
				}
			} else {
				e.sink.StepItem(itemCtx, e.step.Name)
			}

			select {
			case out <- result:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (e *Engine) runSubStream(ctx context.Context, in <-chan Item) <-chan Item {
	buf := NewBuffer(e.step.Config.BPCapacity, e.step.Config.BPStrategy, func(depth, capacity int) {
		e.sink.BufferDepth(ctx, e.step.Name, depth, capacity)
	})
	out := make(chan Item, e.step.Config.BPCapacity)

	go func() {
		defer close(out)

		go func() {
			defer buf.Close()
			for it := range in {
				if it.Err != nil {
					select {
					case out <- it:
					case <-ctx.Done():
						return
					}
					continue
				}

				var sub <-chan any
				err, attempts := e.runWithRetry(ctx, func() error {
					var callErr error
					sub, callErr = e.step.SubStream(ctx, it.Value)
					return callErr
				})
				if err != nil {
					if replacement, ok := e.recover(ctx, it.Value, err); ok {
						if replacement != nil {
							select {
							case out <- Item{Value: replacement, Attempts: attempts}:
							case <-ctx.Done():
								return
							}
						}
						continue
					}
					select {
					case out <- Item{Err: err, Attempts: attempts}:
					case <-ctx.Done():
						return
					}
					continue
				}

				for v := range sub {
					sent, dropped, sendErr := buf.Send(ctx, Item{Value: v, Attempts: attempts})
					if sendErr != nil {
						return
					}
					if sent || dropped {
						e.sink.StepItem(ctx, e.step.Name)
					}
				}
			}
		}()

		for v := range buf.Out() {
			item := v.(Item)
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (e *Engine) runBatch(ctx context.Context, in <-chan Item) <-chan Item {
	out := make(chan Item, e.step.Config.BPCapacity)

	go func() {
		defer close(out)

		batch := make([]any, 0, e.step.Config.BatchSize)
		timer := time.NewTimer(e.step.Config.BatchTimeout)
		defer timer.Stop()

		flush := func() bool {
			if len(batch) == 0 {
				return true
			}
			items := batch
			batch = make([]any, 0, e.step.Config.BatchSize)

			var result any
			err, attempts := e.runWithRetry(ctx, func() error {
				var callErr error
				result, callErr = e.step.Batch(ctx, items)
				return callErr
			})

			var outItem Item
			if err != nil {
				if replacement, ok := e.recover(ctx, items, err); ok {
					if replacement == nil {
						return true
					}
					outItem = Item{Value: replacement, Attempts: attempts}
				} else {
					outItem = Item{Err: err, Attempts: attempts}
				}
			} else {
				e.sink.StepItem(ctx, e.step.Name)
				outItem = Item{Value: result, Attempts: attempts}
			}

			select {
			case out <- outItem:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case it, open := <-in:
				if !open {
					flush()
					return
				}
				if it.Err != nil {
					select {
					case out <- it:
					case <-ctx.Done():
						return
					}
					continue
				}
				batch = append(batch, it.Value)
				if len(batch) >= e.step.Config.BatchSize {
					if !flush() {
						return
					}
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(e.step.Config.BatchTimeout)
				}
			case <-timer.C:
				if !flush() {
					return
				}
				timer.Reset(e.step.Config.BatchTimeout)
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
