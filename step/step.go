package step

import "context"

// OneToOneFunc transforms a single input into a single output.
type OneToOneFunc func(ctx context.Context, in any) (any, error)

// SubStreamFunc produces a finite lazy sub-stream from a single input. It
// backs both OneToMany (per-item fan-out) and ManyToMany (stream-in,
// stream-out with backpressure but no batching) shapes: in both cases the
// engine calls the factory once per upstream item and pipes its sub-stream
// downstream through the same backpressure buffer. Retry applies to the
// factory call itself, never to items already emitted on the sub-stream.
type SubStreamFunc func(ctx context.Context, in any) (<-chan any, error)

// BatchFunc reduces a batch of upstream items, accumulated per
// (BatchSize, BatchTimeout), to a single output.
type BatchFunc func(ctx context.Context, batch []any) (any, error)

// SideEffectFunc runs for its side effect only. The engine always re-emits
// the original input downstream regardless of the function's return value,
// except when it fails and RecoverOnFailure is false.
type SideEffectFunc func(ctx context.Context, in any) error

// DeadLetterFunc produces a replacement item (or signals none with ok=false)
// once a step's retries are exhausted and RecoverOnFailure is true.
type DeadLetterFunc func(ctx context.Context, in any, cause error) (replacement any, ok bool)

// Step is a named, typed transformation of a declared cardinality shape
// participating in a pipeline (§3). A Step is constructed once and invoked
// many times through an Engine; it exclusively owns its Config.
type Step struct {
	Name   string
	Shape  Shape
	Config Config

	InType  any // zero value of the declared input type, used for neighbour validation
	OutType any // zero value of the declared output type

	OneToOne   OneToOneFunc
	SubStream  SubStreamFunc // OneToMany or ManyToMany
	Batch      BatchFunc     // ManyToOne
	SideEffect SideEffectFunc

	DeadLetter DeadLetterFunc
}

// New constructs a Step, defaulting Config to DefaultConfig() when the
// caller passes the zero value (BPCapacity == 0 is never valid, so it's a
// reliable "unset" sentinel).
func New(name string, shape Shape, cfg Config) *Step {
	if cfg.BPCapacity == 0 {
		cfg = DefaultConfig()
	}
	return &Step{Name: name, Shape: shape, Config: cfg}
}
