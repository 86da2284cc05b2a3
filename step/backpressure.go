package step

import "context"

// Buffer is a bounded channel sitting between a producer and a possibly
// slower consumer, instrumented with a queue-depth callback (§4 Backpressure
// Buffer). Under Buffer strategy, Send blocks until a slot frees or ctx is
// cancelled. Under Drop strategy, Send discards the item immediately when
// the buffer is full, reporting the drop to the caller so it can be counted
// in telemetry.
type Buffer struct {
	ch       chan any
	strategy BackpressureStrategy
	onDepth  func(depth, capacity int)
}

// NewBuffer allocates a Buffer of the given capacity and strategy. onDepth,
// if non-nil, is invoked after every successful send with the buffer's
// current length.
func NewBuffer(capacity int, strategy BackpressureStrategy, onDepth func(depth, capacity int)) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{
		ch:       make(chan any, capacity),
		strategy: strategy,
		onDepth:  onDepth,
	}
}

// Send delivers item to the buffer. It returns (sent=true) when the item was
// enqueued, (sent=false, dropped=true) when Drop strategy discarded it, and
// a non-nil error only when ctx is cancelled while a Buffer-strategy send is
// suspended.
func (b *Buffer) Send(ctx context.Context, item any) (sent bool, dropped bool, err error) {
	switch b.strategy {
	case Drop:
		select {
		case b.ch <- item:
			b.reportDepth()
			return true, false, nil
		default:
			return false, true, nil
		}
	default: // Buffer
		select {
		case b.ch <- item:
			b.reportDepth()
			return true, false, nil
		case <-ctx.Done():
			return false, false, ctx.Err()
		}
	}
}

// Close signals no further items will be sent.
func (b *Buffer) Close() {
	close(b.ch)
}

// Out exposes the receive side of the buffer.
func (b *Buffer) Out() <-chan any {
	return b.ch
}

func (b *Buffer) reportDepth() {
	if b.onDepth != nil {
		b.onDepth(len(b.ch), cap(b.ch))
	}
}
