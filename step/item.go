package step

import "context"

// Item is one element flowing through a composed pipeline. Err is set when
// this item's lineage has failed terminally (retries exhausted, not
// recovered); a non-nil Err on an Item does not close the stream - by
// default only that item's own lineage is aborted (§7 propagation policy).
// Attempts records how many times the owning step's process function was
// invoked for this item, for telemetry and tests.
//
// Ctx, when set, carries this item's own pipeline metadata (e.g. a cache
// policy decision recorded by an earlier stage, core.MetaCacheStatus)
// forward to the next stage's invocation. A step that has nothing to add
// leaves it nil and the engine falls back to the Run-level context.
type Item struct {
	Value    any
	Err      error
	Attempts int
	Ctx      context.Context
}

// Context returns it.Ctx if set, otherwise fallback. Every stage resolves
// its per-call context this way so a cache-aspect-wrapped step earlier in
// the pipeline can thread a status forward without every stage needing to
// know about cache policy.
func (it Item) Context(fallback context.Context) context.Context {
	if it.Ctx != nil {
		return it.Ctx
	}
	return fallback
}

// Values drains a channel of Items until it closes, collecting successful
// values and the errors of failed items into separate slices. It never
// stops early on a failed item.
func Values(in <-chan Item) (values []any, errs []error) {
	for it := range in {
		if it.Err != nil {
			errs = append(errs, it.Err)
			continue
		}
		values = append(values, it.Value)
	}
	return values, errs
}
