// Package aspect implements the Aspect Expander (§4.2): given a declared
// step order and a set of cross-cutting aspects, it produces the effective
// ordered list of steps a pipeline actually runs, inserting synthetic
// side-effect steps at the declared BEFORE/AFTER positions.
package aspect

// Scope selects whether an aspect applies to every step in the pipeline or
// only to a named subset.
type Scope int

const (
	Global Scope = iota
	Steps
)

// Position selects whether an aspect's synthetic step is inserted before or
// after the step it targets.
type Position int

const (
	BeforeStep Position = iota
	AfterStep
)

func (p Position) String() string {
	if p == BeforeStep {
		return "BEFORE_STEP"
	}
	return "AFTER_STEP"
}

// Aspect is a cross-cutting concern declaratively attached around one or
// more steps (§3). Declaration order (the index an Aspect holds in the
// slice passed to Expand) breaks ties left after ordering by Order.
type Aspect struct {
	Name        string
	Enabled     bool
	Scope       Scope
	Position    Position
	Order       int32
	TargetSteps []string // only consulted when Scope == Steps
	Config      map[string]any

	// RecoverOnFailure determines whether this aspect's synthetic step
	// aborts the pipeline on failure or is DLQ'd, mirroring a user step's
	// Config.RecoverOnFailure (§4.2 failure-mode policy).
	RecoverOnFailure bool
}

// appliesTo reports whether a targets a given step name.
func (a Aspect) appliesTo(stepName string) bool {
	if !a.Enabled {
		return false
	}
	if a.Scope == Global {
		return true
	}
	for _, s := range a.TargetSteps {
		if s == stepName {
			return true
		}
	}
	return false
}

// isCache reports whether this aspect is the special-cased cache aspect,
// which is never expanded into a synthetic step; it instead marks the
// adjacent user step's client invocation to flow through the Cache Policy
// Engine (§4.2 special case).
func (a Aspect) isCache() bool {
	return a.Name == "cache"
}

// isInvalidate reports whether this aspect invalidates cache entries. Unlike
// the cache aspect, an invalidate aspect IS expanded to a synthetic step.
func (a Aspect) isInvalidate() bool {
	return a.Name == "cache-invalidate" || a.Name == "invalidate" || a.Name == "invalidateAll"
}
