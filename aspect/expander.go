package aspect

import (
	"fmt"
	"sort"
	"strings"
)

// StepTypes names the input and output element type of a declared user step,
// used only to derive a synthetic side-effect step's name (§4.2). The
// composer fills this in from the actual Go types it validated at
// registration time.
type StepTypes struct {
	InType  string
	OutType string
}

// EffectiveStep is one entry of the pipeline's effective order after
// expansion (§3): either a reference to a user-declared step, or a
// synthetic side-effect step materialising one aspect's observation of a
// position in the pipeline.
type EffectiveStep struct {
	// StepName is set for user steps; empty for synthetic ones.
	StepName string

	// Synthetic is true when this entry is an aspect-generated side-effect step.
	Synthetic bool

	// SyntheticName is the deterministic generated class-like name (§4.2),
	// set only when Synthetic is true.
	SyntheticName string

	// Aspect is the aspect that produced this entry when Synthetic is true.
	Aspect Aspect

	// AnchorStep is the user step this synthetic entry was inserted
	// relative to.
	AnchorStep string

	// Position is BeforeStep or AfterStep, set only when Synthetic is true.
	Position Position
}

// Name formats EffectiveStep for diagnostics and idempotence comparisons.
func (e EffectiveStep) Name() string {
	if e.Synthetic {
		return e.SyntheticName
	}
	return e.StepName
}

// Formatter derives a synthetic side-effect step's deterministic name from
// (aspect, element type, transport). Keeping naming in one formatter, used
// by both the expander and any test assertions, is what keeps build-time
// generation and runtime composition in agreement (§9 design notes).
type Formatter struct {
	// TransportSuffix is appended before "ClientStep". It is empty by
	// default because transport selection (gRPC/REST) is an external
	// adapter concern (§1 Deliberately out of scope); callers embedding a
	// specific transport set this explicitly.
	TransportSuffix string
}

// DefaultFormatter is used when Expand is called without an explicit one.
var DefaultFormatter = Formatter{}

// Format renders "<AspectPascal><ElementTypeName>SideEffect<TransportSuffix>ClientStep".
func (f Formatter) Format(aspectName, elementType string) string {
	return fmt.Sprintf("%s%sSideEffect%sClientStep", pascal(aspectName), pascal(elementType), f.TransportSuffix)
}

func pascal(s string) string {
	if s == "" {
		return ""
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '.'
	})
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	if b.Len() == 0 {
		b.WriteString(strings.ToUpper(s[:1]))
		b.WriteString(s[1:])
	}
	return b.String()
}

// Expand produces the effective ordered step list from a declared order and
// aspect set (§4.2). types supplies each user step's in/out type names for
// synthetic naming; a missing entry is treated as the empty string.
//
// Every targeted user step gets its own synthetic entries, so the same
// synthetic name can appear once per anchor. Expansion is idempotent:
// calling Expand again on its own output's step names reproduces the same
// list, because a name in order that the aspects would generate is passed
// through unexpanded, and a synthetic name already present in order is
// never re-inserted.
func Expand(order []string, aspects []Aspect, types map[string]StepTypes, formatter Formatter) []EffectiveStep {
	existing := make(map[string]bool, len(order))
	synthetic := make(map[string]bool)
	for _, name := range order {
		existing[name] = true
		for _, a := range aspects {
			if !a.isCache() {
				synthetic[formatter.Format(a.Name, types[name].InType)] = true
				synthetic[formatter.Format(a.Name, types[name].OutType)] = true
			}
		}
	}

	result := make([]EffectiveStep, 0, len(order)*2)

	for _, stepName := range order {
		if synthetic[stepName] {
			result = append(result, EffectiveStep{StepName: stepName})
			continue
		}
		t := types[stepName]

		before := matching(aspects, stepName, BeforeStep)
		// "lower order closer to S" for BEFORE means the BEFORE group is
		// emitted in descending Order, so the smallest Order ends up
		// immediately adjacent to S.
		sort.SliceStable(before, func(i, j int) bool {
			return before[i].idx.Order > before[j].idx.Order
		})
		for _, m := range before {
			if m.a.isCache() {
				continue // cache aspect never materialises a synthetic step
			}
			name := formatter.Format(m.a.Name, t.InType)
			if existing[name] {
				continue
			}
			result = append(result, EffectiveStep{
				Synthetic:     true,
				SyntheticName: name,
				Aspect:        m.a,
				AnchorStep:    stepName,
				Position:      BeforeStep,
			})
		}

		result = append(result, EffectiveStep{StepName: stepName})

		after := matching(aspects, stepName, AfterStep)
		// "lower order closer to S" for AFTER means ascending Order.
		sort.SliceStable(after, func(i, j int) bool {
			return after[i].idx.Order < after[j].idx.Order
		})
		for _, m := range after {
			if m.a.isCache() {
				continue
			}
			name := formatter.Format(m.a.Name, t.OutType)
			if existing[name] {
				continue
			}
			result = append(result, EffectiveStep{
				Synthetic:     true,
				SyntheticName: name,
				Aspect:        m.a,
				AnchorStep:    stepName,
				Position:      AfterStep,
			})
		}
	}

	return result
}

type match struct {
	a   Aspect
	idx Aspect // carries the original Aspect purely so Order is in scope for sort
}

// matching returns every aspect targeting stepName at position, stable-sorted
// by declaration order first so later sorts by Order only break remaining ties.
func matching(aspects []Aspect, stepName string, position Position) []match {
	var out []match
	for _, a := range aspects {
		if a.Position != position {
			continue
		}
		if !a.appliesTo(stepName) {
			continue
		}
		out = append(out, match{a: a, idx: a})
	}
	return out
}

// HasCacheAspect reports whether aspects contains an enabled cache aspect
// targeting stepName, the signal the composer uses to route that step's
// client invocation through the Cache Policy Engine instead of emitting a
// synthetic step (§4.2 special case).
func HasCacheAspect(aspects []Aspect, stepName string) bool {
	for _, a := range aspects {
		if a.isCache() && a.appliesTo(stepName) {
			return true
		}
	}
	return false
}
