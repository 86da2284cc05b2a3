package aspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(steps []EffectiveStep) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Name()
	}
	return out
}

func TestExpandNoAspectsPassesThroughOrder(t *testing.T) {
	order := []string{"validate", "enrich"}
	result := Expand(order, nil, nil, DefaultFormatter)
	assert.Equal(t, []string{"validate", "enrich"}, names(result))
}

func TestExpandAfterStepOrderingLowestClosestToStep(t *testing.T) {
	order := []string{"A", "B"}
	aspects := []Aspect{
		{Name: "persistence", Enabled: true, Scope: Global, Position: AfterStep, Order: 0},
		{Name: "audit", Enabled: true, Scope: Global, Position: AfterStep, Order: 5},
	}
	types := map[string]StepTypes{
		"A": {InType: "Order", OutType: "Order"},
		"B": {InType: "Order", OutType: "Order"},
	}

	result := Expand(order, aspects, types, DefaultFormatter)
	got := names(result)

	require.Len(t, got, 6)
	assert.Equal(t, "A", got[0])
	assert.Equal(t, "PersistenceOrderSideEffectClientStep", got[1])
	assert.Equal(t, "AuditOrderSideEffectClientStep", got[2])
	assert.Equal(t, "B", got[3])
	assert.Equal(t, "PersistenceOrderSideEffectClientStep", got[4])
	assert.Equal(t, "AuditOrderSideEffectClientStep", got[5])
}

func TestExpandBeforeStepOrderingLowestClosestToStep(t *testing.T) {
	order := []string{"B"}
	aspects := []Aspect{
		{Name: "invalidateAll", Enabled: true, Scope: Steps, TargetSteps: []string{"B"}, Position: BeforeStep, Order: 0},
		{Name: "audit", Enabled: true, Scope: Steps, TargetSteps: []string{"B"}, Position: BeforeStep, Order: 5},
	}
	types := map[string]StepTypes{"B": {InType: "Order", OutType: "Order"}}

	result := Expand(order, aspects, types, DefaultFormatter)
	got := names(result)

	require.Len(t, got, 3)
	// Order 5 is "further" so it comes first in the BEFORE group; order 0
	// (closest) comes immediately before B.
	assert.Equal(t, "AuditOrderSideEffectClientStep", got[0])
	assert.Equal(t, "InvalidateAllOrderSideEffectClientStep", got[1])
	assert.Equal(t, "B", got[2])
}

func TestExpandCacheAspectNeverMaterialisesSyntheticStep(t *testing.T) {
	order := []string{"A"}
	aspects := []Aspect{
		{Name: "cache", Enabled: true, Scope: Global, Position: AfterStep, Order: 0},
	}
	result := Expand(order, aspects, nil, DefaultFormatter)
	assert.Equal(t, []string{"A"}, names(result))
	assert.True(t, HasCacheAspect(aspects, "A"))
}

func TestExpandDisabledAspectIgnored(t *testing.T) {
	order := []string{"A"}
	aspects := []Aspect{
		{Name: "audit", Enabled: false, Scope: Global, Position: AfterStep, Order: 0},
	}
	result := Expand(order, aspects, nil, DefaultFormatter)
	assert.Equal(t, []string{"A"}, names(result))
}

func TestExpandStepsScopeOnlyTargetsNamedSteps(t *testing.T) {
	order := []string{"A", "B"}
	aspects := []Aspect{
		{Name: "audit", Enabled: true, Scope: Steps, TargetSteps: []string{"B"}, Position: AfterStep, Order: 0},
	}
	result := Expand(order, aspects, nil, DefaultFormatter)
	got := names(result)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"A", "B", "AuditSideEffectClientStep"}, got)
}

func TestExpandIsIdempotent(t *testing.T) {
	order := []string{"A", "B"}
	aspects := []Aspect{
		{Name: "persistence", Enabled: true, Scope: Global, Position: AfterStep, Order: 0},
	}
	types := map[string]StepTypes{
		"A": {InType: "Order", OutType: "Order"},
		"B": {InType: "Order", OutType: "Order"},
	}

	first := Expand(order, aspects, types, DefaultFormatter)
	firstNames := names(first)

	second := Expand(firstNames, aspects, types, DefaultFormatter)
	assert.Equal(t, firstNames, names(second))
}

func TestFormatterPascalCasesHyphenatedNames(t *testing.T) {
	f := Formatter{}
	assert.Equal(t, "CacheInvalidateOrderSideEffectClientStep", f.Format("cache-invalidate", "Order"))
}
