// Package composer implements the Pipeline Composer & Runner (§4.6): it
// resolves a declared step order and aspect set against a step registry,
// validates neighbour type compatibility, folds the effective steps into a
// single stream pipeline via the step engine, and exposes the four runtime
// entry shapes plus startup dependency health polling.
package composer

import (
	"fmt"
	"sync"

	"github.com/flowcraft/reactorpipe/core"
	"github.com/flowcraft/reactorpipe/step"
)

// Registry is the process-wide, read-after-startup set of declared steps
// (§5 shared resources: "Step registry: built once at startup, then
// read-only"). Steps are looked up by name.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]*step.Step
}

// NewRegistry builds an empty step registry.
func NewRegistry() *Registry {
	return &Registry{steps: make(map[string]*step.Step)}
}

// Register adds s to the registry. It fails if a step with the same name is
// already registered, since the composer resolves steps by name at build
// time and a silent overwrite would be a configuration error (§7).
func (r *Registry) Register(s *step.Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.steps[s.Name]; exists {
		return fmt.Errorf("step %q already registered: %w", s.Name, core.ErrInvalidConfiguration)
	}
	r.steps[s.Name] = s
	return nil
}

// Lookup resolves a step by name.
func (r *Registry) Lookup(name string) (*step.Step, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.steps[name]
	return s, ok
}
