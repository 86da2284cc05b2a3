package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/flowcraft/reactorpipe/core"
)

// DependencyChecker reports the current startup health of one dependency a
// composed pipeline relies on (a remote step invoker, a cache backend, a
// persistence provider) (§4.6 startup sequence).
type DependencyChecker interface {
	Name() string
	CheckHealth(ctx context.Context) core.DependencyStatus
}

// DependencyCheckerFunc adapts a plain function to DependencyChecker.
type DependencyCheckerFunc struct {
	NameStr string
	Fn      func(ctx context.Context) core.DependencyStatus
}

func (f DependencyCheckerFunc) Name() string { return f.NameStr }
func (f DependencyCheckerFunc) CheckHealth(ctx context.Context) core.DependencyStatus {
	return f.Fn(ctx)
}

// DependencyState is one dependency's last observed status, exposed through
// the readiness probe (§6 "body includes the per-dependency state and the
// first error message if any").
type DependencyState struct {
	Status core.DependencyStatus `json:"status"`
	Error  string                `json:"error,omitempty"`
}

// HealthPoller polls a set of DependencyCheckers until all report HEALTHY,
// one reports UNHEALTHY definitively, or the global poll timeout elapses
// (§4.6, §5.4).
type HealthPoller struct {
	checkers []DependencyChecker
	interval time.Duration
	timeout  time.Duration

	mu     sync.RWMutex
	states map[string]DependencyState
}

// NewHealthPoller builds a poller over checkers using cfg's interval and
// timeout, falling back to the §5.4 defaults when cfg leaves them unset.
func NewHealthPoller(checkers []DependencyChecker, cfg core.HealthConfig) *HealthPoller {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = core.DefaultHealthPollInterval
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = core.DefaultHealthPollTimeout
	}

	states := make(map[string]DependencyState, len(checkers))
	for _, c := range checkers {
		states[c.Name()] = DependencyState{Status: core.DependencyPending}
	}

	return &HealthPoller{checkers: checkers, interval: interval, timeout: timeout, states: states}
}

// Await blocks until every dependency reports HEALTHY, returning nil, or
// until one reports UNHEALTHY or the timeout elapses, returning an error
// wrapping core.ErrDependencyUnhealthy. Callers typically run this once at
// startup before accepting traffic.
func (p *HealthPoller) Await(ctx context.Context) error {
	deadline := time.Now().Add(p.timeout)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if err := p.pollOnce(ctx); err == nil && p.allHealthy() {
		return nil
	} else if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil {
				return err
			}
			if p.allHealthy() {
				return nil
			}
			if time.Now().After(deadline) {
				p.markRemainingUnhealthy("startup health poll timed out")
				return fmt.Errorf("dependencies not healthy after %s: %w", p.timeout, core.ErrDependencyUnhealthy)
			}
		}
	}
}

// pollOnce checks every dependency once, updating states. It returns an
// error immediately when any dependency reports UNHEALTHY, since that
// status is definitive and further polling would not change it.
func (p *HealthPoller) pollOnce(ctx context.Context) error {
	for _, c := range p.checkers {
		status := c.CheckHealth(ctx)
		p.mu.Lock()
		p.states[c.Name()] = DependencyState{Status: status}
		p.mu.Unlock()

		if status == core.DependencyUnhealthy {
			return fmt.Errorf("dependency %q unhealthy: %w", c.Name(), core.ErrDependencyUnhealthy)
		}
	}
	return nil
}

func (p *HealthPoller) allHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.states {
		if s.Status != core.DependencyHealthy {
			return false
		}
	}
	return true
}

func (p *HealthPoller) markRemainingUnhealthy(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, s := range p.states {
		if s.Status != core.DependencyHealthy {
			p.states[name] = DependencyState{Status: core.DependencyUnhealthy, Error: reason}
		}
	}
}

// States returns a snapshot of every dependency's last observed state.
func (p *HealthPoller) States() map[string]DependencyState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]DependencyState, len(p.states))
	for k, v := range p.states {
		out[k] = v
	}
	return out
}

// readinessBody is the JSON shape served by Handler.
type readinessBody struct {
	Status       string                      `json:"status"`
	Dependencies map[string]DependencyState `json:"dependencies"`
}

// Handler serves the readiness probe (§6): UP with 200 iff every dependency
// is HEALTHY, otherwise 503 with the per-dependency states.
func (p *HealthPoller) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		states := p.States()
		body := readinessBody{Dependencies: states}

		w.Header().Set("Content-Type", "application/json")
		if p.allHealthy() {
			body.Status = "UP"
			w.WriteHeader(http.StatusOK)
		} else {
			body.Status = "DOWN"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(body)
	}
}
