package resilience

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry tracks the circuit breakers of a service for readiness reporting
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Register adds a circuit breaker to the registry
func (r *Registry) Register(cb *CircuitBreaker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers[cb.name] = cb
}

// Check returns an error naming every open breaker. Its signature matches
// the health package's function checker.
func (r *Registry) Check(context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var open []string
	for name, cb := range r.breakers {
		if cb.State() == StateOpen {
			open = append(open, name)
		}
	}
	if len(open) == 0 {
		return nil
	}
	sort.Strings(open)
	return fmt.Errorf("%w: %s", ErrCircuitOpen, strings.Join(open, ", "))
}
