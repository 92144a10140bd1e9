package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps agent types to executors
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates a registry holding execs
func NewRegistry(execs ...Executor) *Registry {
	r := &Registry{executors: make(map[string]Executor)}
	for _, e := range execs {
		r.Register(e)
	}
	return r
}

// DefaultRegistry returns a registry with the five HR policy executors
func DefaultRegistry() *Registry {
	return NewRegistry(
		ContextCollector{},
		TalentProfiler{},
		GradingDesigner{},
		EvaluationDesigner{},
		CompensationDesigner{},
	)
}

// Register adds or replaces the executor for its type
func (r *Registry) Register(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[e.Type()] = e
}

// Get returns the executor for agentType
func (r *Registry) Get(agentType string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[agentType]
	if !ok {
		return nil, fmt.Errorf("no executor registered for agent type %s", agentType)
	}
	return e, nil
}

// Types lists the registered agent types in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
