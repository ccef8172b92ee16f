// Package scenario maps scenario names from the data source to runnable scenario bodies.
package scenario

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/session"
)

// Scenario is one UI test body. It drives the browser bound to s using params
// and reports failure by returning an error; core.Skip marks it skipped.
type Scenario interface {
	Run(ctx context.Context, s *session.Session, params map[string]string) error
}

// Func adapts a plain function to Scenario.
type Func func(ctx context.Context, s *session.Session, params map[string]string) error

// Run calls f.
func (f Func) Run(ctx context.Context, s *session.Session, params map[string]string) error {
	return f(ctx, s, params)
}

// Factory builds a fresh Scenario for every attempt.
type Factory func() Scenario

// Registry holds scenario factories by name. Lookup is case-insensitive.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	names     map[string]string // lower-case key -> registered name
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		names:     make(map[string]string),
	}
}

// Register adds factory under name. Registering a name twice is an error.
func (r *Registry) Register(name string, factory Factory) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("scenario name is empty")
	}
	if factory == nil {
		return fmt.Errorf("scenario %q: nil factory", name)
	}

	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.names[key]; ok {
		return fmt.Errorf("scenario %q already registered as %q", name, existing)
	}
	r.factories[key] = factory
	r.names[key] = name
	return nil
}

// MustRegister is Register that panics on error, for package init.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// RegisterFunc registers a stateless function body.
func (r *Registry) RegisterFunc(name string, fn Func) error {
	return r.Register(name, func() Scenario { return fn })
}

// New instantiates the scenario registered under name.
func (r *Registry) New(name string) (Scenario, error) {
	r.mu.RLock()
	factory, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	r.mu.RUnlock()
	if !ok {
		return nil, core.ErrUnknownScenario.
			WithMessage(fmt.Sprintf("unknown scenario %q", name)).
			WithDetails(map[string]interface{}{"scenario": name})
	}
	return factory(), nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Missing returns the names from want that are not registered, in input order, without duplicates.
func (r *Registry) Missing(want []string) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, n := range want {
		if r.Has(n) || seen[n] {
			continue
		}
		seen[n] = true
		missing = append(missing, n)
	}
	return missing
}
