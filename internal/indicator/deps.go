package indicator

import (
	"fmt"
	"sort"

	"stockdbv1/internal/model"
)

// Dependency edge kinds.
const (
	DepRequired = "required"
	DepOptional = "optional"
)

// Dependency is one edge: the owning indicator needs dependency Name
// computed first.
type Dependency struct {
	Name string
	Kind string
}

// Resolver tracks inter-indicator dependencies and produces calculation
// orders. Cycles are rejected at registration time, so Resolve never has
// to deal with one.
type Resolver struct {
	deps map[string][]Dependency // indicator -> its dependencies
}

// NewResolver creates a resolver with the built-in dependency edges.
func NewResolver() *Resolver {
	r := &Resolver{deps: make(map[string][]Dependency)}

	// Built-ins: MACD and Bollinger both build on moving averages.
	_ = r.Add("macd", "moving_average", DepRequired)
	_ = r.Add("bollinger_bands", "moving_average", DepRequired)

	return r
}

// Add registers a dependency edge. Returns ErrCircularDependency (and
// leaves the graph unchanged) if the edge would create a cycle.
func (r *Resolver) Add(indicator, dependsOn, kind string) error {
	if indicator == dependsOn || r.reaches(dependsOn, indicator) {
		return fmt.Errorf("%w: %s -> %s", model.ErrCircularDependency, indicator, dependsOn)
	}
	for _, d := range r.deps[indicator] {
		if d.Name == dependsOn {
			return nil
		}
	}
	r.deps[indicator] = append(r.deps[indicator], Dependency{Name: dependsOn, Kind: kind})
	return nil
}

// reaches reports whether `to` is reachable from `from` along dependency
// edges.
func (r *Resolver) reaches(from, to string) bool {
	seen := map[string]bool{}
	var walk func(n string) bool
	walk = func(n string) bool {
		if n == to {
			return true
		}
		if seen[n] {
			return false
		}
		seen[n] = true
		for _, d := range r.deps[n] {
			if walk(d.Name) {
				return true
			}
		}
		return false
	}
	return walk(from)
}

// Dependencies returns the direct dependencies of an indicator.
func (r *Resolver) Dependencies(name string) []Dependency {
	out := make([]Dependency, len(r.deps[name]))
	copy(out, r.deps[name])
	return out
}

// Required returns the names of the required direct dependencies.
func (r *Resolver) Required(name string) []string {
	var out []string
	for _, d := range r.deps[name] {
		if d.Kind == DepRequired {
			out = append(out, d.Name)
		}
	}
	return out
}

// Validate reports whether every required dependency of name appears in
// the available set.
func (r *Resolver) Validate(name string, available map[string]bool) bool {
	for _, dep := range r.Required(name) {
		if !available[dep] {
			return false
		}
	}
	return true
}

// Resolve returns a calculation order covering the requested indicators
// plus every required ancestor: dependencies always come before their
// dependents, and the order is deterministic for a given request.
func (r *Resolver) Resolve(names []string) []string {
	// Collect the closure over required edges.
	include := map[string]bool{}
	var collect func(n string)
	collect = func(n string) {
		if include[n] {
			return
		}
		include[n] = true
		for _, dep := range r.Required(n) {
			collect(dep)
		}
	}
	for _, n := range names {
		collect(n)
	}

	// Kahn's algorithm over the subgraph. Ties resolve alphabetically
	// so repeated requests order the same way.
	indeg := map[string]int{}
	for n := range include {
		indeg[n] = 0
	}
	for n := range include {
		for _, dep := range r.Required(n) {
			if include[dep] {
				indeg[n]++
			}
		}
	}

	var ready []string
	for n, d := range indeg {
		if d == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(include))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		var unlocked []string
		for m := range include {
			for _, dep := range r.Required(m) {
				if dep == n {
					indeg[m]--
					if indeg[m] == 0 {
						unlocked = append(unlocked, m)
					}
				}
			}
		}
		sort.Strings(unlocked)
		ready = append(ready, unlocked...)
		sort.Strings(ready)
	}
	return order
}
