// Package dag models the component dependency graph. It supports
// deterministic dependency resolution with cycle detection, level
// partitioning for parallel-safe batches, and transitive dependency
// queries.
package dag

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCycle is returned when resolution encounters a dependency cycle.
var ErrCycle = errors.New("circular dependency")

// ErrUnknown is returned when an operation references a component that
// is not in the graph.
var ErrUnknown = errors.New("unknown component")

// ErrDuplicate is returned when adding a component that already exists.
var ErrDuplicate = errors.New("duplicate component")

// ErrSelfEdge is returned when a component declares itself as a dependency.
var ErrSelfEdge = errors.New("self-referencing dependency")

// Graph is a directed graph of components. Edges point from a component
// to its dependencies: if A depends on B, there is an edge A → B.
// Cycles are not rejected at insertion time so that a malformed catalog
// can still be loaded and diagnosed; Resolve and Validate report them.
type Graph struct {
	priority map[string]int
	// deps maps name → set of direct dependency names.
	deps map[string]map[string]bool
	// dependents maps name → set of names that depend on it.
	dependents map[string]map[string]bool
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		priority:   make(map[string]int),
		deps:       make(map[string]map[string]bool),
		dependents: make(map[string]map[string]bool),
	}
}

// Add registers a component with the given priority. Higher priority
// orders a component earlier among peers with no mutual dependency.
// Returns ErrDuplicate if the name is already present.
func (g *Graph) Add(name string, priority int) error {
	if _, exists := g.priority[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	g.priority[name] = priority
	g.deps[name] = make(map[string]bool)
	g.dependents[name] = make(map[string]bool)
	return nil
}

// AddEdge records that from depends on to. The dependent must already
// be registered; the dependency may be absent, in which case the edge
// dangles and is reported by Resolve or Validate rather than here, so a
// malformed catalog can still be loaded and diagnosed. A self-edge is
// rejected immediately; a cycle is not (it too surfaces at resolution).
func (g *Graph) AddEdge(from, to string) error {
	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfEdge, from)
	}
	if _, ok := g.priority[from]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, from)
	}
	g.deps[from][to] = true
	if g.dependents[to] == nil {
		g.dependents[to] = make(map[string]bool)
	}
	g.dependents[to][from] = true
	return nil
}

// Has reports whether the component is registered.
func (g *Graph) Has(name string) bool {
	_, ok := g.priority[name]
	return ok
}

// Len returns the number of registered components.
func (g *Graph) Len() int {
	return len(g.priority)
}

// Names returns all registered component names, sorted alphabetically.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.priority))
	for name := range g.priority {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Deps returns the direct dependencies of name in deterministic order.
func (g *Graph) Deps(name string) []string {
	return g.ordered(setKeys(g.deps[name]))
}

// Dependents returns the components that directly depend on name, in
// deterministic order.
func (g *Graph) Dependents(name string) []string {
	return g.ordered(setKeys(g.dependents[name]))
}

// Ancestors returns every component name transitively required by name,
// sorted alphabetically. Returns nil for an unregistered name.
func (g *Graph) Ancestors(name string) []string {
	if !g.Has(name) {
		return nil
	}
	seen := make(map[string]bool)
	g.walk(g.deps, name, seen)
	return sortedKeys(seen)
}

// Descendants returns every component name that transitively depends on
// name, sorted alphabetically. Returns nil for an unregistered name.
func (g *Graph) Descendants(name string) []string {
	if !g.Has(name) {
		return nil
	}
	seen := make(map[string]bool)
	g.walk(g.dependents, name, seen)
	return sortedKeys(seen)
}

func (g *Graph) walk(edges map[string]map[string]bool, name string, seen map[string]bool) {
	for next := range edges[name] {
		if !seen[next] {
			seen[next] = true
			g.walk(edges, next, seen)
		}
	}
}

// ordered sorts names by priority descending, then alphabetically.
func (g *Graph) ordered(names []string) []string {
	sort.Slice(names, func(i, j int) bool {
		pi, pj := g.priority[names[i]], g.priority[names[j]]
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})
	return names
}

func setKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}

func sortedKeys(set map[string]bool) []string {
	keys := setKeys(set)
	sort.Strings(keys)
	return keys
}
