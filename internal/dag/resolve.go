package dag

import (
	"fmt"
	"sort"
)

// visit colors for the depth-first traversal.
type color int

const (
	unvisited color = iota
	inProgress
	resolved
)

// Resolve computes a deterministic installation order for the requested
// components and their transitive dependencies. Every dependency appears
// strictly before its dependents, no name appears twice, and repeated
// calls with the same input produce the same order.
//
// Resolution is a depth-first traversal with three-coloring: revisiting
// an in-progress component reports ErrCycle naming the offender, and a
// dependency absent from the graph reports ErrUnknown. The validated set
// is then emitted level by level (see Levels), so a flattened level plan
// and Resolve agree exactly.
func (g *Graph) Resolve(names []string) ([]string, error) {
	levels, err := g.Levels(names)
	if err != nil {
		return nil, err
	}
	var order []string
	for _, level := range levels {
		order = append(order, level...)
	}
	return order, nil
}

// Levels computes the same resolution as Resolve, partitioned into
// levels: a level contains every not-yet-placed component whose
// dependencies are all placed in earlier levels. Components within a
// level share no dependency on one another, so a level may be executed
// in parallel; executing the levels in sequence is equivalent to the
// flat Resolve order.
func (g *Graph) Levels(names []string) ([][]string, error) {
	colors := make(map[string]color, len(g.priority))
	var members []string

	var visit func(name string) error
	visit = func(name string) error {
		switch colors[name] {
		case resolved:
			return nil
		case inProgress:
			return fmt.Errorf("%w involving %q", ErrCycle, name)
		}
		if _, ok := g.priority[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknown, name)
		}
		colors[name] = inProgress
		for _, dep := range g.ordered(setKeys(g.deps[name])) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		colors[name] = resolved
		members = append(members, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	return g.partition(members), nil
}

// partition groups an already-validated, cycle-free member set into
// dependency levels. Within a level, members are ordered by priority
// descending, then name, matching the traversal tiebreak.
func (g *Graph) partition(members []string) [][]string {
	depth := make(map[string]int, len(members))
	inSet := make(map[string]bool, len(members))
	for _, name := range members {
		inSet[name] = true
	}
	// members is in dependency order, so every dependency's depth is
	// known before its dependents are reached.
	maxDepth := 0
	for _, name := range members {
		d := 0
		for dep := range g.deps[name] {
			if inSet[dep] && depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[name] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]string, maxDepth+1)
	for _, name := range members {
		levels[depth[name]] = append(levels[depth[name]], name)
	}
	for _, level := range levels {
		g.ordered(level)
	}
	return levels
}

// Validate runs a non-failing diagnostic over the entire graph,
// reporting every missing dependency and every cycle found. An empty
// result means the graph is well-formed. Intended for catalog tooling;
// Resolve stops at the first problem instead.
func (g *Graph) Validate() []error {
	var problems []error

	for _, name := range g.Names() {
		for _, dep := range sortedKeys(g.deps[name]) {
			if !g.Has(dep) {
				problems = append(problems, fmt.Errorf("%w: %q required by %q", ErrUnknown, dep, name))
			}
		}
	}

	// Detect cycles with a fresh traversal per unvisited node so that
	// disjoint cycles are each reported once.
	colors := make(map[string]color, len(g.priority))
	var visit func(name string) error
	visit = func(name string) error {
		switch colors[name] {
		case resolved:
			return nil
		case inProgress:
			return fmt.Errorf("%w involving %q", ErrCycle, name)
		}
		colors[name] = inProgress
		for _, dep := range sortedKeys(g.deps[name]) {
			if !g.Has(dep) {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		colors[name] = resolved
		return nil
	}
	for _, name := range g.Names() {
		if colors[name] != unvisited {
			continue
		}
		if err := visit(name); err != nil {
			problems = append(problems, err)
		}
	}

	sort.Slice(problems, func(i, j int) bool {
		return problems[i].Error() < problems[j].Error()
	})
	return problems
}
