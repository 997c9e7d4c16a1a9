package core

import (
	"slices"
	"sort"
)

// Edge is a declared dependency: Module must initialize after Dependency.
type Edge struct {
	Module     string
	Dependency string
}

// Graph maps a module name to the ordered names it depends on. Names do
// not have to be registered when an edge is added. Graph is not safe for
// concurrent use; the Manager guards it.
type Graph struct {
	edges map[string][]string
}

func NewGraph() *Graph {
	return &Graph{edges: make(map[string][]string)}
}

// Add declares that module depends on dependency. Repeated edges are
// ignored; Add reports whether the edge is new.
func (g *Graph) Add(module, dependency string) bool {
	if slices.Contains(g.edges[module], dependency) {
		return false
	}
	g.edges[module] = append(g.edges[module], dependency)
	return true
}

// Remove drops the edge and reports whether it existed.
func (g *Graph) Remove(module, dependency string) bool {
	deps := g.edges[module]
	i := slices.Index(deps, dependency)
	if i < 0 {
		return false
	}
	deps = slices.Delete(deps, i, i+1)
	if len(deps) == 0 {
		delete(g.edges, module)
	} else {
		g.edges[module] = deps
	}
	return true
}

// Dependencies returns a copy of the names module depends on, in
// declaration order.
func (g *Graph) Dependencies(module string) []string {
	return slices.Clone(g.edges[module])
}

// Dependents returns the modules that declare a dependency on module,
// sorted by name.
func (g *Graph) Dependents(module string) []string {
	var out []string
	for m, deps := range g.edges {
		if slices.Contains(deps, module) {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// Unresolved returns the edges of nodes whose dependency is not in nodes.
func (g *Graph) Unresolved(nodes []string) []Edge {
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n] = true
	}
	var out []Edge
	for _, n := range nodes {
		for _, d := range g.edges[n] {
			if !known[d] {
				out = append(out, Edge{Module: n, Dependency: d})
			}
		}
	}
	return out
}

// Sort orders nodes so every dependency precedes its dependents.
//
// Traversal is depth-first in the order of nodes, then of each node's
// declared dependencies, so the result is stable for a fixed input.
// Dependencies outside nodes are ignored. A cycle aborts the whole sort
// with a *CycleError.
func (g *Graph) Sort(nodes []string) ([]string, error) {
	const (
		unvisited = iota
		visiting
		visited
	)

	include := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		include[n] = true
	}

	marks := make(map[string]int, len(nodes))
	stack := make([]string, 0, len(nodes))
	out := make([]string, 0, len(nodes))

	var visit func(string) error
	visit = func(n string) error {
		switch marks[n] {
		case visited:
			return nil
		case visiting:
			return cycleFrom(stack, n)
		}
		marks[n] = visiting
		stack = append(stack, n)
		for _, d := range g.edges[n] {
			if !include[d] {
				continue
			}
			if err := visit(d); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		marks[n] = visited
		out = append(out, n)
		return nil
	}

	for _, n := range nodes {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// cycleFrom cuts the traversal stack at the first occurrence of n.
func cycleFrom(stack []string, n string) *CycleError {
	i := slices.Index(stack, n)
	if i < 0 {
		return &CycleError{Path: []string{n, n}}
	}
	path := append(slices.Clone(stack[i:]), n)
	return &CycleError{Path: path}
}
