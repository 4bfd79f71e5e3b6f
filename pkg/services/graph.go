package services

import (
	"fmt"
	"sort"

	"github.com/ekaya-inc/marts-engine/pkg/apperrors"
)

// ModelGraph is the directed dependency graph of models: an edge for each
// depends_on reference, pointing from dependency to dependent.
type ModelGraph struct {
	nodes      map[string]bool
	deps       map[string][]string // model -> its dependencies
	dependents map[string][]string // model -> models depending on it
}

// NewModelGraph creates a new empty model graph.
func NewModelGraph() *ModelGraph {
	return &ModelGraph{
		nodes:      make(map[string]bool),
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
	}
}

// AddModel adds a named model and its dependency references.
func (g *ModelGraph) AddModel(name string, dependsOn ...string) {
	g.nodes[name] = true
	g.deps[name] = append(g.deps[name], dependsOn...)
	for _, dep := range dependsOn {
		g.dependents[dep] = append(g.dependents[dep], name)
	}
}

// TopoSort returns the models in dependency order using Kahn's algorithm.
// The ready set is drained in lexical order so the result is deterministic.
// A reference to an undeclared model or a cycle is a fatal configuration
// error.
func (g *ModelGraph) TopoSort() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for name := range g.nodes {
		indegree[name] = 0
	}
	for name, deps := range g.deps {
		for _, dep := range deps {
			if !g.nodes[dep] {
				return nil, fmt.Errorf("%w: model %q depends on %q", apperrors.ErrUnknownDependency, name, dep)
			}
			indegree[name]++
		}
	}

	var ready []string
	for name, degree := range indegree {
		if degree == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)

		var unlocked []string
		for _, dependent := range g.dependents[current] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				unlocked = append(unlocked, dependent)
			}
		}
		sort.Strings(unlocked)
		ready = append(ready, unlocked...)
	}

	if len(order) != len(g.nodes) {
		var stuck []string
		for name, degree := range indegree {
			if degree > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: involving %v", apperrors.ErrCycleDetected, stuck)
	}

	return order, nil
}

// Downstream returns every model transitively depending on name. Used to
// skip descendants when a model build fails.
func (g *ModelGraph) Downstream(name string) []string {
	visited := make(map[string]bool)
	stack := []string{name}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, dependent := range g.dependents[current] {
			if !visited[dependent] {
				visited[dependent] = true
				stack = append(stack, dependent)
			}
		}
	}

	result := make([]string, 0, len(visited))
	for name := range visited {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}
