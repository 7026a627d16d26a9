package runner

import (
	"sort"

	"github.com/pkg/errors"
)

type DAGManager interface {
	AddNode(name string, dependencies []string)
	TopologicalSort() ([]string, error)
	Dependents(name string) []string
}

type dagManager struct {
	graph map[string][]string
}

func NewDAGManager() DAGManager {
	return &dagManager{
		graph: make(map[string][]string),
	}
}

func (dm *dagManager) AddNode(name string, dependencies []string) {
	dm.graph[name] = dependencies
}

const (
	unvisited = iota
	visiting
	visited
)

// TopologicalSort returns the graph's nodes with every dependency
// ordered before its dependents. Cycles are an error.
func (dm *dagManager) TopologicalSort() ([]string, error) {
	state := make(map[string]int)
	var order []string

	var visit func(string) error
	visit = func(name string) error {
		switch state[name] {
		case visited:
			return nil
		case visiting:
			return errors.Errorf("dependency cycle involving target %s", name)
		}
		state[name] = visiting

		for _, dep := range dm.graph[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}

		state[name] = visited
		order = append(order, name)
		return nil
	}

	// Deterministic ordering for unrelated subgraphs.
	names := make([]string, 0, len(dm.graph))
	for name := range dm.graph {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// Dependents returns the nodes that depend on name, directly or
// transitively. Used by clean to remove downstream artifacts.
func (dm *dagManager) Dependents(name string) []string {
	reverse := make(map[string][]string)
	for node, deps := range dm.graph {
		for _, dep := range deps {
			reverse[dep] = append(reverse[dep], node)
		}
	}

	seen := map[string]bool{name: true}
	var out []string
	var walk func(string)
	walk = func(n string) {
		for _, dependent := range reverse[n] {
			if !seen[dependent] {
				seen[dependent] = true
				out = append(out, dependent)
				walk(dependent)
			}
		}
	}
	walk(name)

	sort.Strings(out)
	return out
}
