package hrflow

import (
	"fmt"
)

// DependencyGraph is the step dependency DAG of a workflow template.
// Edges point from a dependency to the step that depends on it.
type DependencyGraph struct {
	EntryPoint string
	Nodes      map[string]*GraphNode
	order      []string
}

// GraphNode represents a step in the dependency graph
type GraphNode struct {
	StepID    string
	DependsOn []string
	Next      []string
}

// NewDependencyGraph creates an empty graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		Nodes: make(map[string]*GraphNode),
	}
}

// AddNode adds a step to the graph
func (g *DependencyGraph) AddNode(stepID string) {
	if _, exists := g.Nodes[stepID]; !exists {
		g.Nodes[stepID] = &GraphNode{
			StepID:    stepID,
			DependsOn: []string{},
			Next:      []string{},
		}
		g.order = append(g.order, stepID)
	}

	// Set entry point if this is the first node
	if g.EntryPoint == "" {
		g.EntryPoint = stepID
	}
}

// AddEdge records that toStepID depends on fromStepID
func (g *DependencyGraph) AddEdge(fromStepID, toStepID string) error {
	fromNode, exists := g.Nodes[fromStepID]
	if !exists {
		return fmt.Errorf("source node %s not found", fromStepID)
	}

	toNode, exists := g.Nodes[toStepID]
	if !exists {
		return fmt.Errorf("target node %s not found", toStepID)
	}

	for _, n := range fromNode.Next {
		if n == toStepID {
			return nil
		}
	}

	fromNode.Next = append(fromNode.Next, toStepID)
	toNode.DependsOn = append(toNode.DependsOn, fromStepID)
	return nil
}

// Validate validates the graph structure
func (g *DependencyGraph) Validate() error {
	if g.EntryPoint == "" {
		return fmt.Errorf("dependency graph has no entry point")
	}

	if _, exists := g.Nodes[g.EntryPoint]; !exists {
		return fmt.Errorf("entry point %s not found in graph", g.EntryPoint)
	}

	if len(g.Nodes[g.EntryPoint].DependsOn) > 0 {
		return fmt.Errorf("entry point %s has dependencies", g.EntryPoint)
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for _, nodeID := range g.order {
		if !visited[nodeID] {
			if g.hasCycle(nodeID, visited, recStack) {
				return fmt.Errorf("dependency graph contains cycles")
			}
		}
	}

	// Every step must be reachable from the entry point
	reachable := make(map[string]bool)
	g.dfsReachable(g.EntryPoint, reachable)
	if len(reachable) != len(g.Nodes) {
		return fmt.Errorf("not all steps are reachable from entry point")
	}

	return nil
}

func (g *DependencyGraph) hasCycle(nodeID string, visited, recStack map[string]bool) bool {
	visited[nodeID] = true
	recStack[nodeID] = true

	for _, nextID := range g.Nodes[nodeID].Next {
		if !visited[nextID] {
			if g.hasCycle(nextID, visited, recStack) {
				return true
			}
		} else if recStack[nextID] {
			return true
		}
	}

	recStack[nodeID] = false
	return false
}

func (g *DependencyGraph) dfsReachable(nodeID string, reachable map[string]bool) {
	reachable[nodeID] = true

	for _, nextID := range g.Nodes[nodeID].Next {
		if !reachable[nextID] {
			g.dfsReachable(nextID, reachable)
		}
	}
}

// TopologicalSort returns step ids so that every step follows its dependencies
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	visited := make(map[string]bool)
	stack := []string{}

	var visit func(string)
	visit = func(nodeID string) {
		if visited[nodeID] {
			return
		}
		visited[nodeID] = true

		node := g.Nodes[nodeID]
		// Walk successors in reverse so siblings keep declaration order
		for i := len(node.Next) - 1; i >= 0; i-- {
			visit(node.Next[i])
		}

		stack = append([]string{nodeID}, stack...)
	}

	visit(g.EntryPoint)
	return stack, nil
}

// Ancestors returns every transitive dependency of stepID in topological order
func (g *DependencyGraph) Ancestors(stepID string) ([]string, error) {
	if _, exists := g.Nodes[stepID]; !exists {
		return nil, fmt.Errorf("step %s not found in graph", stepID)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var mark func(string)
	mark = func(id string) {
		for _, dep := range g.Nodes[id].DependsOn {
			if !seen[dep] {
				seen[dep] = true
				mark(dep)
			}
		}
	}
	mark(stepID)

	ancestors := make([]string, 0, len(seen))
	for _, id := range order {
		if seen[id] {
			ancestors = append(ancestors, id)
		}
	}
	return ancestors, nil
}

// Dependents returns the steps that directly depend on stepID
func (g *DependencyGraph) Dependents(stepID string) ([]string, error) {
	node, exists := g.Nodes[stepID]
	if !exists {
		return nil, fmt.Errorf("step %s not found in graph", stepID)
	}
	return node.Next, nil
}

// IsTerminal returns true if no step depends on stepID
func (g *DependencyGraph) IsTerminal(stepID string) bool {
	node, exists := g.Nodes[stepID]
	if !exists {
		return false
	}
	return len(node.Next) == 0
}

// Clone creates a deep copy of the graph
func (g *DependencyGraph) Clone() *DependencyGraph {
	clone := &DependencyGraph{
		EntryPoint: g.EntryPoint,
		Nodes:      make(map[string]*GraphNode),
		order:      append([]string{}, g.order...),
	}

	for stepID, node := range g.Nodes {
		clone.Nodes[stepID] = &GraphNode{
			StepID:    node.StepID,
			DependsOn: append([]string{}, node.DependsOn...),
			Next:      append([]string{}, node.Next...),
		}
	}

	return clone
}
