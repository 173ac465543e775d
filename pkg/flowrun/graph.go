package flowrun

import (
	"fmt"
	"sort"

	"github.com/dukex/flowdesk/pkg/models"
)

// Node is a single step placed in the compiled graph. Scope identifies the
// sequence the node belongs to: "" for the top-level sequence, otherwise
// "{branch step id}/{path name}".
type Node struct {
	Step     *models.Step
	Scope    string
	Index    int
	NextID   string
	ParentID string
}

// Graph is the flow definition flattened into an explicit structure the
// engine can walk: every step becomes a node that knows its successor, its
// scope and its enclosing branch.
type Graph struct {
	nodes    map[string]*Node
	topLevel []*Node
}

// Compile flattens a definition's step tree. Step ids are unique across the
// whole tree, so nodes are addressable by step id alone.
func Compile(definition *models.FlowDefinition) (*Graph, error) {
	if err := definition.Validate(); err != nil {
		return nil, err
	}

	graph := &Graph{nodes: make(map[string]*Node)}
	graph.topLevel = graph.compileSequence(definition.Steps, "", "")

	return graph, nil
}

func (g *Graph) compileSequence(steps []*models.Step, scope, parentID string) []*Node {
	nodes := make([]*Node, 0, len(steps))

	for i, step := range steps {
		node := &Node{Step: step, Scope: scope, Index: i, ParentID: parentID}
		if i+1 < len(steps) {
			node.NextID = steps[i+1].ID
		}

		g.nodes[step.ID] = node
		nodes = append(nodes, node)

		for _, path := range step.Paths() {
			g.compileSequence(path.Steps, step.ID+"/"+path.Name, step.ID)
		}
	}

	return nodes
}

// Node returns the node for a step id.
func (g *Graph) Node(stepID string) (*Node, error) {
	node, ok := g.nodes[stepID]
	if !ok {
		return nil, fmt.Errorf("step %s not present in flow definition", stepID)
	}

	return node, nil
}

// TopLevel returns the top-level sequence in order.
func (g *Graph) TopLevel() []*Node {
	return g.topLevel
}

// PathSteps returns the nodes of one branch path in sequence order.
func (g *Graph) PathSteps(branchID, pathName string) []*Node {
	return g.scopeNodes(branchID + "/" + pathName)
}

func (g *Graph) scopeNodes(scope string) []*Node {
	var nodes []*Node

	for _, node := range g.nodes {
		if node.Scope == scope {
			nodes = append(nodes, node)
		}
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Index < nodes[j].Index })

	return nodes
}

// Between returns the nodes strictly between two indexes of the same scope.
// The engine uses it to skip over steps a forward jump bypasses.
func (g *Graph) Between(scope string, fromIndex, toIndex int) []*Node {
	var nodes []*Node

	for _, node := range g.scopeNodes(scope) {
		if node.Index > fromIndex && node.Index < toIndex {
			nodes = append(nodes, node)
		}
	}

	return nodes
}

// TopLevelIndex walks up the enclosing branches of a node and returns the
// index of its top-level ancestor. Runs track progress by top-level position
// even while execution is inside a branch path.
func (g *Graph) TopLevelIndex(node *Node) int {
	for node.ParentID != "" {
		parent, ok := g.nodes[node.ParentID]
		if !ok {
			return 0
		}

		node = parent
	}

	return node.Index
}
