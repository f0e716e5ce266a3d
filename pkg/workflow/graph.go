// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package workflow

import (
	"context"
	"fmt"
)

// Node is a single step in the orchestrator graph. Unlike the teacher's
// Execute(state *State) (*NodeResult, error) — which mutates state in
// place — Execute here is a pure function: it receives a read-only
// TurnState and returns a StateDelta the orchestrator merges centrally.
// This keeps every node free of shared-mutable-state races and makes
// Merge the single place the merge semantics of spec §4.1 are enforced.
type Node interface {
	Execute(ctx context.Context, state TurnState) (StateDelta, error)
	Name() string
}

// Router decides the next node name given the post-merge TurnState. A
// Router returning "" means "workflow ends here" (spec §4.1: "-> end").
type Router func(state TurnState) string

// edgeSet is either a single unconditional next node, or a conditional
// Router consulted after the node's delta has been merged.
type edgeSet struct {
	next   string
	router Router
}

// Graph represents the orchestrator's execution graph: the branching
// state machine of spec §4.1, generalized from the teacher's single
// linear-loop Graph (pkg/workflow/graph.go) to support conditional edges.
type Graph struct {
	nodes map[string]Node
	edges map[string]edgeSet
	start string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]Node),
		edges: make(map[string]edgeSet),
	}
}

// AddNode registers a node under its own Name().
func (g *Graph) AddNode(node Node) error {
	if node == nil {
		return fmt.Errorf("node is nil")
	}
	name := node.Name()
	if name == "" {
		return fmt.Errorf("node name is empty")
	}
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("node %s already exists", name)
	}
	g.nodes[name] = node
	return nil
}

// AddEdge adds an unconditional edge from -> to.
func (g *Graph) AddEdge(from, to string) error {
	if _, exists := g.nodes[from]; !exists {
		return fmt.Errorf("from node %s does not exist", from)
	}
	if to != "" {
		if _, exists := g.nodes[to]; !exists {
			return fmt.Errorf("to node %s does not exist", to)
		}
	}
	g.edges[from] = edgeSet{next: to}
	return nil
}

// AddConditionalEdge attaches a Router to from, consulted after from's
// delta is merged into TurnState; the router's return value is the next
// node name (or "" to end).
func (g *Graph) AddConditionalEdge(from string, router Router) error {
	if _, exists := g.nodes[from]; !exists {
		return fmt.Errorf("from node %s does not exist", from)
	}
	g.edges[from] = edgeSet{router: router}
	return nil
}

// SetStart designates the entry node.
func (g *Graph) SetStart(nodeName string) error {
	if _, exists := g.nodes[nodeName]; !exists {
		return fmt.Errorf("start node %s does not exist", nodeName)
	}
	g.start = nodeName
	return nil
}

// GetNode retrieves a node by name.
func (g *Graph) GetNode(name string) (Node, error) {
	node, exists := g.nodes[name]
	if !exists {
		return nil, fmt.Errorf("node %s not found", name)
	}
	return node, nil
}

// Next resolves the node to run after "from", given the current state.
func (g *Graph) Next(from string, state TurnState) (string, error) {
	e, exists := g.edges[from]
	if !exists {
		return "", nil
	}
	if e.router != nil {
		return e.router(state), nil
	}
	return e.next, nil
}

// GetStartNode returns the entry node name.
func (g *Graph) GetStartNode() string {
	return g.start
}

// nodeNames lists every expected orchestrator node (spec §4.1 topology).
var nodeNames = []string{
	"router",
	"context_resolver",
	"direct_responder",
	"planner",
	"subtask_executor",
	"retriever",
	"web_fallback",
	"synthesizer",
	"hallucination_checker",
	"answer_grader",
}

// BuildOrchestratorGraph wires the exact topology of spec §4.1, generalized
// from the teacher's BuildDeepThinkingGraph (single linear loop) into the
// branching graph this design requires. The conditional predicates are
// supplied by the caller (typically built with NewPredicates) since they close
// over RunOptions (thresholds, feature flags) that the graph itself does not own.
func BuildOrchestratorGraph(nodes map[string]Node, opts RunOptions, predicates Predicates) (*Graph, error) {
	graph := NewGraph()

	required := nodeNames
	if !opts.RoutingEnabled {
		required = []string{"planner", "subtask_executor", "retriever", "synthesizer", "hallucination_checker", "answer_grader"}
		if opts.WebEnabled {
			required = append(required, "web_fallback")
		}
	} else if !opts.WebEnabled {
		required = nil
		for _, name := range nodeNames {
			if name != "web_fallback" {
				required = append(required, name)
			}
		}
	}

	for _, name := range required {
		node, exists := nodes[name]
		if !exists {
			return nil, fmt.Errorf("%w: required node %s not provided", ErrGraphMisconfigured, name)
		}
		if err := graph.AddNode(node); err != nil {
			return nil, fmt.Errorf("failed to add node %s: %w", name, err)
		}
	}

	if opts.RoutingEnabled {
		if err := graph.AddConditionalEdge("router", predicates.RouteByQueryType); err != nil {
			return nil, err
		}
		if err := graph.AddEdge("context_resolver", "planner"); err != nil {
			return nil, err
		}
		if err := graph.AddEdge("direct_responder", ""); err != nil {
			return nil, err
		}
		if err := graph.SetStart("router"); err != nil {
			return nil, err
		}
	} else {
		if err := graph.SetStart("planner"); err != nil {
			return nil, err
		}
	}

	if err := graph.AddEdge("planner", "subtask_executor"); err != nil {
		return nil, err
	}
	if err := graph.AddConditionalEdge("subtask_executor", predicates.SubtaskAdvance); err != nil {
		return nil, err
	}
	if err := graph.AddConditionalEdge("retriever", predicates.NeedsWeb); err != nil {
		return nil, err
	}
	if _, err := graph.GetNode("web_fallback"); err == nil {
		if err := graph.AddEdge("web_fallback", "subtask_executor"); err != nil {
			return nil, err
		}
	}
	if err := graph.AddEdge("synthesizer", "hallucination_checker"); err != nil {
		return nil, err
	}
	if err := graph.AddConditionalEdge("hallucination_checker", predicates.HallucinationDecision); err != nil {
		return nil, err
	}
	if err := graph.AddConditionalEdge("answer_grader", predicates.GradeDecision); err != nil {
		return nil, err
	}

	return graph, nil
}

// Predicates bundles the four conditional-edge functions of spec §4.1.
// They are plain value-closures over RunOptions, constructed once per
// engine and reused across turns.
type Predicates struct {
	RouteByQueryType      Router
	SubtaskAdvance        Router
	NeedsWeb              Router
	HallucinationDecision Router
	GradeDecision         Router
}
