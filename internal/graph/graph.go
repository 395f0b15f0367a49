// Package graph implements the DAG execution engine's graph service
// (spec §4.1): cycle detection, topological batching with
// deterministic alphabetical tiebreaking, and predecessor lookup.
//
// Grounded on the teacher's WorkflowGraph (forward/reverse edge maps,
// Kahn-style TopologicalSort, DFS HasCycles) in
// internal/application/executor/graph.go, generalized from a single
// flat order into explicit batches so the run coordinator can fan out
// a whole layer concurrently and aggregate AND-join inputs.
package graph

import (
	"fmt"
	"sort"

	"github.com/textforge/dagflow/internal/domain"
	domainerr "github.com/textforge/dagflow/internal/domain/errors"
)

// Batch is a maximal set of node IDs whose upstream dependencies all
// live in strictly earlier batches.
type Batch []string

// Graph is the validated, indexed form of a workflow's nodes and edges.
type Graph struct {
	nodes        map[string]*domain.Node
	order        []string // nodeIDs in input order, for the linear fallback
	forwardEdges map[string][]string
	reverseEdges map[string][]string
	edgeless     bool // true iff constructed with zero edges (linear fallback applies)
}

// New indexes nodes and edges into a Graph without validating them.
// Callers that need validation should call Validate (or use Build,
// which does both).
func New(nodes []*domain.Node, edges []*domain.Edge) *Graph {
	g := &Graph{
		nodes:        make(map[string]*domain.Node, len(nodes)),
		order:        make([]string, 0, len(nodes)),
		forwardEdges: make(map[string][]string),
		reverseEdges: make(map[string][]string),
	}
	for _, n := range nodes {
		g.nodes[n.NodeID] = n
		g.order = append(g.order, n.NodeID)
	}
	for _, e := range edges {
		g.forwardEdges[e.FromNodeID] = append(g.forwardEdges[e.FromNodeID], e.ToNodeID)
		g.reverseEdges[e.ToNodeID] = append(g.reverseEdges[e.ToNodeID], e.FromNodeID)
	}
	g.edgeless = len(edges) == 0
	return g
}

// Build validates nodes and edges and returns the indexed Graph.
func Build(nodes []*domain.Node, edges []*domain.Edge) (*Graph, error) {
	if err := Validate(nodes, edges); err != nil {
		return nil, err
	}
	return New(nodes, edges), nil
}

// Validate checks that every edge refers to existing nodes in the same
// workflow, that there are no duplicate edges with identical
// endpoints+ports, and that the induced subgraph is acyclic.
func Validate(nodes []*domain.Node, edges []*domain.Edge) error {
	nodeWorkflow := make(map[string]string, len(nodes)) // nodeID -> workflowID
	for _, n := range nodes {
		nodeWorkflow[n.NodeID] = n.WorkflowID.String()
	}

	seen := make(map[string]bool, len(edges))
	for _, e := range edges {
		fromWF, fromOK := nodeWorkflow[e.FromNodeID]
		toWF, toOK := nodeWorkflow[e.ToNodeID]
		if !fromOK {
			return domainerr.Validationf("edge references unknown from_node_id %q", e.FromNodeID)
		}
		if !toOK {
			return domainerr.Validationf("edge references unknown to_node_id %q", e.ToNodeID)
		}
		if fromWF != e.WorkflowID.String() || toWF != e.WorkflowID.String() {
			return domainerr.Validationf("edge %s->%s crosses workflow boundaries", e.FromNodeID, e.ToNodeID)
		}

		key := fmt.Sprintf("%s:%s:%s:%s", e.FromNodeID, e.ToNodeID, e.FromPort, e.ToPort)
		if seen[key] {
			return domainerr.Validationf("duplicate edge %s->%s (ports %s/%s)", e.FromNodeID, e.ToNodeID, e.FromPort, e.ToPort)
		}
		seen[key] = true
	}

	g := New(nodes, edges)
	if cyclePath, ok := g.findCycle(); ok {
		return domainerr.Validationf("cycle detected: %s", joinPath(cyclePath))
	}
	return nil
}

func joinPath(path []string) string {
	s := ""
	for i, p := range path {
		if i > 0 {
			s += " -> "
		}
		s += p
	}
	return s
}

// findCycle runs DFS over forward edges and returns a witness path if
// the graph contains a cycle.
func (g *Graph) findCycle() ([]string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.order))
	var path []string

	var visit func(string) ([]string, bool)
	visit = func(nodeID string) ([]string, bool) {
		color[nodeID] = gray
		path = append(path, nodeID)

		next := append([]string(nil), g.forwardEdges[nodeID]...)
		sort.Strings(next)
		for _, nxt := range next {
			switch color[nxt] {
			case gray:
				// Found the back-edge; build the witness path from
				// where nxt first appears.
				for i, p := range path {
					if p == nxt {
						return append(append([]string{}, path[i:]...), nxt), true
					}
				}
				return []string{nxt, nodeID, nxt}, true
			case white:
				if cyc, found := visit(nxt); found {
					return cyc, true
				}
			}
		}

		color[nodeID] = black
		path = path[:len(path)-1]
		return nil, false
	}

	ids := append([]string{}, g.order...)
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			if cyc, found := visit(id); found {
				return cyc, true
			}
		}
	}
	return nil, false
}

// TopologicalBatches returns the ordered list of batches per spec
// §4.1: batch 0 holds all in-degree-zero nodes, each subsequent batch
// holds the nodes whose dependencies all lie in strictly earlier
// batches. Within a batch, nodes are listed in alphabetical order.
//
// If the workflow has zero edges, TopologicalBatches instead returns a
// single linear schedule ordered by OrderIndex, then CreatedAt, then
// node ID (the backward-compatibility fallback for edge-less workflows, spec
// §4.1 and design note §9).
func (g *Graph) TopologicalBatches() ([]Batch, error) {
	if g.edgeless {
		return g.linearFallback(), nil
	}

	inDegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		inDegree[id] = len(g.reverseEdges[id])
	}

	remaining := len(g.order)
	var batches []Batch
	released := make(map[string]bool, len(g.order))

	for remaining > 0 {
		var layer []string
		for _, id := range g.order {
			if !released[id] && inDegree[id] == 0 {
				layer = append(layer, id)
			}
		}
		if len(layer) == 0 {
			cyc, _ := g.findCycle()
			return nil, domainerr.Validationf("cycle detected while batching: %s", joinPath(cyc))
		}
		sort.Strings(layer)

		for _, id := range layer {
			released[id] = true
			remaining--
			for _, next := range g.forwardEdges[id] {
				inDegree[next]--
			}
		}
		batches = append(batches, Batch(layer))
	}

	return batches, nil
}

// linearFallback sorts all nodes by OrderIndex then CreatedAt, each in
// its own single-node batch, preserving strict sequential execution
// for workflows authored before edges existed. It also synthesizes an
// implicit edge between each consecutive pair in that order, so
// Predecessors/Successors/Sinks report the same linear chain the old
// engine used for input aggregation ("previous node's output", design
// note §9) instead of the empty results a literal zero-edge graph
// would otherwise give every node.
func (g *Graph) linearFallback() []Batch {
	ids := append([]string{}, g.order...)
	sort.Slice(ids, func(i, j int) bool {
		ni, nj := g.nodes[ids[i]], g.nodes[ids[j]]
		if ni.OrderIndex != nj.OrderIndex {
			return ni.OrderIndex < nj.OrderIndex
		}
		if !ni.CreatedAt.Equal(nj.CreatedAt) {
			return ni.CreatedAt.Before(nj.CreatedAt)
		}
		return ni.NodeID < nj.NodeID
	})

	for i := 1; i < len(ids); i++ {
		prev, cur := ids[i-1], ids[i]
		g.forwardEdges[prev] = append(g.forwardEdges[prev], cur)
		g.reverseEdges[cur] = append(g.reverseEdges[cur], prev)
	}

	batches := make([]Batch, 0, len(ids))
	for _, id := range ids {
		batches = append(batches, Batch{id})
	}
	return batches
}

// Predecessors returns the node IDs with an edge into nodeID, in
// alphabetical order.
func (g *Graph) Predecessors(nodeID string) []string {
	preds := append([]string{}, g.reverseEdges[nodeID]...)
	sort.Strings(preds)
	return preds
}

// Successors returns the node IDs nodeID has an edge into, unsorted.
func (g *Graph) Successors(nodeID string) []string {
	return g.forwardEdges[nodeID]
}

// Node looks up a node by its slug ID.
func (g *Graph) Node(nodeID string) (*domain.Node, bool) {
	n, ok := g.nodes[nodeID]
	return n, ok
}

// Sinks returns the node IDs with no successors, in alphabetical
// order — used for final_output aggregation (spec §4.5).
func (g *Graph) Sinks() []string {
	var sinks []string
	for _, id := range g.order {
		if len(g.forwardEdges[id]) == 0 {
			sinks = append(sinks, id)
		}
	}
	sort.Strings(sinks)
	return sinks
}
