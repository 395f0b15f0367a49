package graph

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/textforge/dagflow/internal/domain"
)

func node(wfID uuid.UUID, nodeID string, orderIndex int) *domain.Node {
	return &domain.Node{
		ID:         uuid.New(),
		WorkflowID: wfID,
		NodeID:     nodeID,
		Type:       domain.NodeTypeFormatter,
		OrderIndex: orderIndex,
		CreatedAt:  time.Now(),
	}
}

func edge(wfID uuid.UUID, from, to string) *domain.Edge {
	return &domain.Edge{ID: uuid.New(), WorkflowID: wfID, FromNodeID: from, ToNodeID: to}
}

func TestTopologicalBatches_Diamond(t *testing.T) {
	wf := uuid.New()
	nodes := []*domain.Node{node(wf, "A", 0), node(wf, "B", 1), node(wf, "C", 2), node(wf, "D", 3)}
	edges := []*domain.Edge{
		edge(wf, "A", "B"), edge(wf, "A", "C"),
		edge(wf, "B", "D"), edge(wf, "C", "D"),
	}

	g, err := Build(nodes, edges)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	batches, err := g.TopologicalBatches()
	if err != nil {
		t.Fatalf("TopologicalBatches: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d: %v", len(batches), batches)
	}
	if len(batches[0]) != 1 || batches[0][0] != "A" {
		t.Errorf("batch 0 = %v, want [A]", batches[0])
	}
	if len(batches[1]) != 2 || batches[1][0] != "B" || batches[1][1] != "C" {
		t.Errorf("batch 1 = %v, want [B C] (alphabetical)", batches[1])
	}
	if len(batches[2]) != 1 || batches[2][0] != "D" {
		t.Errorf("batch 2 = %v, want [D]", batches[2])
	}

	if preds := g.Predecessors("D"); len(preds) != 2 || preds[0] != "B" || preds[1] != "C" {
		t.Errorf("Predecessors(D) = %v, want [B C]", preds)
	}
	if sinks := g.Sinks(); len(sinks) != 1 || sinks[0] != "D" {
		t.Errorf("Sinks() = %v, want [D]", sinks)
	}
}

func TestTopologicalBatches_CoversEveryNodeOnce(t *testing.T) {
	// Invariant 1 (spec §8): a validated DAG's batches cover every node
	// exactly once.
	wf := uuid.New()
	nodes := []*domain.Node{node(wf, "A", 0), node(wf, "B", 1), node(wf, "C", 2)}
	edges := []*domain.Edge{edge(wf, "A", "B"), edge(wf, "B", "C")}

	g, err := Build(nodes, edges)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	batches, err := g.TopologicalBatches()
	if err != nil {
		t.Fatalf("TopologicalBatches: %v", err)
	}

	seen := make(map[string]bool)
	for _, b := range batches {
		for _, id := range b {
			if seen[id] {
				t.Fatalf("node %s appears in more than one batch", id)
			}
			seen[id] = true
		}
	}
	for _, n := range nodes {
		if !seen[n.NodeID] {
			t.Errorf("node %s missing from batches", n.NodeID)
		}
	}
}

func TestTopologicalBatches_LinearFallbackWhenNoEdges(t *testing.T) {
	wf := uuid.New()
	now := time.Now()
	nodes := []*domain.Node{
		{ID: uuid.New(), WorkflowID: wf, NodeID: "Z", OrderIndex: 2, CreatedAt: now},
		{ID: uuid.New(), WorkflowID: wf, NodeID: "A", OrderIndex: 0, CreatedAt: now},
		{ID: uuid.New(), WorkflowID: wf, NodeID: "M", OrderIndex: 1, CreatedAt: now},
	}

	g, err := Build(nodes, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	batches, err := g.TopologicalBatches()
	if err != nil {
		t.Fatalf("TopologicalBatches: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 single-node batches, got %d", len(batches))
	}
	got := []string{batches[0][0], batches[1][0], batches[2][0]}
	want := []string{"A", "M", "Z"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("linear fallback order = %v, want %v", got, want)
		}
	}

	if preds := g.Predecessors("A"); len(preds) != 0 {
		t.Errorf("Predecessors(A) = %v, want none (A is first in OrderIndex order)", preds)
	}
	if preds := g.Predecessors("M"); len(preds) != 1 || preds[0] != "A" {
		t.Errorf("Predecessors(M) = %v, want [A]", preds)
	}
	if preds := g.Predecessors("Z"); len(preds) != 1 || preds[0] != "M" {
		t.Errorf("Predecessors(Z) = %v, want [M]", preds)
	}
	if sinks := g.Sinks(); len(sinks) != 1 || sinks[0] != "Z" {
		t.Errorf("Sinks() = %v, want [Z] (only the last node in the chain has no successor)", sinks)
	}
}

func TestValidate_CycleRejected(t *testing.T) {
	wf := uuid.New()
	nodes := []*domain.Node{node(wf, "A", 0), node(wf, "B", 1), node(wf, "C", 2)}
	edges := []*domain.Edge{edge(wf, "A", "B"), edge(wf, "B", "C"), edge(wf, "C", "A")}

	if err := Validate(nodes, edges); err == nil {
		t.Fatal("expected cycle to be rejected")
	}
}

func TestValidate_CrossWorkflowEdgeRejected(t *testing.T) {
	wfA, wfB := uuid.New(), uuid.New()
	nodes := []*domain.Node{node(wfA, "A", 0), node(wfB, "B", 0)}
	edges := []*domain.Edge{{ID: uuid.New(), WorkflowID: wfA, FromNodeID: "A", ToNodeID: "B"}}

	if err := Validate(nodes, edges); err == nil {
		t.Fatal("expected cross-workflow edge to be rejected")
	}
}

func TestValidate_DuplicateEdgeRejected(t *testing.T) {
	wf := uuid.New()
	nodes := []*domain.Node{node(wf, "A", 0), node(wf, "B", 1)}
	edges := []*domain.Edge{edge(wf, "A", "B"), edge(wf, "A", "B")}

	if err := Validate(nodes, edges); err == nil {
		t.Fatal("expected duplicate edge to be rejected")
	}
}

func TestValidate_CycleInsertionLeavesEdgesUnchanged(t *testing.T) {
	// Invariant 5 (spec §8): simulates the edge-insertion path an HTTP
	// handler would take — build the candidate edge set, validate
	// before committing, and confirm the original set is untouched on
	// rejection.
	wf := uuid.New()
	nodes := []*domain.Node{node(wf, "A", 0), node(wf, "B", 1), node(wf, "C", 2)}
	existing := []*domain.Edge{edge(wf, "A", "B"), edge(wf, "B", "C")}

	candidate := append(append([]*domain.Edge{}, existing...), edge(wf, "C", "A"))
	if err := Validate(nodes, candidate); err == nil {
		t.Fatal("expected cycle-creating edge to be rejected")
	}
	if len(existing) != 2 {
		t.Fatalf("existing edge set mutated: len=%d", len(existing))
	}
}
