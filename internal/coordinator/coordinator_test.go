package coordinator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/textforge/dagflow/internal/domain"
	"github.com/textforge/dagflow/internal/infrastructure/storage/memtest"
	"github.com/textforge/dagflow/internal/nodeexec"
	"github.com/textforge/dagflow/internal/services"
)

// fakeLLM echoes its prompt (optionally prefixed) so tests can assert
// on per-node output without a real provider, and can be told to fail
// for a specific prompt to exercise the fail-fast path.
type fakeLLM struct {
	failPrompt string
}

func (f fakeLLM) Complete(_ context.Context, req services.LLMRequest) (string, error) {
	if req.Prompt == f.failPrompt {
		return "", fmt.Errorf("simulated upstream failure")
	}
	return "out-" + req.Prompt, nil
}

func testServices(llm services.LLMClient) nodeexec.Services {
	return nodeexec.Services{
		LLM:    llm,
		Clock:  services.SystemClock{},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func genNodeConfig(prompt string) map[string]any {
	return map[string]any{"model": "gpt-4.1-mini", "prompt": prompt}
}

func setupWorkflow(t *testing.T, store *memtest.Store) *domain.Workflow {
	t.Helper()
	ctx := context.Background()
	wf := &domain.Workflow{Name: "test"}
	if err := store.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	return wf
}

// TestRun_ANDJoinAggregatesPredecessorOutputs exercises S1/S2 and
// invariant 2: a fan-in of two root nodes aggregates predecessor
// outputs alphabetically, then the sink's (formatted) output becomes
// the job's final_output.
func TestRun_ANDJoinAggregatesPredecessorOutputs(t *testing.T) {
	ctx := context.Background()
	store := memtest.New()
	wf := setupWorkflow(t, store)

	nodeA := &domain.Node{WorkflowID: wf.ID, NodeID: "A", Type: domain.NodeTypeGenerativeAI, Config: genNodeConfig("alpha")}
	nodeB := &domain.Node{WorkflowID: wf.ID, NodeID: "B", Type: domain.NodeTypeGenerativeAI, Config: genNodeConfig("beta")}
	nodeC := &domain.Node{WorkflowID: wf.ID, NodeID: "C", Type: domain.NodeTypeFormatter, Config: map[string]any{"rules": []string{"uppercase"}}}
	for _, n := range []*domain.Node{nodeA, nodeB, nodeC} {
		if err := store.CreateNode(ctx, n); err != nil {
			t.Fatalf("CreateNode %s: %v", n.NodeID, err)
		}
	}
	for _, e := range []*domain.Edge{
		{WorkflowID: wf.ID, FromNodeID: "A", ToNodeID: "C"},
		{WorkflowID: wf.ID, FromNodeID: "B", ToNodeID: "C"},
	} {
		if err := store.CreateEdge(ctx, e); err != nil {
			t.Fatalf("CreateEdge: %v", err)
		}
	}

	job := &domain.Job{WorkflowID: wf.ID, Status: domain.JobPending}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	registry := nodeexec.NewRegistry(nil)
	coord := &Coordinator{Repo: store, Registry: registry, Services: testServices(fakeLLM{})}
	coord.Run(ctx, job)

	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != domain.JobSucceeded {
		t.Fatalf("status = %v, want Succeeded (error=%v)", got.Status, got.ErrorMessage)
	}
	want := "OUT-ALPHA\n\nOUT-BETA"
	if got.FinalOutput == nil || *got.FinalOutput != want {
		t.Fatalf("final_output = %v, want %q", got.FinalOutput, want)
	}

	steps, err := store.ListSteps(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListSteps: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 job steps, got %d", len(steps))
	}
}

// TestRun_FailFastRunsBatchSiblingsToCompletion exercises invariant 4
// and S6: a failing node does not cancel its already-dispatched batch
// siblings, but no later batch is dispatched.
func TestRun_FailFastRunsBatchSiblingsToCompletion(t *testing.T) {
	ctx := context.Background()
	store := memtest.New()
	wf := setupWorkflow(t, store)

	nodeA := &domain.Node{WorkflowID: wf.ID, NodeID: "A", Type: domain.NodeTypeGenerativeAI, Config: genNodeConfig("ok")}
	nodeB := &domain.Node{WorkflowID: wf.ID, NodeID: "B", Type: domain.NodeTypeGenerativeAI, Config: genNodeConfig("boom")}
	nodeC := &domain.Node{WorkflowID: wf.ID, NodeID: "C", Type: domain.NodeTypeFormatter, Config: map[string]any{"rules": []string{}}}
	for _, n := range []*domain.Node{nodeA, nodeB, nodeC} {
		if err := store.CreateNode(ctx, n); err != nil {
			t.Fatalf("CreateNode %s: %v", n.NodeID, err)
		}
	}
	for _, e := range []*domain.Edge{
		{WorkflowID: wf.ID, FromNodeID: "A", ToNodeID: "C"},
		{WorkflowID: wf.ID, FromNodeID: "B", ToNodeID: "C"},
	} {
		if err := store.CreateEdge(ctx, e); err != nil {
			t.Fatalf("CreateEdge: %v", err)
		}
	}

	job := &domain.Job{WorkflowID: wf.ID, Status: domain.JobPending}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	registry := nodeexec.NewRegistry(nil)
	coord := &Coordinator{Repo: store, Registry: registry, Services: testServices(fakeLLM{failPrompt: "boom"})}
	coord.Run(ctx, job)

	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != domain.JobFailed {
		t.Fatalf("status = %v, want Failed", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage == "" {
		t.Fatal("expected a non-empty error_message on a Failed job (spec §7)")
	}

	steps, err := store.ListSteps(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListSteps: %v", err)
	}
	statuses := make(map[string]domain.StepStatus, len(steps))
	for _, s := range steps {
		statuses[s.NodeID] = s.Status
	}
	if statuses["A"] != domain.StepSucceeded {
		t.Errorf("A status = %v, want Succeeded (batch sibling must run to completion)", statuses["A"])
	}
	if statuses["B"] != domain.StepFailed {
		t.Errorf("B status = %v, want Failed", statuses["B"])
	}
	if _, ok := statuses["C"]; ok {
		t.Errorf("C should never dispatch after its batch's predecessor failed, but it has a step record")
	}
}

// TestRun_LinearFallbackForEdgelessWorkflow exercises the backward
// compatibility fallback: a workflow with no edges still executes
// every node, one batch each, in OrderIndex order.
func TestRun_LinearFallbackForEdgelessWorkflow(t *testing.T) {
	ctx := context.Background()
	store := memtest.New()
	wf := setupWorkflow(t, store)

	nodeA := &domain.Node{WorkflowID: wf.ID, NodeID: "only", Type: domain.NodeTypeFormatter, Config: map[string]any{"rules": []string{"lowercase"}}}
	if err := store.CreateNode(ctx, nodeA); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	job := &domain.Job{WorkflowID: wf.ID, Status: domain.JobPending}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	registry := nodeexec.NewRegistry(nil)
	coord := &Coordinator{Repo: store, Registry: registry, Services: testServices(fakeLLM{})}
	coord.Run(ctx, job)

	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != domain.JobSucceeded {
		t.Fatalf("status = %v, want Succeeded (error=%v)", got.Status, got.ErrorMessage)
	}
	if got.FinalOutput == nil || *got.FinalOutput != "" {
		t.Fatalf("final_output = %v, want empty string (sink node had no input)", got.FinalOutput)
	}
}

// TestRun_LinearFallbackPipesOutputBetweenNodes exercises the
// multi-node edgeless case design note §9 describes: each node's
// output feeds the next node's input_text, the same as the old
// engine's linear aggregation, even though no edges were ever created.
func TestRun_LinearFallbackPipesOutputBetweenNodes(t *testing.T) {
	ctx := context.Background()
	store := memtest.New()
	wf := setupWorkflow(t, store)

	nodeA := &domain.Node{WorkflowID: wf.ID, NodeID: "A", Type: domain.NodeTypeGenerativeAI, Config: genNodeConfig("seed"), OrderIndex: 0}
	nodeB := &domain.Node{WorkflowID: wf.ID, NodeID: "B", Type: domain.NodeTypeFormatter, Config: map[string]any{"rules": []string{"uppercase"}}, OrderIndex: 1}
	for _, n := range []*domain.Node{nodeA, nodeB} {
		if err := store.CreateNode(ctx, n); err != nil {
			t.Fatalf("CreateNode %s: %v", n.NodeID, err)
		}
	}

	job := &domain.Job{WorkflowID: wf.ID, Status: domain.JobPending}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	registry := nodeexec.NewRegistry(nil)
	coord := &Coordinator{Repo: store, Registry: registry, Services: testServices(fakeLLM{})}
	coord.Run(ctx, job)

	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != domain.JobSucceeded {
		t.Fatalf("status = %v, want Succeeded (error=%v)", got.Status, got.ErrorMessage)
	}
	want := "OUT-SEED"
	if got.FinalOutput == nil || *got.FinalOutput != want {
		t.Fatalf("final_output = %v, want %q (B must format A's output, not an empty input)", got.FinalOutput, want)
	}

	steps, err := store.ListSteps(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListSteps: %v", err)
	}
	for _, s := range steps {
		if s.NodeID == "B" && s.InputText != "out-seed" {
			t.Errorf("B input_text = %q, want %q (A's output piped forward)", s.InputText, "out-seed")
		}
	}
}
