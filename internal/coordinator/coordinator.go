// Package coordinator implements the Run Coordinator (C5, spec §4.5):
// it drives one admitted Job through C1's batches, fans each batch out
// to C2 with a "launch N, await all" barrier, aggregates AND-join
// inputs, and persists JobStep records.
//
// Grounded on the teacher's WorkflowEngine.executeWaves/executeWave
// (internal/application/executor/engine.go): a semaphore-bounded
// WaitGroup per batch, with the teacher's per-wave parallelism cap
// generalized to "every node in the batch, unbounded by the engine
// itself" — the spec caps concurrency per agent node (C3), not per
// batch.
package coordinator

import (
	"context"
	"strings"
	"time"

	"github.com/textforge/dagflow/internal/domain"
	"github.com/textforge/dagflow/internal/domain/repository"
	"github.com/textforge/dagflow/internal/graph"
	"github.com/textforge/dagflow/internal/nodeexec"
)

const maxStoredTextBytes = 64 * 1024 // input/output truncation for storage

// Coordinator runs one Job to completion.
type Coordinator struct {
	Repo     repository.Repository
	Registry *nodeexec.Registry
	Services nodeexec.Services
}

// Run implements scheduler.Runner. It never returns an error: every
// failure is captured as the Job's terminal Failed state and
// persisted, per spec §7's "every Failed job has a non-empty
// error_message" guarantee.
func (c *Coordinator) Run(ctx context.Context, job *domain.Job) {
	job.Status = domain.JobRunning
	if err := c.Repo.UpdateJob(ctx, job); err != nil {
		return
	}

	nodes, err := c.Repo.ListNodes(ctx, job.WorkflowID)
	if err != nil {
		c.fail(ctx, job, "", err)
		return
	}
	edges, err := c.Repo.ListEdges(ctx, job.WorkflowID)
	if err != nil {
		c.fail(ctx, job, "", err)
		return
	}

	g, err := graph.Build(nodes, edges)
	if err != nil {
		c.fail(ctx, job, "", err)
		return
	}
	batches, err := g.TopologicalBatches()
	if err != nil {
		c.fail(ctx, job, "", err)
		return
	}

	outputs := make(map[string]string, len(nodes))

	for _, batch := range batches {
		results := c.runBatch(ctx, job, g, batch, outputs)

		for _, nodeID := range batch {
			res := results[nodeID]
			if res.err != nil {
				job.Status = domain.JobFailed
				now := time.Now()
				job.FinishedAt = &now
				msg := nodeID + ": " + res.err.Error()
				job.ErrorMessage = &msg
				_ = c.Repo.UpdateJob(ctx, job)
				return
			}
			outputs[nodeID] = res.output
		}
	}

	finalOutput := c.aggregateSinks(g, outputs)
	job.Status = domain.JobSucceeded
	now := time.Now()
	job.FinishedAt = &now
	job.FinalOutput = &finalOutput
	_ = c.Repo.UpdateJob(ctx, job)
}

type nodeResult struct {
	output string
	err    error
}

// runBatch dispatches every node in batch concurrently and blocks
// until all finish — the "launch N, await all" barrier of spec §5.
// Already-dispatched siblings always run to completion even if one of
// them fails (spec §4.5/§7 fail-fast policy: the batch drains fully
// before the job is marked Failed).
func (c *Coordinator) runBatch(ctx context.Context, job *domain.Job, g *graph.Graph, batch graph.Batch, outputs map[string]string) map[string]nodeResult {
	results := make(map[string]nodeResult, len(batch))
	resultCh := make(chan struct {
		nodeID string
		result nodeResult
	}, len(batch))

	for _, nodeID := range batch {
		nodeID := nodeID
		go func() {
			output, err := c.runNode(ctx, job, g, nodeID, outputs)
			resultCh <- struct {
				nodeID string
				result nodeResult
			}{nodeID, nodeResult{output: output, err: err}}
		}()
	}

	for range batch {
		r := <-resultCh
		results[r.nodeID] = r.result
	}
	return results
}

// runNode resolves input_text via AND-join over predecessors,
// dispatches the node, and persists its JobStep regardless of outcome.
func (c *Coordinator) runNode(ctx context.Context, job *domain.Job, g *graph.Graph, nodeID string, outputs map[string]string) (string, error) {
	node, _ := g.Node(nodeID)
	inputText := aggregateInput(g.Predecessors(nodeID), outputs)

	step := &domain.JobStep{
		JobID:          job.ID,
		NodeID:         nodeID,
		NodeType:       node.Type,
		Status:         domain.StepRunning,
		StartedAt:      time.Now(),
		InputText:      truncate(inputText),
		ConfigSnapshot: snapshotConfig(node.Config),
	}
	if err := c.Repo.CreateStep(ctx, step); err != nil {
		return "", err
	}

	// The snapshot is validated again before dispatch (defense in depth
	// on top of the node-creation check).
	output, err := "", nodeexec.ValidateConfig(node.Type, step.ConfigSnapshot)
	if err == nil {
		output, err = c.Registry.Dispatch(ctx, node.Type, step.ConfigSnapshot, inputText, c.Services)
	}

	finished := time.Now()
	step.FinishedAt = &finished
	if err != nil {
		step.Status = domain.StepFailed
		step.ErrorMessage = err.Error()
		// An agent node that hits iteration_limit/time_budget_exhausted/
		// tool_error still returns its partial scratch alongside the
		// error (agent.Executor.Execute); record it as output_text so
		// failure doesn't wipe the node's progress (spec §4.4).
		step.OutputText = truncate(output)
	} else {
		step.Status = domain.StepSucceeded
		step.OutputText = truncate(output)
	}
	_ = c.Repo.UpdateStep(ctx, step)

	return output, err
}

// aggregateInput is the AND-join of spec §4.5: join("\n\n", outputs of
// predecessors sorted alphabetically by node id). A node with no
// predecessors receives "".
func aggregateInput(predecessors []string, outputs map[string]string) string {
	if len(predecessors) == 0 {
		return ""
	}
	parts := make([]string, len(predecessors))
	for i, p := range predecessors {
		parts[i] = outputs[p]
	}
	return strings.Join(parts, "\n\n")
}

// aggregateSinks concatenates (alphabetically by node id) the outputs
// of nodes with no successors (spec §4.5).
func (c *Coordinator) aggregateSinks(g *graph.Graph, outputs map[string]string) string {
	sinks := g.Sinks()
	parts := make([]string, len(sinks))
	for i, s := range sinks {
		parts[i] = outputs[s]
	}
	return strings.Join(parts, "\n\n")
}

func (c *Coordinator) fail(ctx context.Context, job *domain.Job, nodeID string, err error) {
	job.Status = domain.JobFailed
	now := time.Now()
	job.FinishedAt = &now
	msg := err.Error()
	if nodeID != "" {
		msg = nodeID + ": " + msg
	}
	job.ErrorMessage = &msg
	_ = c.Repo.UpdateJob(ctx, job)
}

func snapshotConfig(config map[string]any) map[string]any {
	cp := make(map[string]any, len(config))
	for k, v := range config {
		cp[k] = v
	}
	return cp
}

func truncate(s string) string {
	if len(s) <= maxStoredTextBytes {
		return s
	}
	return s[:maxStoredTextBytes]
}
