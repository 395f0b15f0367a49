// Package agent implements the bounded plan/act/observe loop of spec
// §4.4 as an explicit state machine (design note §9), not an open
// recursive call graph, so its termination properties are directly
// testable.
//
// Grounded on the teacher's RetryExecutor/RetryPolicy
// (internal/application/executor/retry.go) for the backoff shape, with
// jitter dropped since the spec names exact backoff values (1s, 2s,
// 4s) rather than a jittered range.
package agent

import (
	"context"
	"time"

	"github.com/textforge/dagflow/internal/domain"
	domainerr "github.com/textforge/dagflow/internal/domain/errors"
	"github.com/textforge/dagflow/internal/nodeexec"
)

// TerminationReason is the closed set of reasons an agent loop stops
// (spec §4.4, GLOSSARY).
type TerminationReason string

const (
	ObjectiveMet        TerminationReason = "objective_met"
	IterationLimit      TerminationReason = "iteration_limit"
	TimeBudgetExhausted TerminationReason = "time_budget_exhausted"
	ToolError           TerminationReason = "tool_error"
	PlannerError        TerminationReason = "planner_error"
)

const defaultMaxIterations = 3

// Action is the planner's proposed next step.
type Action struct {
	// Tool is "llm_call", "formatter", or "finish".
	Tool   string
	Prompt string   // for llm_call
	Rules  []string // for formatter
}

// Planner proposes the next Action given the objective and the
// current scratch text. Implementations call out to an LLM; the agent
// loop treats the planner itself as a tool-like dependency subject to
// the same retry policy as any other transient failure.
type Planner interface {
	Plan(ctx context.Context, objective, scratch string, tools []string) (Action, error)
}

// Result is what the run coordinator records for an agent node's
// JobStep: Output becomes output_text on success, Reason+Err populate
// error_message on failure.
type Result struct {
	Output string
	Reason TerminationReason
	Err    error
}

// Runner executes the agent loop described in spec §4.4.
type Runner struct {
	Planner Planner
	Exec    *nodeexec.Registry // used to dispatch the llm_call/formatter tools
	Svc     nodeexec.Services
}

// Run drives the plan/act/observe loop to completion or to one of the
// closed termination reasons.
func (r *Runner) Run(ctx context.Context, cfg nodeexec.AgentConfig) Result {
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	deadline := r.Svc.Clock.Now().Add(time.Duration(cfg.Budgets.ExecutionTime * float64(time.Second)))
	scratch := ""

	for iteration := 0; iteration < maxIterations; iteration++ {
		if !r.Svc.Clock.Now().Before(deadline) {
			return Result{Output: scratch, Reason: TimeBudgetExhausted, Err: domainerr.New(domainerr.Budget, "agent: time budget exhausted")}
		}

		action, err := retryWithBackoff(ctx, maxRetries, func(ctx context.Context) (Action, error) {
			return r.Planner.Plan(ctx, cfg.Objective, scratch, cfg.Tools)
		})
		if err != nil {
			return Result{Output: scratch, Reason: PlannerError, Err: domainerr.Wrap(domainerr.Internal, "agent: planner failed", err)}
		}

		if action.Tool == "finish" {
			return Result{Output: scratch, Reason: ObjectiveMet}
		}

		if !allowedTool(cfg.Tools, action.Tool) {
			return Result{Output: scratch, Reason: ToolError, Err: domainerr.Validationf("agent: tool %q is not in the node's whitelist", action.Tool)}
		}

		callTool := func(ctx context.Context) (string, error) {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return r.act(callCtx, action, scratch)
		}

		var output string
		if action.Tool == "llm_call" {
			// Only the LLM call is subject to the transient-failure
			// retry policy (spec §4.4); formatter errors (e.g. an
			// unknown rule name) are never transient and must fail the
			// iteration immediately instead of burning the backoff
			// schedule.
			output, err = retryWithBackoff(ctx, maxRetries, callTool)
		} else {
			output, err = callTool(ctx)
		}
		if err != nil {
			return Result{Output: scratch, Reason: ToolError, Err: domainerr.Wrap(domainerr.UpstreamUnavailable, "agent: tool call failed", err)}
		}

		scratch = appendObservation(scratch, output)
	}

	return Result{Output: scratch, Reason: IterationLimit, Err: domainerr.New(domainerr.Budget, "agent: iteration limit reached")}
}

func (r *Runner) act(ctx context.Context, action Action, scratch string) (string, error) {
	switch action.Tool {
	case "llm_call":
		config := map[string]any{"model": "gpt-4.1-mini", "prompt": action.Prompt}
		return r.Exec.Dispatch(ctx, domain.NodeTypeGenerativeAI, config, scratch, r.Svc)
	case "formatter":
		config := map[string]any{"rules": action.Rules}
		return r.Exec.Dispatch(ctx, domain.NodeTypeFormatter, config, scratch, r.Svc)
	default:
		return "", domainerr.Validationf("agent: unknown tool %q", action.Tool)
	}
}

func allowedTool(whitelist []string, tool string) bool {
	for _, t := range whitelist {
		if t == tool {
			return true
		}
	}
	return false
}

func appendObservation(scratch, observation string) string {
	if scratch == "" {
		return observation
	}
	return scratch + "\n\n" + observation
}

// retryWithBackoff runs op with the spec's fixed exponential backoff
// (1s, 2s, 4s; no jitter — the spec names exact values) up to
// maxRetries additional attempts after the first. Go methods cannot
// carry their own type parameters, so this is a free function rather
// than a method on Runner.
func retryWithBackoff[T any](ctx context.Context, maxRetries int, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := time.Second

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return zero, lastErr
}
