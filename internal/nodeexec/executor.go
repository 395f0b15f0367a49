package nodeexec

import (
	"context"
	"log/slog"

	"github.com/textforge/dagflow/internal/domain"
	"github.com/textforge/dagflow/internal/services"
)

// Services is the capability bundle every node executor receives
// (spec §4.2): a file store for extract_text, an LLM client for
// generative_ai (and, via the agent runtime, for agent nodes), a
// clock for deterministic timing, and a logger.
type Services struct {
	Files  services.FileStore
	PDF    services.PDFExtractor
	LLM    services.LLMClient
	Clock  services.Clock
	Logger *slog.Logger
}

// Executor is the per-node-type execution contract (spec §4.2).
// Executors are referentially pure given config/input/services: they
// must not retain per-invocation state between calls.
type Executor interface {
	Execute(ctx context.Context, config map[string]any, inputText string, svc Services) (string, error)
}

// Registry dispatches a node type to its Executor.
type Registry struct {
	executors map[domain.NodeType]Executor
}

// NewRegistry builds a Registry with the three built-in executors
// wired in and agentExec (which may be nil) for NodeTypeAgent, grounded on the teacher's WorkflowEngine.
// registerDefaultExecutors (engine.go) — a fixed map from NodeType to
// executor instance, populated once at construction.
func NewRegistry(agentExec Executor) *Registry {
	return &Registry{
		executors: map[domain.NodeType]Executor{
			domain.NodeTypeExtractText:  &ExtractTextExecutor{},
			domain.NodeTypeGenerativeAI: &GenerativeAIExecutor{},
			domain.NodeTypeFormatter:    &FormatterExecutor{},
			domain.NodeTypeAgent:        agentExec,
		},
	}
}

// Dispatch looks up and runs the executor registered for nodeType.
func (r *Registry) Dispatch(ctx context.Context, nodeType domain.NodeType, config map[string]any, inputText string, svc Services) (string, error) {
	exec, ok := r.executors[nodeType]
	if !ok || exec == nil {
		return "", &nodeTypeError{nodeType: string(nodeType)}
	}
	return exec.Execute(ctx, config, inputText, svc)
}

type nodeTypeError struct{ nodeType string }

func (e *nodeTypeError) Error() string {
	return "no executor registered for node type " + e.nodeType
}
