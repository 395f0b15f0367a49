package agent

import (
	"context"

	domainerr "github.com/textforge/dagflow/internal/domain/errors"
	"github.com/textforge/dagflow/internal/nodeexec"
)

// Executor adapts a Runner to the nodeexec.Executor contract so
// node-type dispatch can treat agent nodes the same as the three pure
// transforms (spec §4.2's "agent: delegates to C3"). Tools must be set
// to a registry covering at least generative_ai and formatter before
// Execute is called; it is wired in once at startup, before the
// top-level Registry (which embeds this Executor for NodeTypeAgent)
// is constructed.
type Executor struct {
	Planner Planner
	Tools   *nodeexec.Registry
}

func (e *Executor) Execute(ctx context.Context, config map[string]any, _ string, svc nodeexec.Services) (string, error) {
	cfg, err := nodeexec.ParseAgentConfig(config)
	if err != nil {
		return "", domainerr.Validationf("agent: %v", err)
	}

	runner := &Runner{
		Planner: e.Planner,
		Exec:    e.Tools,
		Svc:     svc,
	}
	result := runner.Run(ctx, *cfg)
	if result.Err != nil {
		return result.Output, domainerr.Wrap(domainerr.KindOf(result.Err), string(result.Reason)+": "+result.Err.Error(), result.Err)
	}
	return result.Output, nil
}
