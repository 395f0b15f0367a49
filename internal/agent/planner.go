package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/textforge/dagflow/internal/services"
)

// LLMPlanner is the production Planner: it asks the LLM client to
// choose the next action and parses a small directive grammar out of
// the response. Grounded on the teacher's OpenAICompletionExecutor
// prompt-construction shape
// (internal/application/executor/node_executors.go), adapted from a
// single completion call into the repeated plan step of an agent
// loop.
//
// Response grammar (one line, case-insensitive prefix):
//
//	FINISH
//	LLM_CALL: <prompt>
//	FORMATTER: <rule1>,<rule2>,...
type LLMPlanner struct {
	LLM   services.LLMClient
	Model string
}

func (p *LLMPlanner) Plan(ctx context.Context, objective, scratch string, tools []string) (Action, error) {
	prompt := fmt.Sprintf(
		"Objective: %s\nAllowed tools: %s\nCurrent scratch text:\n%s\n\n"+
			"Respond with exactly one line: FINISH, or LLM_CALL: <prompt>, or FORMATTER: <comma-separated rules>.",
		objective, strings.Join(tools, ", "), scratch,
	)

	model := p.Model
	if model == "" {
		model = "gpt-4.1-mini"
	}

	resp, err := p.LLM.Complete(ctx, services.LLMRequest{Model: model, Prompt: prompt})
	if err != nil {
		return Action{}, fmt.Errorf("planner: %w", err)
	}
	return parseAction(resp)
}

func parseAction(resp string) (Action, error) {
	line := strings.TrimSpace(strings.SplitN(resp, "\n", 2)[0])
	upper := strings.ToUpper(line)

	switch {
	case upper == "FINISH" || strings.HasPrefix(upper, "FINISH"):
		return Action{Tool: "finish"}, nil
	case strings.HasPrefix(upper, "LLM_CALL:"):
		return Action{Tool: "llm_call", Prompt: strings.TrimSpace(line[len("LLM_CALL:"):])}, nil
	case strings.HasPrefix(upper, "FORMATTER:"):
		rulesPart := strings.TrimSpace(line[len("FORMATTER:"):])
		var rules []string
		for _, r := range strings.Split(rulesPart, ",") {
			if r = strings.TrimSpace(r); r != "" {
				rules = append(rules, r)
			}
		}
		return Action{Tool: "formatter", Rules: rules}, nil
	default:
		return Action{}, fmt.Errorf("planner: unrecognized directive %q", line)
	}
}
