package nodeexec

import (
	"context"
	"strings"
	"time"

	domainerr "github.com/textforge/dagflow/internal/domain/errors"
	"github.com/textforge/dagflow/internal/services"
)

const llmCallTimeout = 60 * time.Second // spec §5

// GenerativeAIExecutor renders config.prompt against the upstream
// input text and calls the LLM client. Grounded on the teacher's
// OpenAICompletionExecutor (node_executors.go), with API-key
// resolution dropped (the LLMClient owns its own credentials here)
// and model validation tightened to the spec's closed allowlist.
type GenerativeAIExecutor struct{}

const promptPlaceholder = "{text}"

func (e *GenerativeAIExecutor) Execute(ctx context.Context, config map[string]any, inputText string, svc Services) (string, error) {
	cfg, err := parseConfig[GenerativeAIConfig](config)
	if err != nil {
		return "", domainerr.Validationf("generative_ai: %v", err)
	}
	if !AllowedModels[cfg.Model] {
		return "", domainerr.Validationf("generative_ai: unsupported model %q", cfg.Model)
	}

	prompt := renderPrompt(cfg.Prompt, inputText)

	callCtx, cancel := context.WithTimeout(ctx, llmCallTimeout)
	defer cancel()

	text, err := svc.LLM.Complete(callCtx, services.LLMRequest{
		Model:       cfg.Model,
		Prompt:      prompt,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		TopP:        cfg.TopP,
	})
	if err != nil {
		return "", domainerr.Wrap(domainerr.UpstreamUnavailable, "generative_ai: llm call failed", err)
	}
	return text, nil
}

// renderPrompt substitutes the {text} placeholder with the upstream
// input. If the prompt contains no placeholder, the input is appended
// after a blank line so upstream context is never silently dropped
// (spec §4.2).
func renderPrompt(prompt, inputText string) string {
	if strings.Contains(prompt, promptPlaceholder) {
		return strings.ReplaceAll(prompt, promptPlaceholder, inputText)
	}
	if inputText == "" {
		return prompt
	}
	return prompt + "\n\n" + inputText
}
