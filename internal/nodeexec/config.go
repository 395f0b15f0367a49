// Package nodeexec implements the four node executors of spec §4.2:
// extract_text, generative_ai, formatter, and agent (which delegates
// to internal/agent). Config parsing follows the teacher's
// parseConfig[T] JSON round-trip helper
// (internal/application/executor/config_parser.go) and its per-type
// config structs (node_configs.go).
package nodeexec

import (
	"encoding/json"
	"fmt"

	"github.com/textforge/dagflow/internal/domain"
	domainerr "github.com/textforge/dagflow/internal/domain/errors"
)

// parseConfig converts a config map to a typed struct via a JSON
// round trip, which also normalizes JSON-ish types (float64 for
// numbers, etc.) the way a stored JSONB column would hand them back.
func parseConfig[T any](config map[string]any) (*T, error) {
	data, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &out, nil
}

// ExtractTextConfig is the config schema for extract_text nodes.
type ExtractTextConfig struct {
	FileID string `json:"file_id"`
}

// GenerativeAIConfig is the config schema for generative_ai nodes.
type GenerativeAIConfig struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// FormatterConfig is the config schema for formatter nodes.
type FormatterConfig struct {
	Rules []string `json:"rules"`
}

// AgentBudgets is the budgets sub-object of an agent node's config.
type AgentBudgets struct {
	ExecutionTime float64 `json:"execution_time"`
}

// AgentConfig is the config schema for agent nodes.
type AgentConfig struct {
	Objective       string       `json:"objective"`
	Tools           []string     `json:"tools"`
	Budgets         AgentBudgets `json:"budgets"`
	MaxConcurrent   int          `json:"max_concurrent,omitempty"`
	TimeoutSeconds  int          `json:"timeout_seconds,omitempty"`
	MaxRetries      int          `json:"max_retries,omitempty"`
	MaxIterations   int          `json:"max_iterations,omitempty"`
	FormattingRules []string     `json:"formatting_rules,omitempty"`
}

// AllowedModels is the closed set of generative_ai models the engine
// accepts (spec §4.2).
var AllowedModels = map[string]bool{
	"gpt-4.1-mini": true,
	"gpt-4o":       true,
	"gpt-5":        true,
}

const maxPromptLen = 4000

// AllowedAgentTools is the closed set of tools an agent node may
// whitelist (spec §4.3).
var AllowedAgentTools = map[string]bool{
	"llm_call":  true,
	"formatter": true,
}

// ValidateConfig checks a node's config against its type's schema.
// Called both at node-creation time and again at snapshot time
// (defense in depth, spec §4.3).
func ValidateConfig(nodeType domain.NodeType, config map[string]any) error {
	switch nodeType {
	case domain.NodeTypeExtractText:
		cfg, err := parseConfig[ExtractTextConfig](config)
		if err != nil {
			return domainerr.Validationf("extract_text: %v", err)
		}
		if cfg.FileID == "" {
			return domainerr.Validationf("extract_text: file_id is required")
		}

	case domain.NodeTypeGenerativeAI:
		cfg, err := parseConfig[GenerativeAIConfig](config)
		if err != nil {
			return domainerr.Validationf("generative_ai: %v", err)
		}
		if cfg.Model == "" {
			return domainerr.Validationf("generative_ai: model is required")
		}
		if !AllowedModels[cfg.Model] {
			return domainerr.Validationf("generative_ai: unsupported model %q", cfg.Model)
		}
		if cfg.Prompt == "" {
			return domainerr.Validationf("generative_ai: prompt is required")
		}
		if len(cfg.Prompt) > maxPromptLen {
			return domainerr.Validationf("generative_ai: prompt exceeds %d characters", maxPromptLen)
		}

	case domain.NodeTypeFormatter:
		cfg, err := parseConfig[FormatterConfig](config)
		if err != nil {
			return domainerr.Validationf("formatter: %v", err)
		}
		for _, rule := range cfg.Rules {
			if !isKnownFormatterRule(rule) {
				return domainerr.Validationf("formatter: unknown rule %q", rule)
			}
		}

	case domain.NodeTypeAgent:
		cfg, err := parseConfig[AgentConfig](config)
		if err != nil {
			return domainerr.Validationf("agent: %v", err)
		}
		if cfg.Objective == "" {
			return domainerr.Validationf("agent: objective is required")
		}
		if len(cfg.Tools) == 0 {
			return domainerr.Validationf("agent: tools must be nonempty")
		}
		for _, tool := range cfg.Tools {
			if !AllowedAgentTools[tool] {
				return domainerr.Validationf("agent: tool %q is not in the allowed set", tool)
			}
		}
		if cfg.MaxConcurrent > 10 {
			return domainerr.Validationf("agent: max_concurrent must be <= 10")
		}
		if cfg.TimeoutSeconds > 30 {
			return domainerr.Validationf("agent: timeout_seconds must be <= 30")
		}
		if cfg.MaxRetries > 3 {
			return domainerr.Validationf("agent: max_retries must be <= 3")
		}

	default:
		return domainerr.Validationf("unknown node type %q", nodeType)
	}
	return nil
}

// ParseAgentConfig exposes the agent config parse step for the agent
// runtime, which lives in a separate package to keep the plan/act/observe
// state machine out of the node-executor framework.
func ParseAgentConfig(config map[string]any) (*AgentConfig, error) {
	return parseConfig[AgentConfig](config)
}

func isKnownFormatterRule(rule string) bool {
	switch rule {
	case RuleLowercase, RuleUppercase, RuleFullToHalf, RuleHalfToFull:
		return true
	default:
		return false
	}
}
