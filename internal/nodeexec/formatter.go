package nodeexec

import (
	"context"
	"strings"

	"golang.org/x/text/width"

	domainerr "github.com/textforge/dagflow/internal/domain/errors"
)

// The closed set of formatter rules (spec §4.2). Rules run in the
// order listed in config, not in the order declared here.
const (
	RuleLowercase  = "lowercase"
	RuleUppercase  = "uppercase"
	RuleFullToHalf = "full_to_half"
	RuleHalfToFull = "half_to_full"
)

// FormatterExecutor applies a sequence of text transforms to the
// input text. Grounded on the teacher's TextProcessorExecutor shape
// (node_executors.go) and generalized from its fixed upper/lower
// toggle to the spec's ordered rule list, with full/half-width
// conversion added via golang.org/x/text/width (not used by the
// teacher itself).
type FormatterExecutor struct{}

func (e *FormatterExecutor) Execute(_ context.Context, config map[string]any, inputText string, _ Services) (string, error) {
	cfg, err := parseConfig[FormatterConfig](config)
	if err != nil {
		return "", domainerr.Validationf("formatter: %v", err)
	}

	out := inputText
	for _, rule := range cfg.Rules {
		switch rule {
		case RuleLowercase:
			out = strings.ToLower(out)
		case RuleUppercase:
			out = strings.ToUpper(out)
		case RuleFullToHalf:
			out = width.Narrow.String(out)
		case RuleHalfToFull:
			out = width.Widen.String(out)
		default:
			return "", domainerr.Validationf("formatter: unknown rule %q", rule)
		}
	}
	return out, nil
}
