package validators

import "fmt"

// ValidateFieldRuleConfig is called by the Rule Compiler at compile time,
// before any request is ever validated, so an unknown field-rule key is a
// CompileError and never a per-request surprise (spec.md §8 universal
// property 4 generalizes from validator names to the field-rule language
// they host). A sequence config (query's bare whitelist form) has no
// per-field rules to check and is always valid at this stage.
func ValidateFieldRuleConfig(config any) error {
	fields, ok := config.(map[string]any)
	if !ok {
		return nil
	}
	for field, raw := range fields {
		if _, err := parseFieldRule(raw); err != nil {
			return fmt.Errorf("field %q: %w", field, err)
		}
	}
	return nil
}
