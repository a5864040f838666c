package validators

import (
	"fmt"

	"passgate/internal/engine/registry"
	"passgate/internal/expr"
)

// RegisterBuiltins seeds reg with the four built-in validators in the fixed
// order spec.md §4.5 requires ("built-ins register in a fixed order:
// condition, data, query, multi, …"). Callers registering custom
// validators should do so only after this call returns.
func RegisterBuiltins(reg *registry.Registry, env *expr.Environment) error {
	if err := reg.Register("condition", Condition(env)); err != nil {
		return fmt.Errorf("validators: %w", err)
	}
	if err := reg.Register("data", Data(env)); err != nil {
		return fmt.Errorf("validators: %w", err)
	}
	if err := reg.Register("query", Query(env)); err != nil {
		return fmt.Errorf("validators: %w", err)
	}
	if err := reg.Register("multi", Multi(env)); err != nil {
		return fmt.Errorf("validators: %w", err)
	}
	return nil
}
