// Package matcher implements the Rule Matcher (spec.md §4.5): given a
// compiled permission table, a request, and an injection map, it walks rule
// variants in source order and, within each, validators in registration
// order, stopping at the first variant where every validator is silent.
package matcher

import (
	"context"
	"fmt"

	"passgate/internal/engine/compiler"
	"passgate/internal/engine/core"
)

// Result is the outcome of Validate: exactly one of Matched or Errors is
// populated, never both (spec.md §8 universal property 1).
type Result struct {
	Matched *compiler.CompiledVariant
	Errors  []core.ValidateError
}

// Table is the compiled permission table the matcher reads: collection name
// -> compiled rules. Callers (the Engine) are responsible for ensuring no
// mutation of Table overlaps a Validate call in progress (spec.md §5).
type Table map[string]compiler.CollectionRules

// Validate runs the matching algorithm of spec.md §4.5. accessor is
// threaded through to every validator call for exists/unique lookups; a
// non-nil error return is always a fault (AccessorError or a cancelled
// context), never a non-match — non-matches are reported through
// Result.Errors instead.
func Validate(ctx context.Context, table Table, request *core.Request, injections map[string]any, accessor core.Accessor) (Result, error) {
	collectionRules, ok := table[request.Collection]
	if !ok {
		return Result{Errors: []core.ValidateError{{
			Type:  0,
			Error: fmt.Sprintf("collection %q not found", request.Collection),
		}}}, nil
	}

	action, ok := core.ParseAction(request.Action)
	if !ok {
		return Result{Errors: []core.ValidateError{{
			Type:  0,
			Error: fmt.Sprintf("action %q invalid", request.Action),
		}}}, nil
	}

	variants, ok := collectionRules.Actions[action.PermissionName()]
	if !ok {
		return Result{Errors: []core.ValidateError{{
			Type:  0,
			Error: fmt.Sprintf("%s %s don't has any rules", request.Collection, request.Action),
		}}}, nil
	}

	vctx := &core.ValidatorContext{Request: request, Injections: injections, Accessor: accessor}

	var aggregated []core.ValidateError
	for i := range variants {
		variant := variants[i]
		matched := true
		for _, proc := range variant.Processors {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			msg, err := proc.Handler(ctx, proc.Config, vctx)
			if err != nil {
				return Result{}, err
			}
			if msg != "" {
				aggregated = append(aggregated, core.ValidateError{Type: proc.Name, Error: msg})
				matched = false
				break
			}
		}
		if matched {
			return Result{Matched: &variant}, nil
		}
	}
	return Result{Errors: aggregated}, nil
}
