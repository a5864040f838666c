package validators

import (
	"context"
	"errors"

	"passgate/internal/engine/core"
	"passgate/internal/expr"
)

// Condition builds the `condition` built-in (spec.md §4.3.1): config is a
// boolean, a sandbox expression string, or a sequence mixing both. A
// sequence is a conjunction — every element must hold — evaluated in order
// with the same short-circuit discipline the matcher itself uses.
func Condition(env *expr.Environment) core.Handler {
	return func(ctx context.Context, config any, vctx *core.ValidatorContext) (string, error) {
		if config == nil {
			return "", nil
		}
		ok, err := evalConditionConfig(env, config, vctx.Injections)
		if err != nil {
			var exprErr *expr.Error
			if errors.As(err, &exprErr) {
				return exprErr.Error(), nil
			}
			return "", err
		}
		if !ok {
			return conditionNonMatch, nil
		}
		return "", nil
	}
}

func evalConditionConfig(env *expr.Environment, config any, injections map[string]any) (bool, error) {
	switch v := config.(type) {
	case bool:
		return v, nil
	case string:
		prog, err := env.Compile(v)
		if err != nil {
			return false, err
		}
		return prog.EvalBool(injections)
	case []any:
		for _, elem := range v {
			ok, err := evalConditionConfig(env, elem, injections)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	default:
		return true, nil
	}
}
