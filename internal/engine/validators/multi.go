package validators

import (
	"context"
	"errors"

	"passgate/internal/engine/core"
	"passgate/internal/expr"
)

// Multi builds the `multi` built-in (spec.md §4.3.4), governing whether a
// request may affect more than one document.
func Multi(env *expr.Environment) core.Handler {
	return func(ctx context.Context, config any, vctx *core.ValidatorContext) (string, error) {
		req := vctx.Request
		action, _ := core.ParseAction(req.Action)

		if action == core.ActionAdd {
			if _, isSeq := req.Data.([]map[string]any); isSeq && !req.Multi {
				return multiInsertDenied, nil
			}
		}

		allow, err := resolveMultiAllow(env, config, action, vctx)
		if err != nil {
			var exprErr *expr.Error
			if errors.As(err, &exprErr) {
				return exprErr.Error(), nil
			}
			return "", err
		}
		if !allow && req.Multi {
			return multiOpDenied, nil
		}
		return "", nil
	}
}

func resolveMultiAllow(env *expr.Environment, config any, action core.Action, vctx *core.ValidatorContext) (bool, error) {
	switch c := config.(type) {
	case nil:
		return action == core.ActionRead, nil
	case bool:
		return c, nil
	case string:
		bindings := mergeBindings(vctx.Injections, map[string]any{
			"query": vctx.Request.Query,
			"data":  vctx.Request.Data,
			"multi": vctx.Request.Multi,
		})
		prog, err := env.Compile(c)
		if err != nil {
			return false, err
		}
		return prog.EvalBool(bindings)
	default:
		return action == core.ActionRead, nil
	}
}
