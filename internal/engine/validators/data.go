package validators

import (
	"context"

	"passgate/internal/engine/core"
	"passgate/internal/expr"
)

// Data builds the `data` built-in (spec.md §4.3.2). It only has anything to
// say for `add` and `update`; on other actions request.Data isn't part of
// the contract and the validator is a no-op, mirroring "applies to add and
// update actions" — a request for a different action simply never supplies
// data, so the precondition chain below is unreachable for them too.
func Data(env *expr.Environment) core.Handler {
	return func(ctx context.Context, config any, vctx *core.ValidatorContext) (string, error) {
		req := vctx.Request
		action, _ := core.ParseAction(req.Action)
		if action != core.ActionAdd && action != core.ActionUpdate {
			return "", nil
		}

		if req.Data == nil {
			return dataUndefined, nil
		}
		data, ok := req.Data.(map[string]any)
		if !ok {
			if _, isSeq := req.Data.([]map[string]any); isSeq {
				// Sequence inserts are governed by `multi`, not the
				// per-field data rules; nothing further to check here.
				return "", nil
			}
			return dataNotObject, nil
		}
		if len(data) == 0 {
			return dataEmpty, nil
		}

		if action == core.ActionUpdate {
			hasOp := HasOperator(data)
			if req.Merge && !hasOp {
				return dataMergeRequiresOperator, nil
			}
			if !req.Merge && hasOp {
				return dataMergeForbidsOperator, nil
			}
		}

		fieldRules, ok := config.(map[string]any)
		if !ok {
			return "", nil
		}
		flat := Flatten(data)
		for _, fieldName := range sortedFieldNames(fieldRules) {
			rule, err := parseFieldRule(fieldRules[fieldName])
			if err != nil {
				return "", err
			}
			value, has := flat[fieldName]
			has = has && value != nil
			msg, err := evalField(ctx, env, rule, fieldName, value, has, action, data, vctx)
			if err != nil {
				return "", err
			}
			if msg != "" {
				return msg, nil
			}
		}
		return "", nil
	}
}
