package validators

import (
	"context"

	"passgate/internal/engine/core"
	"passgate/internal/expr"
)

// Query builds the `query` built-in (spec.md §4.3.3). config is either a
// sequence of allowed top-level field names, or a mapping that doubles as a
// whitelist and a per-field rule table (the same field-rule language `data`
// uses, applied against request.Query instead of request.Data).
func Query(env *expr.Environment) core.Handler {
	return func(ctx context.Context, config any, vctx *core.ValidatorContext) (string, error) {
		if config == nil {
			return "", nil
		}
		req := vctx.Request
		action, _ := core.ParseAction(req.Action)

		if req.Query == nil {
			return queryUndefined, nil
		}
		query := req.Query

		var allowed map[string]struct{}
		var fieldRules map[string]any
		switch c := config.(type) {
		case []any:
			allowed = make(map[string]struct{}, len(c))
			for _, v := range c {
				if s, ok := v.(string); ok {
					allowed[s] = struct{}{}
				}
			}
		case map[string]any:
			allowed = make(map[string]struct{}, len(c))
			for k := range c {
				allowed[k] = struct{}{}
			}
			fieldRules = c
		default:
			return "", nil
		}

		inputFields := StripOperatorKeys(query)
		for _, field := range inputFields {
			if _, ok := allowed[field]; !ok {
				return queryFieldNotAllowed(field), nil
			}
		}

		if fieldRules == nil {
			return "", nil
		}
		for _, fieldName := range sortedFieldNames(fieldRules) {
			rule, err := parseFieldRule(fieldRules[fieldName])
			if err != nil {
				return "", err
			}
			value, has := query[fieldName]
			has = has && value != nil
			msg, err := evalField(ctx, env, rule, fieldName, value, has, action, query, vctx)
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
