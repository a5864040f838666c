package validators

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"

	"passgate/internal/engine/core"
	"passgate/internal/expr"
)

// fieldRule is the parsed shape of one entry of a `data`/`query` validator's
// field-rule config (spec.md §4.3.2). A bare string config is shorthand for
// {condition: "<string>"}.
type fieldRule struct {
	hasRequired bool
	required    bool

	hasDefault bool
	def        any

	in []any

	hasLength bool
	lengthMin float64
	lengthMax float64
	hasMaxLen bool

	hasNumber bool
	numberMin float64
	numberMax float64
	hasMaxNum bool

	hasMatch bool
	match    *regexp.Regexp

	hasExists  bool
	existsColl string
	existsKey  string

	hasUnique bool

	hasCondition bool
	condition    string
}

var allowedFieldRuleKeys = map[string]struct{}{
	"required": {}, "default": {}, "in": {}, "length": {}, "number": {},
	"match": {}, "exists": {}, "unique": {}, "condition": {},
}

func parseFieldRule(raw any) (fieldRule, error) {
	if s, ok := raw.(string); ok {
		return fieldRule{hasCondition: true, condition: s}, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return fieldRule{}, fmt.Errorf("field rule must be a string or object, got %T", raw)
	}
	var fr fieldRule
	for key, val := range m {
		if _, known := allowedFieldRuleKeys[key]; !known {
			return fieldRule{}, fmt.Errorf("%w: %q", core.ErrUnknownRule, key)
		}
		switch key {
		case "required":
			b, _ := val.(bool)
			fr.hasRequired = true
			fr.required = b
		case "default":
			fr.hasDefault = true
			fr.def = val
		case "in":
			seq, ok := val.([]any)
			if !ok {
				return fieldRule{}, fmt.Errorf("field rule \"in\" must be a sequence")
			}
			fr.in = seq
		case "length":
			min, max, hasMax, err := parseMinMax(val)
			if err != nil {
				return fieldRule{}, fmt.Errorf("field rule \"length\": %w", err)
			}
			fr.hasLength, fr.lengthMin, fr.lengthMax, fr.hasMaxLen = true, min, max, hasMax
		case "number":
			min, max, hasMax, err := parseMinMax(val)
			if err != nil {
				return fieldRule{}, fmt.Errorf("field rule \"number\": %w", err)
			}
			fr.hasNumber, fr.numberMin, fr.numberMax, fr.hasMaxNum = true, min, max, hasMax
		case "match":
			s, ok := val.(string)
			if !ok {
				return fieldRule{}, fmt.Errorf("field rule \"match\" must be a string")
			}
			re, err := regexp.Compile(s)
			if err != nil {
				return fieldRule{}, fmt.Errorf("field rule \"match\": %w", err)
			}
			fr.hasMatch, fr.match = true, re
		case "exists":
			s, ok := val.(string)
			if !ok {
				return fieldRule{}, fmt.Errorf("field rule \"exists\" must be a string")
			}
			coll, k, err := splitExistsPath(s)
			if err != nil {
				return fieldRule{}, fmt.Errorf("field rule \"exists\": %w", err)
			}
			fr.hasExists, fr.existsColl, fr.existsKey = true, coll, k
		case "unique":
			fr.hasUnique = truthyAny(val)
		case "condition":
			s, ok := val.(string)
			if !ok {
				return fieldRule{}, fmt.Errorf("field rule \"condition\" must be a string")
			}
			fr.hasCondition, fr.condition = true, s
		}
	}
	return fr, nil
}

func splitExistsPath(s string) (collection, key string, err error) {
	if len(s) == 0 || s[0] != '/' {
		return "", "", fmt.Errorf("expected \"/collection/key\", got %q", s)
	}
	rest := s[1:]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i], rest[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("expected \"/collection/key\", got %q", s)
}

func parseMinMax(val any) (min, max float64, hasMax bool, err error) {
	seq, ok := val.([]any)
	if !ok || len(seq) == 0 || len(seq) > 2 {
		return 0, 0, false, fmt.Errorf("expected [min] or [min, max]")
	}
	min, ok = asFloat(seq[0])
	if !ok {
		return 0, 0, false, fmt.Errorf("min must be numeric")
	}
	if len(seq) == 2 {
		max, ok = asFloat(seq[1])
		if !ok {
			return 0, 0, false, fmt.Errorf("max must be numeric")
		}
		hasMax = true
	}
	return min, max, hasMax, nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func truthyAny(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}

// evalField applies rule to fieldName for value (already resolved from the
// flattened view), in the table order of spec.md §4.3.2. The action gates
// required/default, which only take effect on `add`. Missing values (no
// value present and no applicable default) short-circuit the remaining
// checks for this field, matching the "partial updates" carve-out — applied
// uniformly to add and update since the remaining checks have nothing to
// validate against an absent value either way.
func evalField(ctx context.Context, env *expr.Environment, rule fieldRule, fieldName string, value any, has bool, action core.Action, data map[string]any, vctx *core.ValidatorContext) (string, error) {
	if action == core.ActionAdd {
		if !has && rule.hasDefault {
			value = rule.def
			has = true
			data[fieldName] = rule.def
		}
		if !has && rule.hasRequired && rule.required {
			return fmt.Sprintf("%s is required", fieldName), nil
		}
	}

	if !has {
		return "", nil
	}

	if len(rule.in) > 0 {
		match := false
		for _, candidate := range rule.in {
			if reflect.DeepEqual(candidate, value) {
				match = true
				break
			}
		}
		if !match {
			return fmt.Sprintf("%s should equal to one of %s", fieldName, csv(rule.in)), nil
		}
	}

	if rule.hasLength {
		s, ok := value.(string)
		if !ok {
			s = fmt.Sprint(value)
		}
		n := float64(len([]rune(s)))
		if n < rule.lengthMin || (rule.hasMaxLen && n > rule.lengthMax) {
			return fmt.Sprintf("length of %s should >= %s%s", fieldName, trimFloat(rule.lengthMin), maxClause(rule.hasMaxLen, rule.lengthMax)), nil
		}
	}

	if rule.hasNumber {
		n, ok := asFloat(value)
		if !ok {
			return fmt.Sprintf("%s should >= %s%s", fieldName, trimFloat(rule.numberMin), maxClause(rule.hasMaxNum, rule.numberMax)), nil
		}
		if n < rule.numberMin || (rule.hasMaxNum && n > rule.numberMax) {
			return fmt.Sprintf("%s should >= %s%s", fieldName, trimFloat(rule.numberMin), maxClause(rule.hasMaxNum, rule.numberMax)), nil
		}
	}

	if rule.hasMatch {
		s, ok := value.(string)
		if !ok {
			s = fmt.Sprint(value)
		}
		if !rule.match.MatchString(s) {
			return fmt.Sprintf("%s had invalid format", fieldName), nil
		}
	}

	if rule.hasExists {
		doc, ok, err := vctx.Accessor.Get(ctx, rule.existsColl, map[string]any{rule.existsKey: value})
		if err != nil {
			return "", &core.AccessorError{Collection: rule.existsColl, Err: err}
		}
		if !ok || doc == nil {
			return fmt.Sprintf("%s not exists", fieldName), nil
		}
	}

	if rule.hasUnique {
		doc, ok, err := vctx.Accessor.Get(ctx, vctx.Request.Collection, map[string]any{fieldName: value})
		if err != nil {
			return "", &core.AccessorError{Collection: vctx.Request.Collection, Err: err}
		}
		if ok && doc != nil {
			return fmt.Sprintf("%s already exists", fieldName), nil
		}
	}

	if rule.hasCondition {
		bindings := mergeBindings(vctx.Injections, map[string]any{"value": value})
		prog, err := env.Compile(rule.condition)
		if err != nil {
			var exprErr *expr.Error
			if errors.As(err, &exprErr) {
				return exprErr.Error(), nil
			}
			return "", err
		}
		ok, err := prog.EvalBool(bindings)
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
	}

	return "", nil
}

func mergeBindings(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func sortedFieldNames(config map[string]any) []string {
	names := make([]string, 0, len(config))
	for name := range config {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

func maxClause(hasMax bool, max float64) string {
	if !hasMax {
		return ""
	}
	return fmt.Sprintf(" and <= %s", trimFloat(max))
}

func csv(values []any) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprint(v)
	}
	return out
}
