// Package compiler turns a raw rule-source document for a single collection
// into a compiled set of validator pipelines, per spec.md §4.4. It never
// executes a rule — only validates its shape against the registry and
// materializes a Processor per registered validator so the matcher has a
// uniform structure to walk regardless of which keys a variant mentions.
package compiler

import (
	"fmt"

	"passgate/internal/engine/core"
	"passgate/internal/engine/registry"
	"passgate/internal/engine/validators"
)

// Processor pairs a registered validator's handler with the raw config a
// particular variant supplied for it (nil when the variant didn't mention
// this validator at all).
type Processor struct {
	Name    string
	Handler core.Handler
	Config  any
}

// CompiledVariant is one normalized permission-config entry, expanded to
// carry a Processor for every registered validator in registration order.
type CompiledVariant struct {
	Processors []Processor
}

// CollectionRules is the compiled table for one collection: permission name
// (add/read/update/remove/count/watch) -> ordered variants, plus the
// optional $schema pseudo-permission, stored separately because the matcher
// never selects it (spec.md §4.4, Open Question (a)).
type CollectionRules struct {
	Actions map[string][]CompiledVariant
	Schema  *CompiledVariant
}

// Compile compiles the raw permission-config document for one collection.
// Keys of raw are permission names ("add", "read", ...) except the reserved
// "$schema" key.
func Compile(raw map[string]any, reg *registry.Registry) (CollectionRules, error) {
	out := CollectionRules{Actions: make(map[string][]CompiledVariant, len(raw))}
	for key, rawConfig := range raw {
		if key == "$schema" {
			variant, err := compileVariant(map[string]any{"data": rawConfig}, reg)
			if err != nil {
				return CollectionRules{}, &core.CompileError{Action: "$schema", Err: err}
			}
			out.Schema = &variant
			continue
		}
		variants, err := normalizeVariants(rawConfig)
		if err != nil {
			return CollectionRules{}, &core.CompileError{Action: key, Err: err}
		}
		compiled := make([]CompiledVariant, 0, len(variants))
		for i, v := range variants {
			cv, err := compileVariant(v, reg)
			if err != nil {
				return CollectionRules{}, &core.CompileError{Action: key, Err: fmt.Errorf("variant %d: %w", i, err)}
			}
			compiled = append(compiled, cv)
		}
		out.Actions[key] = compiled
	}
	return out, nil
}

// normalizeVariants expands the boolean/string/object/sequence shorthand
// permission-config shapes of spec.md §4.4 step 1 into a flat sequence of
// variant objects.
func normalizeVariants(raw any) ([]map[string]any, error) {
	switch v := raw.(type) {
	case bool:
		return []map[string]any{{"condition": v}}, nil
	case string:
		return []map[string]any{{"condition": v}}, nil
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, elem := range v {
			sub, err := normalizeVariants(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("permission-config required")
	default:
		return nil, fmt.Errorf("unsupported permission-config shape %T", raw)
	}
}

// compileVariant validates every key of raw against the registry (fatal
// UnknownValidator otherwise), eagerly validates `data`/`query` field-rule
// configs against the same registry-independent language, and materializes
// a Processor for every registered validator, in registration order, per
// spec.md §4.4 step 3.
func compileVariant(raw map[string]any, reg *registry.Registry) (CompiledVariant, error) {
	for name, config := range raw {
		if !reg.Has(name) {
			return CompiledVariant{}, fmt.Errorf("%q: %w", name, core.ErrUnknownValidator)
		}
		if name == "data" || name == "query" {
			if err := validators.ValidateFieldRuleConfig(config); err != nil {
				return CompiledVariant{}, fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	names := reg.Names()
	processors := make([]Processor, 0, len(names))
	for _, name := range names {
		handler, _ := reg.Lookup(name)
		processors = append(processors, Processor{Name: name, Handler: handler, Config: raw[name]})
	}
	return CompiledVariant{Processors: processors}, nil
}
