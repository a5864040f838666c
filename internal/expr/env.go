// Package expr implements the sandboxed boolean-expression sub-language rule
// conditions are written in. Expressions run against an injection map of
// caller-supplied variables (conventionally named "$userid", "$value", etc.)
// and never touch host state, I/O, or a clock.
package expr

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// Error reports a failure to compile or evaluate a sandboxed expression. It
// always carries the original source text so callers surface a useful
// diagnostic without re-deriving it from a wrapped error chain.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("expr: %q: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Environment hosts the single CEL environment every compiled Program runs
// against. CEL was chosen because it is already a hermetic, side-effect-free
// expression language with no assignment and no user-defined functions,
// matching the sandbox's contract without the engine having to author and
// maintain its own interpreter.
type Environment struct {
	env *cel.Env
}

// NewEnvironment builds the sandbox environment. A single "vars" map
// carries every injected binding; bare identifiers such as "$userid" in
// rule source are rewritten to "vars[\"userid\"]" before compilation so rule
// authors can use the conventional "$"-prefixed spelling from spec.md
// without CEL's identifier grammar (which disallows "$") ever seeing it.
func NewEnvironment() (*Environment, error) {
	env, err := cel.NewEnv(
		cel.Variable("vars", cel.MapType(cel.StringType, cel.DynType)),
		cel.Function("lookup",
			cel.Overload("lookup_map_string",
				[]*cel.Type{cel.MapType(cel.StringType, cel.DynType), cel.StringType},
				cel.DynType,
				cel.BinaryBinding(lookupMapValue),
			),
		),
		cel.HomogeneousAggregateLiterals(),
	)
	if err != nil {
		return nil, fmt.Errorf("expr: build environment: %w", err)
	}
	return &Environment{env: env}, nil
}

// Program wraps a compiled CEL program. Its result is coerced to bool via
// the truthiness rule in spec.md §4.1: null/undefined, empty string,
// numeric zero, and false are false; everything else is true.
type Program struct {
	source  string
	program cel.Program
}

// Compile prepares expression for execution. An *Error wraps any
// compile-time failure so callers can tell an ExpressionError apart from a
// structural fault.
func (e *Environment) Compile(expression string) (Program, error) {
	src := strings.TrimSpace(expression)
	if src == "" {
		return Program{}, &Error{Source: expression, Err: fmt.Errorf("expression required")}
	}
	rewritten := rewriteDollarIdentifiers(src)
	ast, issues := e.env.Compile(rewritten)
	if issues != nil && issues.Err() != nil {
		return Program{}, &Error{Source: src, Err: issues.Err()}
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return Program{}, &Error{Source: src, Err: err}
	}
	return Program{source: src, program: program}, nil
}

// Source returns the original (pre-rewrite) expression text, for logging and
// error messages.
func (p Program) Source() string { return p.source }

// EvalBool executes the program against bindings and coerces the result to
// bool per the truthiness table in spec.md §4.1. A binding key may be
// spelled with or without its leading "$" ("$userid" or "userid"); when
// both spellings are present, the one without "$" wins.
func (p Program) EvalBool(bindings map[string]any) (bool, error) {
	if p.program == nil {
		return false, &Error{Source: p.source, Err: fmt.Errorf("program not initialized")}
	}
	vars := make(map[string]any, len(bindings))
	for k, v := range bindings {
		if !strings.HasPrefix(k, "$") {
			vars[k] = v
		}
	}
	for k, v := range bindings {
		if name, ok := strings.CutPrefix(k, "$"); ok {
			if _, exists := vars[name]; !exists {
				vars[name] = v
			}
		}
	}
	val, _, err := p.program.Eval(map[string]any{"vars": vars})
	if err != nil {
		return false, &Error{Source: p.source, Err: err}
	}
	return truthy(val), nil
}

// truthy coerces a raw CEL result value into the boolean the matcher
// consumes. It deliberately mirrors spec.md's enumerated falsy set rather
// than deferring to Go's zero-value rules, since "" and 0 are explicit
// members of the contract, not an accident of representation.
func truthy(val ref.Val) bool {
	if val == nil || val == types.NullValue {
		return false
	}
	switch v := val.Value().(type) {
	case bool:
		return v
	case string:
		return v != ""
	case int64:
		return v != 0
	case uint64:
		return v != 0
	case float64:
		return v != 0
	case nil:
		return false
	default:
		return true
	}
}

func lookupMapValue(mapVal ref.Val, key ref.Val) ref.Val {
	mapper, ok := mapVal.(traits.Mapper)
	if !ok {
		return types.NewErr("expr: lookup only supports string-key maps")
	}
	value, found := mapper.Find(key)
	if !found {
		return types.NullValue
	}
	if value == nil {
		return types.NullValue
	}
	return value
}

// rewriteDollarIdentifiers rewrites bare "$name" tokens into "vars[\"name\"]"
// outside of quoted string literals, so injection-map variables can be
// referenced using the conventional spelling from spec.md (e.g. "$userid")
// while the underlying expression stays valid CEL.
func rewriteDollarIdentifiers(src string) string {
	var out strings.Builder
	runes := []rune(src)
	var quote rune
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if quote != 0 {
			out.WriteRune(r)
			if r == '\\' && i+1 < len(runes) {
				i++
				out.WriteRune(runes[i])
				continue
			}
			if r == quote {
				quote = 0
			}
			continue
		}
		if r == '\'' || r == '"' {
			quote = r
			out.WriteRune(r)
			continue
		}
		if r == '$' && i+1 < len(runes) && isIdentStart(runes[i+1]) {
			j := i + 1
			for j < len(runes) && isIdentPart(runes[j]) {
				j++
			}
			name := string(runes[i+1 : j])
			out.WriteString(`vars["`)
			out.WriteString(name)
			out.WriteString(`"]`)
			i = j - 1
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
