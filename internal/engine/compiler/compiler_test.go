package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"passgate/internal/engine/core"
	"passgate/internal/engine/registry"
	"passgate/internal/engine/validators"
	"passgate/internal/expr"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	env, err := expr.NewEnvironment()
	require.NoError(t, err)
	reg := registry.New()
	require.NoError(t, validators.RegisterBuiltins(reg, env))
	return reg
}

func TestCompileBooleanShorthand(t *testing.T) {
	reg := newRegistry(t)
	rules, err := Compile(map[string]any{"update": true}, reg)
	require.NoError(t, err)
	require.Len(t, rules.Actions["update"], 1)
	variant := rules.Actions["update"][0]
	require.Len(t, variant.Processors, 4)
	require.Equal(t, "condition", variant.Processors[0].Name)
	require.Equal(t, true, variant.Processors[0].Config)
}

func TestCompileScenarioS1Shape(t *testing.T) {
	reg := newRegistry(t)
	raw := map[string]any{
		"update": map[string]any{
			"condition": true,
			"data":      map[string]any{"title": map[string]any{"required": true}},
		},
	}
	rules, err := Compile(raw, reg)
	require.NoError(t, err)
	require.Len(t, rules.Actions["update"], 1)
	variant := rules.Actions["update"][0]
	require.Equal(t, "condition", variant.Processors[0].Name)
	require.Equal(t, "data", variant.Processors[1].Name)
	require.Equal(t, "query", variant.Processors[2].Name)
	require.Equal(t, "multi", variant.Processors[3].Name)
}

func TestCompileUnknownValidatorFatal(t *testing.T) {
	reg := newRegistry(t)
	_, err := Compile(map[string]any{"update": map[string]any{"bogus": true}}, reg)
	require.Error(t, err)
	require.ErrorIs(t, err, core.ErrUnknownValidator)
}

func TestCompileUnknownFieldRuleFatalAtCompileTime(t *testing.T) {
	reg := newRegistry(t)
	_, err := Compile(map[string]any{
		"add": map[string]any{"data": map[string]any{"title": map[string]any{"bogus": true}}},
	}, reg)
	require.Error(t, err)
	require.ErrorIs(t, err, core.ErrUnknownRule)
}

func TestCompileSchemaIsWrappedAndSeparate(t *testing.T) {
	reg := newRegistry(t)
	rules, err := Compile(map[string]any{"$schema": map[string]any{"title": "string"}}, reg)
	require.NoError(t, err)
	require.Nil(t, rules.Actions["$schema"])
	require.NotNil(t, rules.Schema)
	require.Equal(t, "data", rules.Schema.Processors[1].Name)
	require.Equal(t, map[string]any{"title": "string"}, rules.Schema.Processors[1].Config)
}

func TestCompileSequenceOfVariants(t *testing.T) {
	reg := newRegistry(t)
	raw := map[string]any{
		"read": []any{
			map[string]any{"condition": `$role == "admin"`},
			map[string]any{"condition": true},
		},
	}
	rules, err := Compile(raw, reg)
	require.NoError(t, err)
	require.Len(t, rules.Actions["read"], 2)
}
