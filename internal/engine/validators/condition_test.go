package validators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"passgate/internal/engine/core"
)

func TestConditionBooleanShorthand(t *testing.T) {
	env := newTestEnv(t)
	handler := Condition(env)
	vctx := &core.ValidatorContext{Request: &core.Request{}, Injections: map[string]any{}}

	msg, err := handler(context.Background(), true, vctx)
	require.NoError(t, err)
	require.Empty(t, msg)

	msg, err = handler(context.Background(), false, vctx)
	require.NoError(t, err)
	require.Equal(t, conditionNonMatch, msg)
}

func TestConditionAbsentIsNoop(t *testing.T) {
	env := newTestEnv(t)
	handler := Condition(env)
	vctx := &core.ValidatorContext{Request: &core.Request{}, Injections: map[string]any{}}

	msg, err := handler(context.Background(), nil, vctx)
	require.NoError(t, err)
	require.Empty(t, msg)
}

func TestConditionExpressionOverInjections(t *testing.T) {
	env := newTestEnv(t)
	handler := Condition(env)
	vctx := &core.ValidatorContext{Request: &core.Request{}, Injections: map[string]any{"userid": int64(123), "value": int64(123)}}

	msg, err := handler(context.Background(), "$userid == $value", vctx)
	require.NoError(t, err)
	require.Empty(t, msg)

	vctx.Injections = map[string]any{"userid": int64(1), "value": int64(123)}
	msg, err = handler(context.Background(), "$userid == $value", vctx)
	require.NoError(t, err)
	require.Equal(t, conditionNonMatch, msg)
}

func TestConditionMalformedExpressionIsNonMatch(t *testing.T) {
	env := newTestEnv(t)
	handler := Condition(env)
	vctx := &core.ValidatorContext{Request: &core.Request{}, Injections: map[string]any{}}

	msg, err := handler(context.Background(), "$userid ==", vctx)
	require.NoError(t, err)
	require.NotEmpty(t, msg)
}

func TestConditionSequenceIsConjunction(t *testing.T) {
	env := newTestEnv(t)
	handler := Condition(env)
	vctx := &core.ValidatorContext{Request: &core.Request{}, Injections: map[string]any{"role": "admin"}}

	msg, err := handler(context.Background(), []any{true, `$role == "admin"`}, vctx)
	require.NoError(t, err)
	require.Empty(t, msg)

	msg, err = handler(context.Background(), []any{true, `$role == "owner"`}, vctx)
	require.NoError(t, err)
	require.Equal(t, conditionNonMatch, msg)
}
