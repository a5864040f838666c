package validators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"passgate/internal/engine/core"
)

func TestMultiDefaultReadAllowed(t *testing.T) {
	env := newTestEnv(t)
	handler := Multi(env)
	req := &core.Request{Collection: "c", Action: "database.queryDocument", Multi: true}
	vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}

	msg, err := handler(context.Background(), nil, vctx)
	require.NoError(t, err)
	require.Empty(t, msg)
}

func TestMultiDefaultUpdateDenied(t *testing.T) {
	env := newTestEnv(t)
	handler := Multi(env)
	req := &core.Request{Collection: "c", Action: "database.updateDocument", Multi: true}
	vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}

	msg, err := handler(context.Background(), nil, vctx)
	require.NoError(t, err)
	require.Equal(t, multiOpDenied, msg)
}

func TestMultiInsertSequenceRequiresMultiFlag(t *testing.T) {
	env := newTestEnv(t)
	handler := Multi(env)
	req := &core.Request{Collection: "c", Action: "database.addDocument", Data: []map[string]any{{"a": 1}, {"a": 2}}, Multi: false}
	vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}

	msg, err := handler(context.Background(), nil, vctx)
	require.NoError(t, err)
	require.Equal(t, multiInsertDenied, msg)
}

func TestMultiBooleanOverride(t *testing.T) {
	env := newTestEnv(t)
	handler := Multi(env)
	req := &core.Request{Collection: "c", Action: "database.updateDocument", Multi: true}
	vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}

	msg, err := handler(context.Background(), true, vctx)
	require.NoError(t, err)
	require.Empty(t, msg)
}

func TestMultiExpressionOverride(t *testing.T) {
	env := newTestEnv(t)
	handler := Multi(env)
	req := &core.Request{Collection: "c", Action: "database.updateDocument", Multi: true, Query: map[string]any{"owner": "u1"}}
	vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{"role": "admin"}}

	msg, err := handler(context.Background(), `$role == "admin"`, vctx)
	require.NoError(t, err)
	require.Empty(t, msg)
}

func TestMultiMalformedExpressionIsNonMatch(t *testing.T) {
	env := newTestEnv(t)
	handler := Multi(env)
	req := &core.Request{Collection: "c", Action: "database.updateDocument", Multi: true}
	vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{"role": "admin"}}

	msg, err := handler(context.Background(), `$role ==`, vctx)
	require.NoError(t, err)
	require.NotEmpty(t, msg)
}
