package validators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"passgate/internal/engine/core"
	"passgate/internal/expr"
)

func newTestEnv(t *testing.T) *expr.Environment {
	t.Helper()
	env, err := expr.NewEnvironment()
	require.NoError(t, err)
	return env
}

// TestScenarioS1DataEmpty implements spec.md scenario S1: rules
// {categories:{update:{condition:true,data:{title:{required:true}}}}},
// request {collection:"categories",action:"database.updateDocument",data:{}}
// -> errors [{type:"data",error:"data is empty"}].
func TestScenarioS1DataEmpty(t *testing.T) {
	env := newTestEnv(t)
	handler := Data(env)

	req := &core.Request{Collection: "categories", Action: "database.updateDocument", Data: map[string]any{}}
	vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}

	msg, err := handler(context.Background(), map[string]any{"title": map[string]any{"required": true}}, vctx)
	require.NoError(t, err)
	require.Equal(t, "data is empty", msg)
}

func TestDataUndefined(t *testing.T) {
	env := newTestEnv(t)
	handler := Data(env)
	req := &core.Request{Collection: "c", Action: "database.addDocument"}
	vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}

	msg, err := handler(context.Background(), nil, vctx)
	require.NoError(t, err)
	require.Equal(t, dataUndefined, msg)
}

func TestDataNotObject(t *testing.T) {
	env := newTestEnv(t)
	handler := Data(env)
	req := &core.Request{Collection: "c", Action: "database.addDocument", Data: "nope"}
	vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}

	msg, err := handler(context.Background(), nil, vctx)
	require.NoError(t, err)
	require.Equal(t, dataNotObject, msg)
}

func TestDataMergeRules(t *testing.T) {
	env := newTestEnv(t)
	handler := Data(env)

	t.Run("merge true without operator", func(t *testing.T) {
		req := &core.Request{Collection: "c", Action: "database.updateDocument", Merge: true, Data: map[string]any{"a": 1}}
		vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}
		msg, err := handler(context.Background(), nil, vctx)
		require.NoError(t, err)
		require.Equal(t, dataMergeRequiresOperator, msg)
	})

	t.Run("merge false with operator", func(t *testing.T) {
		req := &core.Request{Collection: "c", Action: "database.updateDocument", Merge: false, Data: map[string]any{"$set": map[string]any{"a": 1}}}
		vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}
		msg, err := handler(context.Background(), nil, vctx)
		require.NoError(t, err)
		require.Equal(t, dataMergeForbidsOperator, msg)
	})

	t.Run("merge true with operator ok", func(t *testing.T) {
		req := &core.Request{Collection: "c", Action: "database.updateDocument", Merge: true, Data: map[string]any{"$set": map[string]any{"a": 1}}}
		vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}
		msg, err := handler(context.Background(), nil, vctx)
		require.NoError(t, err)
		require.Empty(t, msg)
	})
}

func TestDataRequiredOnAdd(t *testing.T) {
	env := newTestEnv(t)
	handler := Data(env)

	req := &core.Request{Collection: "c", Action: "database.addDocument", Data: map[string]any{"other": 1}}
	vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}
	msg, err := handler(context.Background(), map[string]any{"title": map[string]any{"required": true}}, vctx)
	require.NoError(t, err)
	require.Equal(t, "title is required", msg)
}

func TestDataRequiredIgnoredOnUpdate(t *testing.T) {
	env := newTestEnv(t)
	handler := Data(env)

	req := &core.Request{Collection: "c", Action: "database.updateDocument", Data: map[string]any{"other": 1}}
	vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}
	msg, err := handler(context.Background(), map[string]any{"title": map[string]any{"required": true}}, vctx)
	require.NoError(t, err)
	require.Empty(t, msg)
}

func TestDataDefaultWritesValue(t *testing.T) {
	env := newTestEnv(t)
	handler := Data(env)

	data := map[string]any{"title": "Post"}
	req := &core.Request{Collection: "c", Action: "database.addDocument", Data: data}
	vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}
	msg, err := handler(context.Background(), map[string]any{"status": map[string]any{"default": "draft"}}, vctx)
	require.NoError(t, err)
	require.Empty(t, msg)
	require.Equal(t, "draft", data["status"])
}

func TestDataInRule(t *testing.T) {
	env := newTestEnv(t)
	handler := Data(env)

	req := &core.Request{Collection: "c", Action: "database.addDocument", Data: map[string]any{"status": "archived"}}
	vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}
	msg, err := handler(context.Background(), map[string]any{"status": map[string]any{"in": []any{"draft", "published"}}}, vctx)
	require.NoError(t, err)
	require.Equal(t, "status should equal to one of draft,published", msg)
}

func TestDataConditionUsesFieldValue(t *testing.T) {
	env := newTestEnv(t)
	handler := Data(env)

	req := &core.Request{Collection: "c", Action: "database.addDocument", Data: map[string]any{"age": int64(15)}}
	vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}
	msg, err := handler(context.Background(), map[string]any{"age": map[string]any{"condition": "$value >= 18"}}, vctx)
	require.NoError(t, err)
	require.Equal(t, conditionNonMatch, msg)
}

func TestDataMalformedConditionIsNonMatch(t *testing.T) {
	env := newTestEnv(t)
	handler := Data(env)

	req := &core.Request{Collection: "c", Action: "database.addDocument", Data: map[string]any{"age": int64(15)}}
	vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}
	msg, err := handler(context.Background(), map[string]any{"age": map[string]any{"condition": "$value >="}}, vctx)
	require.NoError(t, err)
	require.NotEmpty(t, msg)
	require.NotEqual(t, conditionNonMatch, msg)
}

func TestDataUnknownRuleIsFatal(t *testing.T) {
	env := newTestEnv(t)
	handler := Data(env)

	req := &core.Request{Collection: "c", Action: "database.addDocument", Data: map[string]any{"a": 1}}
	vctx := &core.ValidatorContext{Request: req, Injections: map[string]any{}}
	_, err := handler(context.Background(), map[string]any{"a": map[string]any{"bogus": true}}, vctx)
	require.ErrorIs(t, err, core.ErrUnknownRule)
}
