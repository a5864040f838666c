package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"passgate/internal/accessor"
)

func TestAddAndGet(t *testing.T) {
	store := New()
	ctx := context.Background()

	ids, err := store.Add(ctx, "categories", []map[string]any{{"title": "Books"}})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	doc, ok, err := store.Get(ctx, "categories", map[string]any{"title": "Books"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Books", doc["title"])
}

func TestUniqueCheckViaGet(t *testing.T) {
	store := New()
	ctx := context.Background()
	store.Seed("users", "u1", map[string]any{"email": "a@b.com"})

	_, ok, err := store.Get(ctx, "users", map[string]any{"email": "a@b.com"})
	require.NoError(t, err)
	require.True(t, ok, "unique check should find the existing document")

	_, ok, err = store.Get(ctx, "users", map[string]any{"email": "nobody@b.com"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUpdateMultiFlag(t *testing.T) {
	store := New()
	ctx := context.Background()
	_, err := store.Add(ctx, "tasks", []map[string]any{{"status": "open"}, {"status": "open"}})
	require.NoError(t, err)

	n, err := store.Update(ctx, "tasks", map[string]any{"status": "open"}, map[string]any{"status": "done"}, accessor.UpdateOptions{Multi: true})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	remaining, err := store.Count(ctx, "tasks", map[string]any{"status": "open"})
	require.NoError(t, err)
	require.Zero(t, remaining)
}

func TestRemoveSingle(t *testing.T) {
	store := New()
	ctx := context.Background()
	_, err := store.Add(ctx, "tasks", []map[string]any{{"status": "open"}, {"status": "open"}})
	require.NoError(t, err)

	n, err := store.Remove(ctx, "tasks", map[string]any{"status": "open"}, false)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	remaining, err := store.Count(ctx, "tasks", map[string]any{"status": "open"})
	require.NoError(t, err)
	require.EqualValues(t, 1, remaining)
}
