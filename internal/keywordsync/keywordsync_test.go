package keywordsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/nexus/internal/access"
	"github.com/TobiSchelling/nexus/internal/content"
	"github.com/TobiSchelling/nexus/internal/content/contenttest"
	"github.com/TobiSchelling/nexus/internal/meta"
)

func TestSyncOnSavePriority(t *testing.T) {
	ctx := context.Background()
	store := contenttest.New()
	both := store.Add(content.Item{Title: "Both"})
	store.Put(both, meta.KeyRankMathFocusKeyword, "rank math")
	store.Put(both, meta.KeyYoastFocusKeyword, "yoast")
	yoastOnly := store.Add(content.Item{Title: "Yoast"})
	store.Put(yoastOnly, meta.KeyYoastFocusKeyword, "  <em>yoast</em>  kw ")

	e := New(store, access.AllowAll{}, nil)

	ok, err := e.SyncOnSave(ctx, both)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "rank math", store.Meta[both][meta.KeyKeyword])

	ok, err = e.SyncOnSave(ctx, yoastOnly)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "yoast kw", store.Meta[yoastOnly][meta.KeyKeyword])
}

func TestSyncNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	store := contenttest.New()
	id := store.Add(content.Item{Title: "Kept"})
	store.Put(id, meta.KeyKeyword, "mine")
	store.Put(id, meta.KeyRankMathFocusKeyword, "theirs")
	store.Put(id, meta.KeyYoastFocusKeyword, "other")

	e := New(store, access.AllowAll{}, nil)

	ok, err := e.SyncOnSave(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := e.BulkSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, "mine", store.Meta[id][meta.KeyKeyword])
	assert.Empty(t, store.Writes)
}

func TestSyncOnSaveSkipsNonPublicTypes(t *testing.T) {
	store := contenttest.New()
	id := store.Add(content.Item{Title: "Image", ContentTypeName: "attachment"})
	store.Put(id, meta.KeyRankMathFocusKeyword, "kw")

	ok, err := New(store, access.AllowAll{}, nil).SyncOnSave(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, store.Writes)
}

func TestSyncOnSaveMissingItem(t *testing.T) {
	ok, err := New(contenttest.New(), access.AllowAll{}, nil).SyncOnSave(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSyncIgnoresMarkupOnlyKeyword(t *testing.T) {
	store := contenttest.New()
	id := store.Add(content.Item{Title: "Markup"})
	store.Put(id, meta.KeyRankMathFocusKeyword, "<br>")

	ok, err := New(store, access.AllowAll{}, nil).SyncOnSave(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBulkSyncCountsUpdates(t *testing.T) {
	store := contenttest.New()
	a := store.Add(content.Item{Title: "A"})
	store.Put(a, meta.KeyRankMathFocusKeyword, "a")
	b := store.Add(content.Item{Title: "B", ContentTypeName: "page"})
	store.Put(b, meta.KeyYoastFocusKeyword, "b")
	store.Add(content.Item{Title: "No plugin keyword"})
	draft := store.Add(content.Item{Title: "Draft", Status: content.StatusDraft})
	store.Put(draft, meta.KeyRankMathFocusKeyword, "draft")

	n, err := New(store, access.NewStatic([]string{"manage_options"}), nil).BulkSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "a", store.Meta[a][meta.KeyKeyword])
	assert.Equal(t, "b", store.Meta[b][meta.KeyKeyword])
	assert.Empty(t, store.Meta[draft][meta.KeyKeyword])
}

func TestBulkSyncRequiresManageOptions(t *testing.T) {
	store := contenttest.New()
	a := store.Add(content.Item{Title: "A"})
	store.Put(a, meta.KeyRankMathFocusKeyword, "a")

	n, err := New(store, access.NewStatic([]string{"edit_posts"}), nil).BulkSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, store.Writes)
}

func TestBulkSyncStoreFailure(t *testing.T) {
	store := contenttest.New()
	store.Down = true
	_, err := New(store, access.AllowAll{}, nil).BulkSync(context.Background())
	assert.ErrorIs(t, err, contenttest.ErrUnavailable)
}
