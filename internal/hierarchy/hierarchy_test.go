package hierarchy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/nexus/internal/content"
	"github.com/TobiSchelling/nexus/internal/content/contenttest"
	"github.com/TobiSchelling/nexus/internal/meta"
)

var nextID int64

func tagged(typ meta.NexusType, keyword, parent string) meta.Tagged {
	nextID++
	return meta.Tagged{
		Item: content.Item{
			ID:              nextID,
			Title:           keyword,
			PublicURL:       "https://example.com/" + keyword,
			ContentTypeName: "post",
		},
		Tag: meta.NexusTag{Type: typ, Keyword: keyword, ParentKeyword: parent},
	}
}

func ids(items []meta.Tagged) []int64 {
	out := []int64{}
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestBuildEmpty(t *testing.T) {
	tree := Build(nil)
	require.NotNil(t, tree.Pillars)
	assert.Empty(t, tree.Pillars)
	assert.Empty(t, tree.OrphanSubPillars)
	assert.True(t, tree.Empty())
	assert.Equal(t, Counts{}, tree.Counts())
}

func TestBuildThreeLevels(t *testing.T) {
	p := tagged(meta.Pillar, "seo", "")
	sp := tagged(meta.SubPillar, "seo tools", "seo")
	c1 := tagged(meta.Cluster, "free seo tools", "seo tools")
	c2 := tagged(meta.Cluster, "paid seo tools", "seo tools")

	tree := Build([]meta.Tagged{c1, sp, p, c2})

	require.Len(t, tree.Pillars, 1)
	assert.Equal(t, p.ID, tree.Pillars[0].ID)
	require.Len(t, tree.Pillars[0].SubPillars, 1)
	assert.Equal(t, sp.ID, tree.Pillars[0].SubPillars[0].ID)
	assert.Equal(t, []int64{c1.ID, c2.ID}, ids(tree.Clusters(sp)))
	assert.Equal(t, 2, tree.ClusterCount(sp))
	assert.Empty(t, tree.OrphanSubPillars)
	assert.Equal(t, Counts{Pillars: 1, SubPillars: 1, Clusters: 2}, tree.Counts())
}

func TestBuildPillarWithoutChildrenIsLeaf(t *testing.T) {
	p := tagged(meta.Pillar, "lonely", "")
	tree := Build([]meta.Tagged{p})
	require.Len(t, tree.Pillars, 1)
	assert.Empty(t, tree.Pillars[0].SubPillars)
	assert.False(t, tree.Empty())
}

func TestBuildClassificationIsExhaustive(t *testing.T) {
	items := []meta.Tagged{
		tagged(meta.Pillar, "a", ""),
		tagged(meta.SubPillar, "b", "a"),
		tagged(meta.SubPillar, "orphan", "missing"),
		tagged(meta.Cluster, "c", "b"),
		tagged(meta.Cluster, "lost", "nowhere"),
		tagged("", "untyped", ""),
		tagged("topic", "invalid", ""),
	}
	tree := Build(items)

	seen := map[int64]int{}
	for _, p := range tree.Pillars {
		seen[p.ID]++
		for _, sp := range p.SubPillars {
			seen[sp.ID]++
		}
	}
	for _, sp := range tree.OrphanSubPillars {
		seen[sp.ID]++
	}
	for _, cs := range tree.ClustersByKeyword {
		for _, c := range cs {
			seen[c.ID]++
		}
	}
	for _, c := range tree.DroppedClusters {
		seen[c.ID]++
	}

	for i, it := range items {
		want := 1
		if i >= 5 {
			want = 0 // dropped as invalid
		}
		assert.Equal(t, want, seen[it.ID], "item %q", it.Tag.Keyword)
	}
}

func TestBuildDuplicatePillarKeywordFirstWins(t *testing.T) {
	first := tagged(meta.Pillar, "K", "")
	second := tagged(meta.Pillar, "K", "")
	sp := tagged(meta.SubPillar, "child", "K")

	tree := Build([]meta.Tagged{first, second, sp})

	require.Len(t, tree.Pillars, 2)
	assert.Equal(t, first.ID, tree.Pillars[0].ID)
	assert.Equal(t, []int64{sp.ID}, ids(tree.Pillars[0].SubPillars))
	assert.Empty(t, tree.Pillars[1].SubPillars)
}

func TestBuildOrphanSubPillar(t *testing.T) {
	p := tagged(meta.Pillar, "seo", "")
	orphan := tagged(meta.SubPillar, "ppc", "marketing")

	tree := Build([]meta.Tagged{p, orphan})

	assert.Equal(t, []int64{orphan.ID}, ids(tree.OrphanSubPillars))
	assert.Empty(t, tree.Pillars[0].SubPillars)
	assert.Equal(t, 1, tree.Counts().Orphans)
}

func TestBuildClusterWithoutParentIsDropped(t *testing.T) {
	sp := tagged(meta.SubPillar, "tools", "seo")
	lost := tagged(meta.Cluster, "lost", "nope")

	tree := Build([]meta.Tagged{sp, lost})

	for _, cs := range tree.ClustersByKeyword {
		assert.NotContains(t, ids(cs), lost.ID)
	}
	assert.NotContains(t, ids(tree.OrphanSubPillars), lost.ID)
	assert.Equal(t, []int64{lost.ID}, ids(tree.DroppedClusters))
	assert.Equal(t, 0, tree.Counts().Clusters)
}

func TestBuildClusterUnderOrphanSubPillar(t *testing.T) {
	orphan := tagged(meta.SubPillar, "tools", "missing")
	c := tagged(meta.Cluster, "hammer", "tools")

	tree := Build([]meta.Tagged{orphan, c})

	assert.Equal(t, []int64{c.ID}, ids(tree.Clusters(orphan)))
}

func TestBuildKeywordMatchingIsExact(t *testing.T) {
	p := tagged(meta.Pillar, "SEO", "")
	lower := tagged(meta.SubPillar, "a", "seo")
	spaced := tagged(meta.SubPillar, "b", "SEO ")
	exact := tagged(meta.SubPillar, "c", "SEO")

	tree := Build([]meta.Tagged{p, lower, spaced, exact})

	assert.Equal(t, []int64{exact.ID}, ids(tree.Pillars[0].SubPillars))
	assert.Equal(t, []int64{lower.ID, spaced.ID}, ids(tree.OrphanSubPillars))
}

func TestBuildEmptyKeywordMatchesOnlyEmpty(t *testing.T) {
	named := tagged(meta.Pillar, "named", "")
	blank := tagged(meta.Pillar, "", "")
	sp := tagged(meta.SubPillar, "x", "")

	tree := Build([]meta.Tagged{named, blank, sp})

	assert.Empty(t, tree.Pillars[0].SubPillars)
	assert.Equal(t, []int64{sp.ID}, ids(tree.Pillars[1].SubPillars))
}

func TestBuildPreservesOrder(t *testing.T) {
	p := tagged(meta.Pillar, "p", "")
	s1 := tagged(meta.SubPillar, "s1", "p")
	s2 := tagged(meta.SubPillar, "s2", "p")
	s3 := tagged(meta.SubPillar, "s3", "p")

	tree := Build([]meta.Tagged{s3, p, s1, s2})

	assert.Equal(t, []int64{s3.ID, s1.ID, s2.ID}, ids(tree.Pillars[0].SubPillars))
}

func TestFlatten(t *testing.T) {
	p := tagged(meta.Pillar, "p", "")
	sp := tagged(meta.SubPillar, "s", "p")
	c := tagged(meta.Cluster, "c", "s")
	none := tagged("", "none", "")
	items := []meta.Tagged{p, sp, none, c}

	all := Flatten(items, nil)
	require.Len(t, all, 3)
	assert.Equal(t, Link{
		URL:             p.PublicURL,
		Title:           "p",
		Keyword:         "p",
		Type:            meta.Pillar,
		ContentTypeName: "post",
	}, all[0])

	some := Flatten(items, []meta.NexusType{meta.Pillar, meta.Cluster})
	require.Len(t, some, 2)
	assert.Equal(t, meta.Pillar, some[0].Type)
	assert.Equal(t, meta.Cluster, some[1].Type)

	assert.NotNil(t, Flatten(nil, nil))
}

func TestLoad(t *testing.T) {
	store := contenttest.New()
	store.AddTagged("Pillar", "pillar", "seo", "")
	store.AddTagged("Sub", "sub-pillar", "seo tools", "seo")
	store.AddTagged("Cluster", "cluster", "free tools", "seo tools")
	draft := store.AddTagged("Draft", "pillar", "draft", "")
	store.Items[draft-1].Status = content.StatusDraft

	tree, err := Load(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, Counts{Pillars: 1, SubPillars: 1, Clusters: 1}, tree.Counts())
}

func TestLoadStoreFailure(t *testing.T) {
	store := contenttest.New()
	store.Down = true
	_, err := Load(context.Background(), store)
	assert.ErrorIs(t, err, contenttest.ErrUnavailable)
}
