// Package hierarchy rebuilds the pillar / sub-pillar / cluster tree from a
// flat list of tagged items.
//
// Parents are found by exact, case-sensitive comparison of a child's parent
// keyword with a candidate parent's keyword. Duplicate keywords are legal:
// the first candidate in collection order wins.
package hierarchy

import (
	"context"

	"github.com/TobiSchelling/nexus/internal/content"
	"github.com/TobiSchelling/nexus/internal/meta"
)

// PillarNode is a pillar with the sub-pillars attached to it.
type PillarNode struct {
	meta.Tagged
	SubPillars []meta.Tagged
}

// Tree is the derived hierarchy. It is rebuilt on every read.
type Tree struct {
	Pillars []PillarNode
	// OrphanSubPillars matched no pillar keyword.
	OrphanSubPillars []meta.Tagged
	// ClustersByKeyword maps a sub-pillar keyword to the clusters under it.
	ClustersByKeyword map[string][]meta.Tagged
	// DroppedClusters matched no sub-pillar keyword. They are not part of
	// the tree and are not orphans; the field only makes the loss visible.
	DroppedClusters []meta.Tagged
}

// Counts summarises a tree.
type Counts struct {
	Pillars         int
	SubPillars      int // attached and orphaned
	Clusters        int // attached only
	Orphans         int
	DroppedClusters int
}

// Build classifies items by type and links children to parents.
// Items without a valid type are dropped. Order within every level follows
// the input order.
func Build(items []meta.Tagged) *Tree {
	t := &Tree{
		Pillars:           []PillarNode{},
		ClustersByKeyword: make(map[string][]meta.Tagged),
	}

	var subPillars, clusters []meta.Tagged
	for _, it := range items {
		switch it.Tag.Type {
		case meta.Pillar:
			t.Pillars = append(t.Pillars, PillarNode{Tagged: it})
		case meta.SubPillar:
			subPillars = append(subPillars, it)
		case meta.Cluster:
			clusters = append(clusters, it)
		}
	}

	pillarByKeyword := make(map[string]int, len(t.Pillars))
	for i, p := range t.Pillars {
		if _, taken := pillarByKeyword[p.Tag.Keyword]; !taken {
			pillarByKeyword[p.Tag.Keyword] = i
		}
	}

	// Every sub-pillar keyword, orphans included, can host clusters.
	subPillarKeywords := make(map[string]struct{}, len(subPillars))
	for _, sp := range subPillars {
		subPillarKeywords[sp.Tag.Keyword] = struct{}{}

		if i, ok := pillarByKeyword[sp.Tag.ParentKeyword]; ok {
			t.Pillars[i].SubPillars = append(t.Pillars[i].SubPillars, sp)
		} else {
			t.OrphanSubPillars = append(t.OrphanSubPillars, sp)
		}
	}

	for _, c := range clusters {
		if _, ok := subPillarKeywords[c.Tag.ParentKeyword]; ok {
			t.ClustersByKeyword[c.Tag.ParentKeyword] = append(t.ClustersByKeyword[c.Tag.ParentKeyword], c)
		} else {
			t.DroppedClusters = append(t.DroppedClusters, c)
		}
	}

	return t
}

// Load reads every tagged, published item of a public content type and
// builds the tree from them.
func Load(ctx context.Context, store content.Store) (*Tree, error) {
	items, err := meta.TaggedItems(ctx, store, nil)
	if err != nil {
		return nil, err
	}
	return Build(items), nil
}

// Clusters returns the clusters filed under a sub-pillar's keyword.
func (t *Tree) Clusters(subPillar meta.Tagged) []meta.Tagged {
	return t.ClustersByKeyword[subPillar.Tag.Keyword]
}

// ClusterCount returns how many clusters a sub-pillar shows.
func (t *Tree) ClusterCount(subPillar meta.Tagged) int {
	return len(t.Clusters(subPillar))
}

// Counts returns the node totals of the tree.
func (t *Tree) Counts() Counts {
	c := Counts{
		Pillars:         len(t.Pillars),
		Orphans:         len(t.OrphanSubPillars),
		DroppedClusters: len(t.DroppedClusters),
	}
	c.SubPillars = c.Orphans
	for _, p := range t.Pillars {
		c.SubPillars += len(p.SubPillars)
	}
	for _, cs := range t.ClustersByKeyword {
		c.Clusters += len(cs)
	}
	return c
}

// Empty reports whether the tree holds no pillars and no orphans.
func (t *Tree) Empty() bool {
	return len(t.Pillars) == 0 && len(t.OrphanSubPillars) == 0
}
