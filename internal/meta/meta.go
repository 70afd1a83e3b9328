// Package meta is the typed boundary over item metadata: the three nexus
// fields and the fields nexus reads from the two SEO plugins.
//
// Everything is stored as strings. Values are parsed here, and a value that
// does not parse is treated as absent rather than as an error.
package meta

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/TobiSchelling/nexus/internal/content"
)

// Nexus metadata keys.
const (
	KeyType          = "_seo_nexus_type"
	KeyKeyword       = "_seo_nexus_keyword"
	KeyParentKeyword = "_seo_nexus_parent_keyword"
)

// Provider A (Rank Math) keys.
const (
	KeyRankMathFocusKeyword   = "rank_math_focus_keyword"
	KeyRankMathScore          = "rank_math_seo_score"
	KeyRankMathValidation     = "rank_math_validation_notice"
	KeyRankMathTitle          = "rank_math_title"
	KeyRankMathAdvancedRobots = "rank_math_advanced_robots"
)

// Provider B (Yoast) keys.
const (
	KeyYoastFocusKeyword = "_yoast_wpseo_focuskw"
	KeyYoastScore        = "_yoast_wpseo_score"
	KeyYoastResults      = "_yoast_wpseo_results"
)

// NexusType classifies an item in the hierarchy. The zero value means absent.
type NexusType string

const (
	Pillar    NexusType = "pillar"
	SubPillar NexusType = "sub-pillar"
	Cluster   NexusType = "cluster"
)

// AllTypes lists the valid types in hierarchy order.
var AllTypes = []NexusType{Pillar, SubPillar, Cluster}

// ParseType decodes a stored type. Anything but an exact valid value is absent.
func ParseType(s string) (NexusType, bool) {
	switch t := NexusType(s); t {
	case Pillar, SubPillar, Cluster:
		return t, true
	}
	return "", false
}

// Label returns the display name of t.
func (t NexusType) Label() string {
	switch t {
	case Pillar:
		return "Pillar"
	case SubPillar:
		return "Sub-Pillar"
	case Cluster:
		return "Cluster"
	}
	return ""
}

// TypeStrings returns the string values of types.
func TypeStrings(types []NexusType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// NexusTag is the nexus metadata of one item.
type NexusTag struct {
	Type          NexusType
	Keyword       string
	ParentKeyword string
}

// HasType reports whether the tag carries a valid type.
func (t NexusTag) HasType() bool { return t.Type != "" }

// Tagged pairs an item with its nexus tag.
type Tagged struct {
	content.Item
	Tag NexusTag
}

// RankMath holds the provider A fields nexus reads.
type RankMath struct {
	FocusKeyword   string
	Score          string
	Validation     string
	Title          string
	AdvancedRobots string
}

// Yoast holds the provider B fields nexus reads.
type Yoast struct {
	FocusKeyword string
	Score        string
	Results      string
}

// ParseScore decodes a stored SEO score. Only integers within 0..100 are present.
func ParseScore(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 || n > 100 {
		return 0, false
	}
	return n, true
}

// Accessor reads and writes typed metadata through the Content Store.
type Accessor struct {
	store content.MetaStore
}

// NewAccessor creates an Accessor over store.
func NewAccessor(store content.MetaStore) *Accessor {
	return &Accessor{store: store}
}

// Tag reads the nexus tag of an item.
func (a *Accessor) Tag(ctx context.Context, id int64) (NexusTag, error) {
	var tag NexusTag
	raw, err := a.store.GetMeta(ctx, id, KeyType)
	if err != nil {
		return tag, err
	}
	tag.Type, _ = ParseType(raw)

	if tag.Keyword, err = a.store.GetMeta(ctx, id, KeyKeyword); err != nil {
		return tag, err
	}
	if tag.ParentKeyword, err = a.store.GetMeta(ctx, id, KeyParentKeyword); err != nil {
		return tag, err
	}
	return tag, nil
}

// SetType writes the nexus type. The empty type clears it.
func (a *Accessor) SetType(ctx context.Context, id int64, t NexusType) error {
	if t != "" {
		if _, ok := ParseType(string(t)); !ok {
			return fmt.Errorf("invalid nexus type %q", t)
		}
	}
	return a.store.SetMeta(ctx, id, KeyType, string(t))
}

// SetKeyword writes the nexus keyword after sanitizing it.
func (a *Accessor) SetKeyword(ctx context.Context, id int64, keyword string) error {
	return a.store.SetMeta(ctx, id, KeyKeyword, SanitizeText(keyword))
}

// SetParentKeyword writes the nexus parent keyword after sanitizing it.
func (a *Accessor) SetParentKeyword(ctx context.Context, id int64, keyword string) error {
	return a.store.SetMeta(ctx, id, KeyParentKeyword, SanitizeText(keyword))
}

// Keyword reads only the nexus keyword.
func (a *Accessor) Keyword(ctx context.Context, id int64) (string, error) {
	return a.store.GetMeta(ctx, id, KeyKeyword)
}

// RankMath reads the provider A fields of an item.
func (a *Accessor) RankMath(ctx context.Context, id int64) (RankMath, error) {
	var rm RankMath
	fields := []struct {
		key  string
		dest *string
	}{
		{KeyRankMathFocusKeyword, &rm.FocusKeyword},
		{KeyRankMathScore, &rm.Score},
		{KeyRankMathValidation, &rm.Validation},
		{KeyRankMathTitle, &rm.Title},
		{KeyRankMathAdvancedRobots, &rm.AdvancedRobots},
	}
	for _, f := range fields {
		v, err := a.store.GetMeta(ctx, id, f.key)
		if err != nil {
			return rm, err
		}
		*f.dest = v
	}
	return rm, nil
}

// Yoast reads the provider B fields of an item.
func (a *Accessor) Yoast(ctx context.Context, id int64) (Yoast, error) {
	var y Yoast
	var err error
	if y.FocusKeyword, err = a.store.GetMeta(ctx, id, KeyYoastFocusKeyword); err != nil {
		return y, err
	}
	if y.Score, err = a.store.GetMeta(ctx, id, KeyYoastScore); err != nil {
		return y, err
	}
	if y.Results, err = a.store.GetMeta(ctx, id, KeyYoastResults); err != nil {
		return y, err
	}
	return y, nil
}

// TaggedItems returns the published items of public content types that carry
// one of types (all three when types is empty), in store order, with their tags.
func TaggedItems(ctx context.Context, store content.Store, types []NexusType) ([]Tagged, error) {
	if len(types) == 0 {
		types = AllTypes
	}
	f := content.PublishedPublic()
	f.Meta = &content.MetaIn{Key: KeyType, Values: TypeStrings(types)}

	items, err := store.QueryItems(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying tagged items: %w", err)
	}

	acc := NewAccessor(store)
	out := make([]Tagged, 0, len(items))
	for _, it := range items {
		tag, err := acc.Tag(ctx, it.ID)
		if err != nil {
			return nil, fmt.Errorf("reading tag of item %d: %w", it.ID, err)
		}
		out = append(out, Tagged{Item: it, Tag: tag})
	}
	return out, nil
}
