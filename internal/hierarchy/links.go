package hierarchy

import "github.com/TobiSchelling/nexus/internal/meta"

// Link is one entry of the flat link list served by the read API.
type Link struct {
	URL             string         `json:"url"`
	Title           string         `json:"title"`
	Keyword         string         `json:"keyword"`
	Type            meta.NexusType `json:"type"`
	ContentTypeName string         `json:"post_type"`
}

// Flatten returns one link per item whose type is in types, keeping the
// input order. An empty types selects all three types.
func Flatten(items []meta.Tagged, types []meta.NexusType) []Link {
	if len(types) == 0 {
		types = meta.AllTypes
	}
	want := make(map[meta.NexusType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	links := []Link{}
	for _, it := range items {
		if !it.Tag.HasType() || !want[it.Tag.Type] {
			continue
		}
		links = append(links, Link{
			URL:             it.PublicURL,
			Title:           it.Title,
			Keyword:         it.Tag.Keyword,
			Type:            it.Tag.Type,
			ContentTypeName: it.ContentTypeName,
		})
	}
	return links
}
