// Package contenttest provides an in-memory content.Store for tests.
package contenttest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/TobiSchelling/nexus/internal/content"
)

// ErrUnavailable is returned by every call once a MemStore is marked Down.
var ErrUnavailable = errors.New("content store unavailable")

// MemStore keeps items, metadata and tags in maps. It is not safe for
// concurrent use.
type MemStore struct {
	Items []content.Item
	Types []content.ContentType
	Meta  map[int64]map[string]string
	Tags  map[int64][]string
	// Down makes every call fail with ErrUnavailable.
	Down bool
	// Writes records every SetMeta call as "id:key=value".
	Writes []string
}

var _ content.Store = (*MemStore)(nil)

// New returns an empty store with public "post" and "page" types and a
// non-public "attachment" type.
func New() *MemStore {
	return &MemStore{
		Types: []content.ContentType{
			{Name: "attachment", Label: "Media"},
			{Name: "page", Label: "Page", Public: true},
			{Name: "post", Label: "Post", Public: true},
		},
		Meta: make(map[int64]map[string]string),
		Tags: make(map[int64][]string),
	}
}

// Add appends a published post and returns its ID. Fields left empty are derived.
func (m *MemStore) Add(it content.Item) int64 {
	if it.ID == 0 {
		it.ID = int64(len(m.Items) + 1)
	}
	if it.Status == "" {
		it.Status = content.StatusPublish
	}
	if it.ContentTypeName == "" {
		it.ContentTypeName = "post"
	}
	if it.PublicURL == "" {
		it.PublicURL = fmt.Sprintf("https://example.com/?p=%d", it.ID)
	}
	if it.EditURL == "" {
		it.EditURL = fmt.Sprintf("/items/%d", it.ID)
	}
	m.Items = append(m.Items, it)
	return it.ID
}

// AddTagged adds a published post with the three nexus fields set.
func (m *MemStore) AddTagged(title, nexusType, keyword, parent string) int64 {
	id := m.Add(content.Item{Title: title})
	m.put(id, "_seo_nexus_type", nexusType)
	m.put(id, "_seo_nexus_keyword", keyword)
	m.put(id, "_seo_nexus_parent_keyword", parent)
	return id
}

// Put sets a metadata value without recording it as a write.
func (m *MemStore) Put(id int64, key, value string) {
	m.put(id, key, value)
}

func (m *MemStore) put(id int64, key, value string) {
	if m.Meta[id] == nil {
		m.Meta[id] = make(map[string]string)
	}
	m.Meta[id][key] = value
}

func (m *MemStore) QueryItems(_ context.Context, f content.Filter) ([]content.Item, error) {
	if m.Down {
		return nil, ErrUnavailable
	}
	var out []content.Item
	for _, it := range m.Items {
		if m.matches(it, f) {
			out = append(out, it)
		}
	}
	if f.Order == content.OrderTitle {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	}
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemStore) CountItems(ctx context.Context, f content.Filter) (int, error) {
	f.Limit, f.Offset = 0, 0
	items, err := m.QueryItems(ctx, f)
	return len(items), err
}

func (m *MemStore) matches(it content.Item, f content.Filter) bool {
	if len(f.ContentTypes) > 0 && !contains(f.ContentTypes, it.ContentTypeName) {
		return false
	}
	if f.Status != "" && it.Status != f.Status {
		return false
	}
	if f.PublicOnly && !m.isPublic(it.ContentTypeName) {
		return false
	}
	if f.Meta != nil {
		v := m.Meta[it.ID][f.Meta.Key]
		if len(f.Meta.Values) > 0 {
			return contains(f.Meta.Values, v)
		}
		return v != ""
	}
	return true
}

func (m *MemStore) isPublic(name string) bool {
	for _, t := range m.Types {
		if t.Name == name {
			return t.Public
		}
	}
	return false
}

func (m *MemStore) GetItem(_ context.Context, id int64) (*content.Item, error) {
	if m.Down {
		return nil, ErrUnavailable
	}
	for _, it := range m.Items {
		if it.ID == id {
			it := it
			return &it, nil
		}
	}
	return nil, nil
}

func (m *MemStore) ContentTypes(context.Context) ([]content.ContentType, error) {
	if m.Down {
		return nil, ErrUnavailable
	}
	return m.Types, nil
}

func (m *MemStore) ItemTags(_ context.Context, id int64) ([]string, error) {
	if m.Down {
		return nil, ErrUnavailable
	}
	return m.Tags[id], nil
}

func (m *MemStore) SearchMetaValues(_ context.Context, key, term string, limit int) ([]string, error) {
	if m.Down {
		return nil, ErrUnavailable
	}
	values := []string{}
	if term == "" {
		return values, nil
	}
	seen := make(map[string]bool)
	for _, it := range m.Items {
		v := m.Meta[it.ID][key]
		if it.Status != content.StatusPublish || v == "" || seen[v] || !strings.Contains(v, term) {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	sort.Strings(values)
	if limit > 0 && len(values) > limit {
		values = values[:limit]
	}
	return values, nil
}

func (m *MemStore) GetMeta(_ context.Context, id int64, key string) (string, error) {
	if m.Down {
		return "", ErrUnavailable
	}
	return m.Meta[id][key], nil
}

func (m *MemStore) SetMeta(_ context.Context, id int64, key, value string) error {
	if m.Down {
		return ErrUnavailable
	}
	m.put(id, key, value)
	m.Writes = append(m.Writes, fmt.Sprintf("%d:%s=%s", id, key, value))
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
