// Package content defines the content items nexus reads and the store
// contract it needs from the publishing platform.
package content

import "context"

// Status values for an item.
const (
	StatusPublish = "publish"
	StatusDraft   = "draft"
)

// Order values for Filter.Order.
const (
	OrderNatural = "" // insertion order
	OrderTitle   = "title"
)

// Item is a content item owned by the Content Store.
type Item struct {
	ID              int64
	Title           string
	EditURL         string
	PublicURL       string
	ContentBody     string
	ContentTypeName string
	Status          string
}

// ContentType describes a registered content type.
type ContentType struct {
	Name  string
	Label string
	// Public types are viewable on the site and take part in tagging.
	Public bool
}

// MetaIn restricts a query to items whose meta value for Key is one of Values.
type MetaIn struct {
	Key    string
	Values []string
}

// Filter selects items from the store. Zero values mean "no restriction".
type Filter struct {
	ContentTypes []string
	Status       string
	PublicOnly   bool
	Meta         *MetaIn
	Order        string
	Limit        int
	Offset       int
}

// Store is the Content Store contract.
type Store interface {
	QueryItems(ctx context.Context, f Filter) ([]Item, error)
	CountItems(ctx context.Context, f Filter) (int, error)
	GetItem(ctx context.Context, id int64) (*Item, error)
	ContentTypes(ctx context.Context) ([]ContentType, error)
	ItemTags(ctx context.Context, id int64) ([]string, error)
	SearchMetaValues(ctx context.Context, key, term string, limit int) ([]string, error)
	MetaStore
}

// MetaStore is the key-value metadata part of the Content Store.
// GetMeta returns "" for an absent key.
type MetaStore interface {
	GetMeta(ctx context.Context, id int64, key string) (string, error)
	SetMeta(ctx context.Context, id int64, key, value string) error
}

// PublishedPublic is the filter used by every nexus report: published items
// of public content types in natural order.
func PublishedPublic() Filter {
	return Filter{Status: StatusPublish, PublicOnly: true}
}
