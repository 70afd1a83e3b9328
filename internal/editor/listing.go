package editor

import (
	"context"
	"fmt"

	"github.com/TobiSchelling/nexus/internal/content"
	"github.com/TobiSchelling/nexus/internal/meta"
)

// ListQuery selects a page of the bulk update listing.
type ListQuery struct {
	ContentType string
	Page        int
}

// Row is one item of the bulk update listing.
type Row struct {
	Item content.Item
	Type meta.NexusType
}

// Listing is one page of published items for the bulk update form.
type Listing struct {
	Rows         []Row
	ContentTypes []content.ContentType
	ContentType  string
	Total        int
	TotalPages   int
	Page         int
	PerPage      int
}

// List returns published items ordered by title. A content type outside the
// public ones is ignored and all public types are listed.
func (e *Editor) List(ctx context.Context, q ListQuery) (*Listing, error) {
	all, err := e.store.ContentTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing content types: %w", err)
	}
	var public []content.ContentType
	for _, ct := range all {
		if ct.Public {
			public = append(public, ct)
		}
	}

	l := &Listing{ContentTypes: public, Page: max(1, q.Page), PerPage: e.perPage}

	f := content.Filter{Status: content.StatusPublish, PublicOnly: true, Order: content.OrderTitle}
	for _, ct := range public {
		if ct.Name == q.ContentType {
			l.ContentType = ct.Name
			f.ContentTypes = []string{ct.Name}
		}
	}

	if l.Total, err = e.store.CountItems(ctx, f); err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}
	l.TotalPages = max(1, (l.Total+l.PerPage-1)/l.PerPage)

	f.Limit = l.PerPage
	f.Offset = (l.Page - 1) * l.PerPage
	items, err := e.store.QueryItems(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}

	l.Rows = make([]Row, 0, len(items))
	for _, it := range items {
		tag, err := e.acc.Tag(ctx, it.ID)
		if err != nil {
			return nil, fmt.Errorf("reading tag of item %d: %w", it.ID, err)
		}
		l.Rows = append(l.Rows, Row{Item: it, Type: tag.Type})
	}
	return l, nil
}
