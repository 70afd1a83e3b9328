// Package keywordsync copies the focus keyword an SEO plugin holds into the
// nexus keyword field, without ever overwriting an existing value.
package keywordsync

import (
	"context"
	"fmt"

	"github.com/TobiSchelling/nexus/internal/access"
	"github.com/TobiSchelling/nexus/internal/content"
	"github.com/TobiSchelling/nexus/internal/logger"
	"github.com/TobiSchelling/nexus/internal/meta"
)

// Engine runs keyword syncs against the Content Store.
type Engine struct {
	store  content.Store
	acc    *meta.Accessor
	access access.Checker
	log    *logger.Logger
}

// New creates an Engine.
func New(store content.Store, checker access.Checker, log *logger.Logger) *Engine {
	return &Engine{
		store:  store,
		acc:    meta.NewAccessor(store),
		access: checker,
		log:    logger.OrDiscard(log),
	}
}

// SyncOnSave fills the nexus keyword of one item from Rank Math, then Yoast.
// Items of non-public content types are left alone. It reports whether a
// keyword was written.
func (e *Engine) SyncOnSave(ctx context.Context, id int64) (bool, error) {
	item, err := e.store.GetItem(ctx, id)
	if err != nil {
		return false, fmt.Errorf("loading item %d: %w", id, err)
	}
	if item == nil {
		return false, nil
	}
	public, err := e.isPublic(ctx, item.ContentTypeName)
	if err != nil {
		return false, err
	}
	if !public {
		return false, nil
	}
	return e.syncOne(ctx, id)
}

// BulkSync applies the same rule to every published item of a public content
// type and returns how many were updated. Without manage_options it does
// nothing and returns 0.
func (e *Engine) BulkSync(ctx context.Context) (int, error) {
	if !e.access.CurrentUserCan(ctx, access.ManageOptions) {
		e.log.Warn("bulk sync refused", "capability", access.ManageOptions)
		return 0, nil
	}

	items, err := e.store.QueryItems(ctx, content.PublishedPublic())
	if err != nil {
		return 0, fmt.Errorf("querying items: %w", err)
	}

	synced := 0
	for _, it := range items {
		ok, err := e.syncOne(ctx, it.ID)
		if err != nil {
			return synced, err
		}
		if ok {
			synced++
		}
	}
	e.log.Info("bulk keyword sync", "items", len(items), "synced", synced)
	return synced, nil
}

func (e *Engine) syncOne(ctx context.Context, id int64) (bool, error) {
	existing, err := e.acc.Keyword(ctx, id)
	if err != nil {
		return false, fmt.Errorf("reading keyword of item %d: %w", id, err)
	}
	if existing != "" {
		return false, nil
	}

	keyword, err := e.pluginKeyword(ctx, id)
	if err != nil {
		return false, err
	}
	if meta.SanitizeText(keyword) == "" {
		return false, nil
	}
	if err := e.acc.SetKeyword(ctx, id, keyword); err != nil {
		return false, fmt.Errorf("writing keyword of item %d: %w", id, err)
	}
	e.log.Debug("keyword synced", "item", id)
	return true, nil
}

func (e *Engine) pluginKeyword(ctx context.Context, id int64) (string, error) {
	rm, err := e.acc.RankMath(ctx, id)
	if err != nil {
		return "", fmt.Errorf("reading rank math fields of item %d: %w", id, err)
	}
	if rm.FocusKeyword != "" {
		return rm.FocusKeyword, nil
	}
	y, err := e.acc.Yoast(ctx, id)
	if err != nil {
		return "", fmt.Errorf("reading yoast fields of item %d: %w", id, err)
	}
	return y.FocusKeyword, nil
}

func (e *Engine) isPublic(ctx context.Context, name string) (bool, error) {
	types, err := e.store.ContentTypes(ctx)
	if err != nil {
		return false, fmt.Errorf("listing content types: %w", err)
	}
	for _, t := range types {
		if t.Name == name {
			return t.Public, nil
		}
	}
	return false, nil
}
