// Package editor holds the write paths of the admin surfaces: the per-item
// metadata editor, the bulk type update and keyword autocomplete.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/TobiSchelling/nexus/internal/access"
	"github.com/TobiSchelling/nexus/internal/content"
	"github.com/TobiSchelling/nexus/internal/keywordsync"
	"github.com/TobiSchelling/nexus/internal/logger"
	"github.com/TobiSchelling/nexus/internal/meta"
)

var (
	// ErrPermissionDenied is returned when the current user may not edit an item.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidation is returned for input that fails validation. Nothing is written.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned for an unknown item.
	ErrNotFound = errors.New("item not found")
)

// KeywordSuggestions caps autocomplete results.
const KeywordSuggestions = 20

// Fields are the three nexus fields as submitted by the item editor.
type Fields struct {
	Type          string
	Keyword       string
	ParentKeyword string
}

// Editor applies metadata edits.
type Editor struct {
	store   content.Store
	acc     *meta.Accessor
	access  access.Checker
	sync    *keywordsync.Engine
	log     *logger.Logger
	perPage int
}

// New creates an Editor. perPage sizes the bulk listing; zero means 20.
func New(store content.Store, checker access.Checker, sync *keywordsync.Engine, perPage int, log *logger.Logger) *Editor {
	if perPage <= 0 {
		perPage = 20
	}
	return &Editor{
		store:   store,
		acc:     meta.NewAccessor(store),
		access:  checker,
		sync:    sync,
		log:     logger.OrDiscard(log),
		perPage: perPage,
	}
}

// Load returns an item and its tag for the editor form.
func (e *Editor) Load(ctx context.Context, id int64) (*meta.Tagged, error) {
	item, err := e.store.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading item %d: %w", id, err)
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	tag, err := e.acc.Tag(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading tag of item %d: %w", id, err)
	}
	return &meta.Tagged{Item: *item, Tag: tag}, nil
}

// SaveItem writes the three fields of one item, then fills an empty keyword
// from the SEO plugins. An empty type clears the item's type.
func (e *Editor) SaveItem(ctx context.Context, id int64, f Fields) error {
	item, err := e.store.GetItem(ctx, id)
	if err != nil {
		return fmt.Errorf("loading item %d: %w", id, err)
	}
	if item == nil {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if !e.access.CanEditItem(ctx, id) {
		return fmt.Errorf("%w: item %d", ErrPermissionDenied, id)
	}

	typ := meta.NexusType(strings.TrimSpace(f.Type))
	if typ != "" {
		if _, ok := meta.ParseType(string(typ)); !ok {
			return fmt.Errorf("%w: unknown nexus type %q", ErrValidation, f.Type)
		}
	}

	if err := e.acc.SetType(ctx, id, typ); err != nil {
		return fmt.Errorf("writing type of item %d: %w", id, err)
	}
	if err := e.acc.SetKeyword(ctx, id, f.Keyword); err != nil {
		return fmt.Errorf("writing keyword of item %d: %w", id, err)
	}
	if err := e.acc.SetParentKeyword(ctx, id, f.ParentKeyword); err != nil {
		return fmt.Errorf("writing parent keyword of item %d: %w", id, err)
	}

	if e.sync != nil {
		if _, err := e.sync.SyncOnSave(ctx, id); err != nil {
			return err
		}
	}
	e.log.Info("item saved", "item", id, "type", typ)
	return nil
}

// BulkUpdateType sets the nexus type of every listed item the current user
// may edit and returns how many were updated. Without manage_options it does
// nothing.
func (e *Editor) BulkUpdateType(ctx context.Context, typ string, ids []int64) (int, error) {
	if !e.access.CurrentUserCan(ctx, access.ManageOptions) {
		e.log.Warn("bulk update refused", "capability", access.ManageOptions)
		return 0, nil
	}
	if typ == "" || len(ids) == 0 {
		return 0, fmt.Errorf("%w: select a nexus type and at least one item", ErrValidation)
	}
	t, ok := meta.ParseType(typ)
	if !ok {
		return 0, fmt.Errorf("%w: unknown nexus type %q", ErrValidation, typ)
	}

	updated := 0
	for _, id := range ids {
		if !e.access.CanEditItem(ctx, id) {
			continue
		}
		if err := e.acc.SetType(ctx, id, t); err != nil {
			return updated, fmt.Errorf("writing type of item %d: %w", id, err)
		}
		updated++
	}
	e.log.Info("bulk type update", "type", t, "requested", len(ids), "updated", updated)
	return updated, nil
}

// Keywords returns existing nexus keywords containing term, for autocomplete.
func (e *Editor) Keywords(ctx context.Context, term string) ([]string, error) {
	term = meta.SanitizeText(term)
	if term == "" {
		return []string{}, nil
	}
	kws, err := e.store.SearchMetaValues(ctx, meta.KeyKeyword, term, KeywordSuggestions)
	if err != nil {
		return nil, fmt.Errorf("searching keywords: %w", err)
	}
	return kws, nil
}
