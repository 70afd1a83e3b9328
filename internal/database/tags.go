package database

import (
	"context"
	"fmt"
	"strings"
)

// ItemTags returns the tags attached to an item, sorted.
func (db *DB) ItemTags(ctx context.Context, id int64) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT tag FROM item_tags WHERE item_id = ? ORDER BY tag ASC", id)
	if err != nil {
		return nil, fmt.Errorf("reading tags for item %d: %w", id, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// SetItemTags replaces the tags of an item. Blank tags are skipped.
func (db *DB) SetItemTags(ctx context.Context, id int64, tags []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM item_tags WHERE item_id = ?", id); err != nil {
		return fmt.Errorf("clearing tags for item %d: %w", id, err)
	}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO item_tags (item_id, tag) VALUES (?, ?)", id, tag,
		); err != nil {
			return fmt.Errorf("tagging item %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// GetStats returns aggregate counts for the status command.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	s := &Stats{}
	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM items", &s.TotalItems},
		{"SELECT COUNT(*) FROM items WHERE status = 'publish'", &s.PublishedItems},
		{"SELECT COUNT(*) FROM content_types", &s.ContentTypes},
		{"SELECT COUNT(*) FROM item_meta", &s.MetaRows},
		{"SELECT COUNT(DISTINCT item_id) FROM item_tags", &s.TaggedItems},
	}
	for _, q := range queries {
		if err := db.conn.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
	}
	return s, nil
}
