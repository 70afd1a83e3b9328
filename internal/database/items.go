package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/TobiSchelling/nexus/internal/content"
)

const itemColumns = `i.id, i.title, i.url, i.content, i.content_type, i.status`

// EditPath returns the admin path for editing an item.
func EditPath(id int64) string {
	return fmt.Sprintf("/items/%d", id)
}

// InsertItem inserts an item. Returns the ID on success, 0 if the URL already exists.
func (db *DB) InsertItem(ctx context.Context, it NewItem) (int64, error) {
	if it.Status == "" {
		it.Status = content.StatusPublish
	}
	result, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO items (title, url, content, content_type, status)
		VALUES (?, ?, ?, ?, ?)`,
		it.Title, it.URL, it.Content, it.ContentType, it.Status,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting item %s: %w", it.URL, err)
	}
	n, err := result.RowsAffected()
	if err != nil || n == 0 {
		return 0, err
	}
	return result.LastInsertId()
}

// UpsertItem inserts an item or refreshes the title, content and status of
// the item already stored under the same URL. created reports which happened.
func (db *DB) UpsertItem(ctx context.Context, it NewItem) (id int64, created bool, err error) {
	if it.Status == "" {
		it.Status = content.StatusPublish
	}

	err = db.conn.QueryRowContext(ctx, "SELECT id FROM items WHERE url = ?", it.URL).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		id, err = db.InsertItem(ctx, it)
		return id, err == nil && id > 0, err
	case err != nil:
		return 0, false, fmt.Errorf("looking up item %s: %w", it.URL, err)
	}

	_, err = db.conn.ExecContext(ctx,
		`UPDATE items SET title = ?, content = ?, content_type = ?, status = ?,
		updated_at = datetime('now') WHERE id = ?`,
		it.Title, it.Content, it.ContentType, it.Status, id,
	)
	if err != nil {
		return 0, false, fmt.Errorf("updating item %d: %w", id, err)
	}
	return id, false, nil
}

// GetItem returns a single item by ID, or nil if it does not exist.
func (db *DB) GetItem(ctx context.Context, id int64) (*content.Item, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items i WHERE i.id = ?`, id,
	)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

// QueryItems returns the items matching f.
func (db *DB) QueryItems(ctx context.Context, f content.Filter) ([]content.Item, error) {
	where, args := buildWhere(f)
	query := `SELECT ` + itemColumns + ` FROM items i
		JOIN content_types ct ON ct.name = i.content_type` + where

	switch f.Order {
	case content.OrderTitle:
		query += " ORDER BY i.title ASC, i.id ASC"
	default:
		query += " ORDER BY i.id ASC"
	}

	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	} else if f.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// CountItems returns the number of items matching f, ignoring Limit and Offset.
func (db *DB) CountItems(ctx context.Context, f content.Filter) (int, error) {
	where, args := buildWhere(f)
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items i JOIN content_types ct ON ct.name = i.content_type`+where,
		args...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

func buildWhere(f content.Filter) (string, []any) {
	var clauses []string
	var args []any

	if len(f.ContentTypes) > 0 {
		clauses = append(clauses, "i.content_type IN ("+placeholders(len(f.ContentTypes))+")")
		for _, t := range f.ContentTypes {
			args = append(args, t)
		}
	}
	if f.Status != "" {
		clauses = append(clauses, "i.status = ?")
		args = append(args, f.Status)
	}
	if f.PublicOnly {
		clauses = append(clauses, "ct.public = 1")
	}
	if f.Meta != nil {
		sub := "EXISTS (SELECT 1 FROM item_meta m WHERE m.item_id = i.id AND m.meta_key = ?"
		args = append(args, f.Meta.Key)
		if len(f.Meta.Values) > 0 {
			sub += " AND m.meta_value IN (" + placeholders(len(f.Meta.Values)) + ")"
			for _, v := range f.Meta.Values {
				args = append(args, v)
			}
		} else {
			sub += " AND m.meta_value != ''"
		}
		clauses = append(clauses, sub+")")
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// ContentTypes returns all registered content types ordered by name.
func (db *DB) ContentTypes(ctx context.Context) ([]content.ContentType, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT name, label, public FROM content_types ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("listing content types: %w", err)
	}
	defer rows.Close()

	var types []content.ContentType
	for rows.Next() {
		var ct content.ContentType
		var public int
		if err := rows.Scan(&ct.Name, &ct.Label, &public); err != nil {
			return nil, err
		}
		ct.Public = public != 0
		types = append(types, ct)
	}
	return types, rows.Err()
}

// AddContentType registers a content type or updates its label and visibility.
func (db *DB) AddContentType(ctx context.Context, ct content.ContentType) error {
	public := 0
	if ct.Public {
		public = 1
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO content_types (name, label, public) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET label = excluded.label, public = excluded.public`,
		ct.Name, ct.Label, public,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItems(rows *sql.Rows) ([]content.Item, error) {
	var items []content.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func scanItem(row rowScanner) (*content.Item, error) {
	var it content.Item
	if err := row.Scan(&it.ID, &it.Title, &it.PublicURL, &it.ContentBody,
		&it.ContentTypeName, &it.Status); err != nil {
		return nil, err
	}
	it.EditURL = EditPath(it.ID)
	return &it, nil
}
