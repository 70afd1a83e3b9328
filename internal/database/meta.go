package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// GetMeta returns the value stored under key for an item, or "" when absent.
func (db *DB) GetMeta(ctx context.Context, id int64, key string) (string, error) {
	var value string
	err := db.conn.QueryRowContext(ctx,
		"SELECT meta_value FROM item_meta WHERE item_id = ? AND meta_key = ?", id, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading meta %s for item %d: %w", key, id, err)
	}
	return value, nil
}

// SetMeta stores value under key for an item, replacing any previous value.
func (db *DB) SetMeta(ctx context.Context, id int64, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO item_meta (item_id, meta_key, meta_value) VALUES (?, ?, ?)
		ON CONFLICT(item_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value`,
		id, key, value,
	)
	if err != nil {
		return fmt.Errorf("writing meta %s for item %d: %w", key, id, err)
	}
	return nil
}

// AllMeta returns every metadata entry of an item.
func (db *DB) AllMeta(ctx context.Context, id int64) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT meta_key, meta_value FROM item_meta WHERE item_id = ? ORDER BY meta_key", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SearchMetaValues returns distinct non-empty values of key on published
// items that contain term, ascending, at most limit of them.
func (db *DB) SearchMetaValues(ctx context.Context, key, term string, limit int) ([]string, error) {
	if term == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT m.meta_value FROM item_meta m
		JOIN items i ON i.id = m.item_id
		WHERE m.meta_key = ? AND m.meta_value LIKE ? ESCAPE '\' AND m.meta_value != ''
		AND i.status = 'publish'
		ORDER BY m.meta_value ASC
		LIMIT ?`,
		key, "%"+escapeLike(term)+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching meta %s: %w", key, err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// CountMetaValues returns how many items carry each value of key.
func (db *DB) CountMetaValues(ctx context.Context, key string) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT meta_value, COUNT(*) FROM item_meta WHERE meta_key = ? GROUP BY meta_value", key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var v string
		var n int
		if err := rows.Scan(&v, &n); err != nil {
			return nil, err
		}
		counts[v] = n
	}
	return counts, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
