package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// EnsureTag returns the identifier for a tag name, creating it on first use.
// Names are stored lowercased and trimmed.
func (s *Store) EnsureTag(ctx context.Context, name string) (int64, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return 0, errors.New("tag name required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tag tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	id, err := ensureTagTx(ctx, tx, normalized)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tag: %w", err)
	}
	return id, nil
}

func ensureTagTx(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup tag %q: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("insert tag %q: %w", name, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("tag insert id: %w", err)
	}
	return id, nil
}

// ListTags returns all tags ordered by name.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// TagsForEntry returns the tag associations on an entry.
func (s *Store) TagsForEntry(ctx context.Context, entryID int64) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.name FROM tags t
         JOIN entry_tags et ON et.tag_id = t.id
         WHERE et.entry_id = ? ORDER BY t.name`, entryID)
	if err != nil {
		return nil, fmt.Errorf("tags for entry: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// PropertiesForEntry returns the key/value facts on an entry.
func (s *Store) PropertiesForEntry(ctx context.Context, entryID int64) ([]EntryProperty, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id, key, value, provenance, confidence
         FROM entry_properties WHERE entry_id = ? ORDER BY key`, entryID)
	if err != nil {
		return nil, fmt.Errorf("properties for entry: %w", err)
	}
	defer rows.Close()

	var properties []EntryProperty
	for rows.Next() {
		var property EntryProperty
		if err := rows.Scan(&property.EntryID, &property.Key, &property.Value,
			&property.Provenance, &property.Confidence); err != nil {
			return nil, err
		}
		properties = append(properties, property)
	}
	return properties, rows.Err()
}

// MergeTags repoints every association from the source tag to the target tag
// and deletes the source. Entries already carrying the target keep their
// existing association; no orphan rows remain.
func (s *Store) MergeTags(ctx context.Context, sourceID, targetID int64) error {
	if sourceID == targetID {
		return errors.New("merge tags: source and target are the same")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM tags WHERE id IN (?, ?)`, sourceID, targetID).Scan(&exists); err != nil {
		return fmt.Errorf("merge tags lookup: %w", err)
	}
	if exists != 2 {
		return errors.New("merge tags: source or target does not exist")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE OR IGNORE entry_tags SET tag_id = ? WHERE tag_id = ?`, targetID, sourceID); err != nil {
		return fmt.Errorf("repoint tag associations: %w", err)
	}
	// Associations that collided with an existing target row remain on the
	// source and must be dropped with it.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM entry_tags WHERE tag_id = ?`, sourceID); err != nil {
		return fmt.Errorf("drop residual associations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, sourceID); err != nil {
		return fmt.Errorf("delete merged tag: %w", err)
	}
	return tx.Commit()
}
