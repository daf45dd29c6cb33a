package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const entryColumns = "id, job_id, source_url, library_id, subfolder, title, description, duration, platform, uploader, favorite, rating, created_at, updated_at"

const entryFileColumns = "id, entry_id, path, fingerprint, type, container, size, duration, bitrate, width, height, available"

// CreateEntry commits an entry together with its files, tags, and properties
// in a single transaction. Tag names are created on first use.
func (s *Store) CreateEntry(ctx context.Context, entry *Entry, files []EntryFile, tags []SuggestedTag, properties []SuggestedProperty) (*Entry, error) {
	if entry == nil {
		return nil, errors.New("entry is nil")
	}
	if strings.TrimSpace(entry.Title) == "" {
		return nil, errors.New("entry title required")
	}
	if entry.LibraryID <= 0 {
		return nil, errors.New("entry library id required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin entry tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO entries (job_id, source_url, library_id, subfolder, title, description,
             duration, platform, uploader, favorite, rating, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableID(entry.JobID),
		entry.SourceURL,
		entry.LibraryID,
		nullableString(entry.Subfolder),
		entry.Title,
		nullableString(entry.Description),
		entry.Duration,
		nullableString(entry.Platform),
		nullableString(entry.Uploader),
		boolToInt(entry.Favorite),
		entry.Rating,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	entryID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("entry insert id: %w", err)
	}

	for _, file := range files {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entry_files (entry_id, path, fingerprint, type, container, size,
                 duration, bitrate, width, height, available)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			entryID,
			file.Path,
			file.Fingerprint,
			file.Type,
			nullableString(file.Container),
			file.Size,
			file.Duration,
			file.Bitrate,
			file.Width,
			file.Height,
		); err != nil {
			return nil, fmt.Errorf("insert entry file: %w", err)
		}
	}

	for _, tag := range tags {
		name := strings.ToLower(strings.TrimSpace(tag.Name))
		if name == "" {
			continue
		}
		tagID, err := ensureTagTx(ctx, tx, name)
		if err != nil {
			return nil, err
		}
		provenance := tag.Provenance
		if provenance == "" {
			provenance = ProvenanceModel
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO entry_tags (entry_id, tag_id, provenance, confidence) VALUES (?, ?, ?, ?)`,
			entryID, tagID, provenance, tag.Confidence); err != nil {
			return nil, fmt.Errorf("attach tag %q: %w", name, err)
		}
	}

	for _, property := range properties {
		key := strings.TrimSpace(property.Key)
		if key == "" {
			continue
		}
		provenance := property.Provenance
		if provenance == "" {
			provenance = ProvenanceModel
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO entry_properties (entry_id, key, value, provenance, confidence)
             VALUES (?, ?, ?, ?, ?)`,
			entryID, key, property.Value, provenance, property.Confidence); err != nil {
			return nil, fmt.Errorf("attach property %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit entry: %w", err)
	}
	return s.GetEntry(ctx, entryID)
}

// GetEntry fetches an entry by identifier, returning nil when absent.
func (s *Store) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// ListEntries returns entries, optionally filtered to one library.
func (s *Store) ListEntries(ctx context.Context, libraryID int64) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries`
	var args []any
	if libraryID > 0 {
		query += ` WHERE library_id = ?`
		args = append(args, libraryID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListEntrySubfolders returns the distinct non-empty subfolders already in
// use within a library, alphabetically.
func (s *Store) ListEntrySubfolders(ctx context.Context, libraryID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT subfolder FROM entries WHERE library_id = ? AND subfolder <> '' ORDER BY subfolder`,
		libraryID)
	if err != nil {
		return nil, fmt.Errorf("list entry subfolders: %w", err)
	}
	defer rows.Close()

	var subfolders []string
	for rows.Next() {
		var subfolder string
		if err := rows.Scan(&subfolder); err != nil {
			return nil, fmt.Errorf("scan subfolder: %w", err)
		}
		subfolders = append(subfolders, subfolder)
	}
	return subfolders, rows.Err()
}

// FindEntryFileByFingerprint returns the first available file matching the
// fingerprint, or nil when no committed entry owns such a file.
func (s *Store) FindEntryFileByFingerprint(ctx context.Context, fingerprint string) (*EntryFile, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryFileColumns+` FROM entry_files WHERE fingerprint = ? AND available = 1 ORDER BY id LIMIT 1`,
		fingerprint)
	file, err := scanEntryFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find file by fingerprint: %w", err)
	}
	return file, nil
}

// FindEntryBySourceURL returns the most recent entry imported from the URL.
func (s *Store) FindEntryBySourceURL(ctx context.Context, sourceURL string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE source_url = ? ORDER BY created_at DESC LIMIT 1`,
		sourceURL)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find entry by source url: %w", err)
	}
	return entry, nil
}

// ListEntryFiles returns the files owned by an entry.
func (s *Store) ListEntryFiles(ctx context.Context, entryID int64) ([]EntryFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryFileColumns+` FROM entry_files WHERE entry_id = ? ORDER BY id`, entryID)
	if err != nil {
		return nil, fmt.Errorf("list entry files: %w", err)
	}
	defer rows.Close()

	var files []EntryFile
	for rows.Next() {
		file, err := scanEntryFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *file)
	}
	return files, rows.Err()
}

// MarkFileAvailability records whether a file still exists on disk.
func (s *Store) MarkFileAvailability(ctx context.Context, fileID int64, available bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE entry_files SET available = ? WHERE id = ?`, boolToInt(available), fileID)
	if err != nil {
		return fmt.Errorf("mark file availability: %w", err)
	}
	return nil
}

// SetFavorite toggles the favorite flag on an entry.
func (s *Store) SetFavorite(ctx context.Context, entryID int64, favorite bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE entries SET favorite = ?, updated_at = ? WHERE id = ?`,
		boolToInt(favorite), time.Now().UTC().Format(time.RFC3339Nano), entryID)
	if err != nil {
		return fmt.Errorf("set favorite: %w", err)
	}
	return nil
}

// SetRating stores a 0..5 rating on an entry.
func (s *Store) SetRating(ctx context.Context, entryID int64, rating int) error {
	if rating < 0 || rating > 5 {
		return fmt.Errorf("rating %d out of range", rating)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE entries SET rating = ?, updated_at = ? WHERE id = ?`,
		rating, time.Now().UTC().Format(time.RFC3339Nano), entryID)
	if err != nil {
		return fmt.Errorf("set rating: %w", err)
	}
	return nil
}

func scanEntry(scanner rowScanner) (*Entry, error) {
	var (
		entry       Entry
		jobID       sql.NullInt64
		subfolder   sql.NullString
		description sql.NullString
		platform    sql.NullString
		uploader    sql.NullString
		favorite    int
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(
		&entry.ID,
		&jobID,
		&entry.SourceURL,
		&entry.LibraryID,
		&subfolder,
		&entry.Title,
		&description,
		&entry.Duration,
		&platform,
		&uploader,
		&favorite,
		&entry.Rating,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	entry.JobID = jobID.Int64
	entry.Subfolder = subfolder.String
	entry.Description = description.String
	entry.Platform = platform.String
	entry.Uploader = uploader.String
	entry.Favorite = favorite != 0
	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}
	return &entry, nil
}

func scanEntryFile(scanner rowScanner) (*EntryFile, error) {
	var (
		file      EntryFile
		container sql.NullString
		available int
	)
	if err := scanner.Scan(
		&file.ID,
		&file.EntryID,
		&file.Path,
		&file.Fingerprint,
		&file.Type,
		&container,
		&file.Size,
		&file.Duration,
		&file.Bitrate,
		&file.Width,
		&file.Height,
		&available,
	); err != nil {
		return nil, err
	}
	file.Container = container.String
	file.Available = available != 0
	return &file, nil
}
