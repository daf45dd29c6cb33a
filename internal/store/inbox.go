package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const inboxColumns = "id, job_id, type, candidate_json, suggestion_json, confidence, error_message, reviewed, created_at, updated_at"

// CreateInboxItem files a candidate for human review.
func (s *Store) CreateInboxItem(ctx context.Context, item *InboxItem) (*InboxItem, error) {
	if item == nil {
		return nil, errors.New("inbox item is nil")
	}
	if _, ok := ParseInboxType(string(item.Type)); !ok {
		return nil, fmt.Errorf("unknown inbox type %q", item.Type)
	}
	candidateJSON, err := json.Marshal(item.Candidate)
	if err != nil {
		return nil, fmt.Errorf("marshal candidate: %w", err)
	}
	suggestionJSON, err := json.Marshal(item.Suggestion)
	if err != nil {
		return nil, fmt.Errorf("marshal suggestion: %w", err)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO inbox_items (job_id, type, candidate_json, suggestion_json, confidence,
             error_message, reviewed, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		item.JobID,
		item.Type,
		string(candidateJSON),
		string(suggestionJSON),
		nullableFloat(item.Confidence),
		nullableString(item.ErrorMessage),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert inbox item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("inbox insert id: %w", err)
	}
	return s.GetInboxItem(ctx, id)
}

// GetInboxItem fetches an item by identifier, returning nil when absent.
func (s *Store) GetInboxItem(ctx context.Context, id int64) (*InboxItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+inboxColumns+` FROM inbox_items WHERE id = ?`, id)
	item, err := scanInboxItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get inbox item: %w", err)
	}
	return item, nil
}

// InboxFilter narrows ListInboxItems. Zero value lists everything.
type InboxFilter struct {
	Type     InboxType
	Reviewed *bool
}

// ListInboxItems returns inbox items matching the filter, oldest first.
func (s *Store) ListInboxItems(ctx context.Context, filter InboxFilter) ([]*InboxItem, error) {
	query := `SELECT ` + inboxColumns + ` FROM inbox_items`
	var clauses []string
	var args []any
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Reviewed != nil {
		clauses = append(clauses, "reviewed = ?")
		args = append(args, boolToInt(*filter.Reviewed))
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inbox items: %w", err)
	}
	defer rows.Close()

	var items []*InboxItem
	for rows.Next() {
		item, err := scanInboxItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateInboxItem rewrites the candidate and suggestion payloads in place.
// Used by review actions that refresh data without resolving the item.
func (s *Store) UpdateInboxItem(ctx context.Context, item *InboxItem) error {
	if item == nil || item.ID == 0 {
		return errors.New("inbox item missing id")
	}
	candidateJSON, err := json.Marshal(item.Candidate)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	suggestionJSON, err := json.Marshal(item.Suggestion)
	if err != nil {
		return fmt.Errorf("marshal suggestion: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE inbox_items SET type = ?, candidate_json = ?, suggestion_json = ?,
             confidence = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND reviewed = 0`,
		item.Type,
		string(candidateJSON),
		string(suggestionJSON),
		nullableFloat(item.Confidence),
		nullableString(item.ErrorMessage),
		time.Now().UTC().Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update inbox item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("inbox item %d is reviewed or missing", item.ID)
	}
	return nil
}

// MarkInboxReviewed resolves an item. Returns false when the item was
// already reviewed, so callers can refuse double resolution.
func (s *Store) MarkInboxReviewed(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE inbox_items SET reviewed = 1, updated_at = ? WHERE id = ? AND reviewed = 0`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return false, fmt.Errorf("mark inbox reviewed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CountUnreviewed returns the number of items awaiting review.
func (s *Store) CountUnreviewed(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM inbox_items WHERE reviewed = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unreviewed: %w", err)
	}
	return count, nil
}

func scanInboxItem(scanner rowScanner) (*InboxItem, error) {
	var (
		item           InboxItem
		typeStr        string
		candidateJSON  string
		suggestionJSON string
		confidence     sql.NullFloat64
		errorMessage   sql.NullString
		reviewed       int
		createdRaw     string
		updatedRaw     string
	)
	if err := scanner.Scan(
		&item.ID,
		&item.JobID,
		&typeStr,
		&candidateJSON,
		&suggestionJSON,
		&confidence,
		&errorMessage,
		&reviewed,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	item.Type = InboxType(typeStr)
	if err := json.Unmarshal([]byte(candidateJSON), &item.Candidate); err != nil {
		return nil, fmt.Errorf("decode candidate: %w", err)
	}
	if err := json.Unmarshal([]byte(suggestionJSON), &item.Suggestion); err != nil {
		return nil, fmt.Errorf("decode suggestion: %w", err)
	}
	if confidence.Valid {
		value := confidence.Float64
		item.Confidence = &value
	}
	item.ErrorMessage = errorMessage.String
	item.Reviewed = reviewed != 0
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return &item, nil
}
