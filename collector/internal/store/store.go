// Package store provides the data access layer for the feedback database.
//
// The store receives an already-opened *sql.DB (see dbopen) and never
// mutates existing rows: the persistence gate is insert-if-absent only.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Store wraps the feedback database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

const itemColumns = `id, author_name, author_handle, text, url,
	source_type, source_detail, parent_text, parent_url,
	likes, retweets, replies, category, created_at, collected_at`

// Exists reports whether an item with this id is already stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx,
		`SELECT 1 FROM feedback_items WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: exists: %w", err)
	}
	return true, nil
}

// InsertIfAbsent commits the item unless its id is already stored.
// Returns true iff a row was actually inserted. Existing rows are never
// touched, so a later observation of the same id cannot mutate history.
func (s *Store) InsertIfAbsent(ctx context.Context, item *Item) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO feedback_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		item.ID, item.AuthorName, item.AuthorHandle, item.Text, item.URL,
		item.SourceType, item.SourceDetail, item.ParentText, item.ParentURL,
		item.Likes, item.Retweets, item.Replies, item.Category,
		item.CreatedAt, item.CollectedAt,
	)
	if err != nil {
		return false, fmt.Errorf("store: insert item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: insert item: %w", err)
	}
	return n > 0, nil
}

// ListRange returns items whose created_at falls in [since, until], newest
// first. Both bounds are inclusive and compared as canonical RFC 3339 UTC
// strings; pass "" for an unbounded end. Items with an empty created_at
// (timestamp never parsed) match every range.
func (s *Store) ListRange(ctx context.Context, since, until string) ([]*Item, error) {
	q := `SELECT ` + itemColumns + ` FROM feedback_items`
	var clauses []string
	var args []any

	if since != "" {
		clauses = append(clauses, `(created_at = '' OR created_at >= ?)`)
		args = append(args, since)
	}
	if until != "" {
		clauses = append(clauses, `(created_at = '' OR created_at <= ?)`)
		args = append(args, until)
	}
	for i, c := range clauses {
		if i == 0 {
			q += " WHERE " + c
		} else {
			q += " AND " + c
		}
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list range: %w", err)
	}
	defer rows.Close()

	var result []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func scanItem(rows *sql.Rows) (*Item, error) {
	var it Item
	if err := rows.Scan(&it.ID, &it.AuthorName, &it.AuthorHandle, &it.Text, &it.URL,
		&it.SourceType, &it.SourceDetail, &it.ParentText, &it.ParentURL,
		&it.Likes, &it.Retweets, &it.Replies, &it.Category,
		&it.CreatedAt, &it.CollectedAt); err != nil {
		return nil, fmt.Errorf("store: scan item: %w", err)
	}
	return &it, nil
}

// Stats returns aggregate counters over the whole store.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(source_type = 'timeline_reply'), 0),
			COALESCE(SUM(source_type = 'thread_reply'), 0),
			COALESCE(SUM(source_type = 'keyword_mention'), 0),
			COALESCE(SUM(category = 'feature_request'), 0),
			COALESCE(SUM(category = 'product_feedback'), 0),
			COALESCE(SUM(category = 'general_feedback'), 0)
		FROM feedback_items`).
		Scan(&stats.Total, &stats.TimelineReplies, &stats.ThreadReplies,
			&stats.KeywordMentions, &stats.FeatureRequests,
			&stats.ProductFeedback, &stats.GeneralFeedback)
	if err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&stats.Runs); err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	return &stats, nil
}
