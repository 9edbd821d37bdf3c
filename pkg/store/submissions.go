package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/coolbeans/fieldmap/pkg/extract"
)

// Save stores a submission and its fields. When the same content was already
// saved for the same profile it returns the existing id and ErrDuplicate.
func (s *SQLiteStore) Save(ctx context.Context, sub *Submission) (int64, error) {
	if sub == nil {
		return 0, fmt.Errorf("submission cannot be nil")
	}
	if strings.TrimSpace(sub.Content) == "" {
		return 0, fmt.Errorf("submission content cannot be empty")
	}

	if sub.ContentHash == "" {
		sub.ContentHash = HashSubmission(sub.ProfileID, sub.Content)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// The insert takes the write lock, so the duplicate lookup below cannot
	// race another Save.
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO submissions (profile_id, source, content, content_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(content_hash) DO NOTHING`,
		sub.ProfileID, sub.Source, sub.Content, sub.ContentHash, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting submission: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking insert: %w", err)
	}
	if inserted == 0 {
		var existing int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM submissions WHERE content_hash = ?`, sub.ContentHash,
		).Scan(&existing); err != nil {
			return 0, fmt.Errorf("looking up duplicate: %w", err)
		}
		return existing, ErrDuplicate
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO submission_fields (submission_id, position, key, value) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, f := range sub.Fields {
		if _, err := stmt.ExecContext(ctx, id, i, f.Key, f.Value); err != nil {
			return 0, fmt.Errorf("inserting field %q: %w", f.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing submission: %w", err)
	}

	sub.ID = id
	sub.CreatedAt = now
	return id, nil
}

// Get retrieves a submission by ID.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Submission, error) {
	sub := &Submission{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, profile_id, source, content, content_hash, created_at
		 FROM submissions WHERE id = ?`, id,
	).Scan(&sub.ID, &sub.ProfileID, &sub.Source, &sub.Content, &sub.ContentHash, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting submission %d: %w", id, err)
	}

	if sub.Fields, err = s.fields(ctx, id); err != nil {
		return nil, err
	}
	return sub, nil
}

// List returns submissions newest first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOpts) ([]*Submission, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	query := `SELECT id, profile_id, source, content, content_hash, created_at
			  FROM submissions WHERE 1=1`
	args := []any{}

	if opts.ProfileID != "" {
		query += " AND profile_id = ?"
		args = append(args, opts.ProfileID)
	}
	if opts.Source != "" {
		query += " AND source = ?"
		args = append(args, opts.Source)
	}

	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}

	var subs []*Submission
	for rows.Next() {
		sub := &Submission{}
		if err := rows.Scan(&sub.ID, &sub.ProfileID, &sub.Source, &sub.Content, &sub.ContentHash, &sub.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Fields are loaded after the rows are closed so an in-memory store with
	// a single connection does not block.
	for _, sub := range subs {
		if sub.Fields, err = s.fields(ctx, sub.ID); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

// Search finds submissions whose body or source matches an FTS5 query,
// best match first.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]*SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.profile_id, s.source, s.content, s.content_hash, s.created_at,
		        rank,
		        snippet(submissions_fts, 0, '[', ']', '...', 16)
		 FROM submissions_fts
		 JOIN submissions s ON submissions_fts.rowid = s.id
		 WHERE submissions_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("FTS search: %w", err)
	}

	var results []*SearchResult
	for rows.Next() {
		sub := &Submission{}
		r := &SearchResult{Submission: sub}
		if err := rows.Scan(&sub.ID, &sub.ProfileID, &sub.Source, &sub.Content, &sub.ContentHash, &sub.CreatedAt,
			&r.Score, &r.Snippet); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		// FTS5 rank is negative; lower is better.
		r.Score = -r.Score
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, r := range results {
		if r.Submission.Fields, err = s.fields(ctx, r.Submission.ID); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Delete removes a submission and its fields.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// foreign_keys is a per-connection pragma, so the cascade is not relied on.
	if _, err := tx.ExecContext(ctx, `DELETE FROM submission_fields WHERE submission_id = ?`, id); err != nil {
		return fmt.Errorf("deleting fields of %d: %w", id, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting submission %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	return tx.Commit()
}

// Stats returns submission and field counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{ByProfile: map[string]int64{}}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&stats.SubmissionCount); err != nil {
		return nil, fmt.Errorf("counting submissions: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submission_fields`).Scan(&stats.FieldCount); err != nil {
		return nil, fmt.Errorf("counting fields: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT profile_id, COUNT(*) FROM submissions GROUP BY profile_id`)
	if err != nil {
		return nil, fmt.Errorf("counting by profile: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var profileID string
		var count int64
		if err := rows.Scan(&profileID, &count); err != nil {
			return nil, fmt.Errorf("scanning profile count: %w", err)
		}
		stats.ByProfile[profileID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.dbPath != ":memory:" {
		if info, err := os.Stat(s.dbPath); err == nil {
			stats.DBSizeBytes = info.Size()
		}
	}

	return stats, nil
}

func (s *SQLiteStore) fields(ctx context.Context, id int64) ([]extract.Field, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM submission_fields WHERE submission_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("loading fields for %d: %w", id, err)
	}
	defer rows.Close()

	fields := []extract.Field{}
	for rows.Next() {
		var f extract.Field
		if err := rows.Scan(&f.Key, &f.Value); err != nil {
			return nil, fmt.Errorf("scanning field: %w", err)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}
