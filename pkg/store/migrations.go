package store

import (
	"fmt"
)

const schemaVersion = "1"

// migrate creates all tables if they don't exist.
func (s *SQLiteStore) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration: %w", err)
	}
	defer tx.Rollback()

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS submissions (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			profile_id   TEXT NOT NULL DEFAULT '',
			source       TEXT NOT NULL DEFAULT '',
			content      TEXT NOT NULL,
			content_hash TEXT NOT NULL UNIQUE,
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_submissions_profile ON submissions(profile_id)`,

		`CREATE TABLE IF NOT EXISTS submission_fields (
			submission_id INTEGER NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
			position      INTEGER NOT NULL,
			key           TEXT NOT NULL,
			value         TEXT NOT NULL,
			PRIMARY KEY (submission_id, position)
		)`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS submissions_fts USING fts5(
			content,
			source,
			content=submissions,
			content_rowid=id,
			tokenize='porter unicode61'
		)`,

		`CREATE TRIGGER IF NOT EXISTS submissions_ai AFTER INSERT ON submissions BEGIN
			INSERT INTO submissions_fts(rowid, content, source)
			VALUES (new.id, new.content, new.source);
		END`,

		`CREATE TRIGGER IF NOT EXISTS submissions_ad AFTER DELETE ON submissions BEGIN
			INSERT INTO submissions_fts(submissions_fts, rowid, content, source)
			VALUES ('delete', old.id, old.content, old.source);
		END`,
	}

	for _, stmt := range ddl {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)`, schemaVersion,
	); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}

	return tx.Commit()
}
