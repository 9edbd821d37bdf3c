// Package store persists extracted form submissions in SQLite.
//
// Each submission keeps the raw email body, the profile it was mapped with,
// where it came from and its fields in key-set order. A full-text index over
// the bodies backs Search.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/coolbeans/fieldmap/pkg/extract"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.fieldmap/fieldmap.db"

var (
	// ErrDuplicate is returned by Save when the same body was already stored
	// for the same profile. The returned id is the existing submission's.
	ErrDuplicate = errors.New("submission already stored")

	// ErrNotFound is returned when a submission id does not exist.
	ErrNotFound = errors.New("submission not found")
)

// Submission is one stored form email and its extracted fields.
type Submission struct {
	ID          int64           `json:"id"`
	ProfileID   string          `json:"profile_id,omitempty"`
	Source      string          `json:"source,omitempty"`
	Content     string          `json:"content"`
	ContentHash string          `json:"content_hash"`
	Fields      []extract.Field `json:"fields"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Value returns the value stored for key.
func (s *Submission) Value(key string) (string, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// ListOpts controls pagination and filtering for List.
type ListOpts struct {
	ProfileID string
	Source    string
	Limit     int
	Offset    int
}

// SearchResult is a submission matched by Search.
type SearchResult struct {
	Submission *Submission `json:"submission"`
	Score      float64     `json:"score"`
	Snippet    string      `json:"snippet"`
}

// StoreStats holds counts about the store.
type StoreStats struct {
	SubmissionCount int64            `json:"submission_count"`
	FieldCount      int64            `json:"field_count"`
	ByProfile       map[string]int64 `json:"by_profile"`
	DBSizeBytes     int64            `json:"db_size_bytes"`
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store defines the submission storage interface.
type Store interface {
	Save(ctx context.Context, s *Submission) (int64, error)
	Get(ctx context.Context, id int64) (*Submission, error)
	List(ctx context.Context, opts ListOpts) ([]*Submission, error)
	Search(ctx context.Context, query string, limit int) ([]*SearchResult, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*StoreStats, error)
	Close() error
}

// SQLiteStore implements Store using SQLite + FTS5.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to ":memory:" opens a separate database.
	if cfg.DBPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
