package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/taxpilot/fieldmap/internal/mapping"
)

// SQLiteStore implements Store with SQLite-based persistence. One row per
// (form_type, form_version); the document itself is stored as its canonical
// JSON record, with coverage/validated denormalized for listing.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the mapping cache database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}
	return store, nil
}

// initSchema creates the necessary tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS mappings (
		form_type    TEXT NOT NULL,
		form_version TEXT NOT NULL,
		coverage     REAL NOT NULL,
		validated    INTEGER NOT NULL,
		generated_at TEXT NOT NULL,
		document     TEXT NOT NULL,
		PRIMARY KEY (form_type, form_version)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get loads the cached document for a form template.
func (s *SQLiteStore) Get(ctx context.Context, formType, formVersion string) (*mapping.Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM mappings WHERE form_type = ? AND form_version = ?`,
		formType, formVersion,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s/%s: %w", formType, formVersion, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying mapping: %w", err)
	}

	var doc mapping.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decoding cached mapping: %w", err)
	}
	return &doc, nil
}

// Put stores a document, replacing any prior entry for the same key.
// Last writer wins; concurrent regeneration for the same template is rare
// and cheap to re-validate, so no merge is attempted.
func (s *SQLiteStore) Put(ctx context.Context, doc *mapping.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding mapping: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO mappings (form_type, form_version, coverage, validated, generated_at, document)
		VALUES (?, ?, ?, ?, ?, ?)`,
		doc.FormType, doc.FormVersion, doc.Coverage, doc.Validated,
		doc.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"), string(raw),
	)
	if err != nil {
		return fmt.Errorf("storing mapping: %w", err)
	}
	return nil
}

// List returns all cached documents, most recently generated first.
func (s *SQLiteStore) List(ctx context.Context) ([]*mapping.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document FROM mappings ORDER BY generated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing mappings: %w", err)
	}
	defer rows.Close()

	var docs []*mapping.Document
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning mapping row: %w", err)
		}
		var doc mapping.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decoding cached mapping: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
