// Package cache persists translated lines in SQLite so repeated runs over
// the same cues skip the backend. Rows are keyed by a BLAKE3 digest of the
// scope, target language and source text.
package cache

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS translations (
	key         TEXT PRIMARY KEY,
	scope       TEXT NOT NULL,
	target      TEXT NOT NULL,
	source_text TEXT NOT NULL,
	translated  TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_translations_scope ON translations(scope, target);
`

type Store struct {
	db *sql.DB
}

// Open creates or opens the cache database at path. ":memory:" is allowed.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	// one writer, and a single shared in-memory database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Key is the hex BLAKE3 digest identifying one cached translation.
func Key(scope, target, text string) string {
	h := blake3.New()
	for _, part := range []string{scope, target, text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup returns the cached translations among texts, keyed by source text.
func (s *Store) Lookup(
	ctx context.Context,
	scope string,
	target string,
	texts []string,
) (map[string]string, error) {
	found := make(map[string]string)
	if len(texts) == 0 {
		return found, nil
	}

	stmt, err := s.db.PrepareContext(ctx, `SELECT translated FROM translations WHERE key = ?`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare lookup: %w", err)
	}
	defer stmt.Close()

	for _, text := range texts {
		if _, ok := found[text]; ok {
			continue
		}
		var translated string
		err := stmt.QueryRowContext(ctx, Key(scope, target, text)).Scan(&translated)
		switch {
		case err == sql.ErrNoRows:
			continue
		case err != nil:
			return nil, fmt.Errorf("cache lookup failed: %w", err)
		}
		found[text] = translated
	}
	return found, nil
}

// Save upserts translations, keyed by source text.
func (s *Store) Save(
	ctx context.Context,
	scope string,
	target string,
	translations map[string]string,
) error {
	if len(translations) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cache transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO translations (key, scope, target, source_text, translated, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET translated = excluded.translated, created_at = excluded.created_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare save: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for text, translated := range translations {
		if _, err := stmt.ExecContext(
			ctx,
			Key(scope, target, text),
			scope,
			target,
			text,
			translated,
			now,
		); err != nil {
			return fmt.Errorf("failed to save translation: %w", err)
		}
	}
	return tx.Commit()
}

// Len counts cached rows.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM translations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache rows: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
