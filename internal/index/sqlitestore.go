//go:build cgo

package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dusk-indust/syntaxkit/internal/lang"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens a SQLite database at dbPath with WAL mode enabled.
// ":memory:" opens a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000"
	if dbPath == ":memory:" {
		dsn = "file::memory:?_foreign_keys=ON"
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: create parent directory: %w", err)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  path       TEXT PRIMARY KEY,
  language   TEXT NOT NULL,
  size       INTEGER NOT NULL,
  hash       TEXT NOT NULL,
  truncated  BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS elements (
  id             INTEGER PRIMARY KEY,
  path           TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
  kind           TEXT NOT NULL,
  name           TEXT NOT NULL,
  start_byte     INTEGER NOT NULL,
  end_byte       INTEGER NOT NULL,
  start_row      INTEGER NOT NULL,
  start_col      INTEGER NOT NULL,
  end_row        INTEGER NOT NULL,
  end_col        INTEGER NOT NULL,
  documentation  TEXT NOT NULL,
  modifiers      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS diagnostics (
  id          INTEGER PRIMARY KEY,
  path        TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
  severity    TEXT NOT NULL,
  node_kind   TEXT NOT NULL,
  reason      TEXT NOT NULL,
  construct   TEXT NOT NULL,
  start_byte  INTEGER NOT NULL,
  end_byte    INTEGER NOT NULL,
  start_row   INTEGER NOT NULL,
  start_col   INTEGER NOT NULL,
  end_row     INTEGER NOT NULL,
  end_col     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_elements_path ON elements(path);
CREATE INDEX IF NOT EXISTS idx_elements_name ON elements(name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_diagnostics_path ON diagnostics(path);
`

// InitSchema creates all tables and indexes. Idempotent.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// PutFile upserts a file row.
func (s *SQLiteStore) PutFile(ctx context.Context, f File) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (path, language, size, hash, truncated) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   language = excluded.language, size = excluded.size,
		   hash = excluded.hash, truncated = excluded.truncated`,
		f.Path, string(f.Language), f.Size, f.Hash, f.Truncated,
	)
	if err != nil {
		return fmt.Errorf("put file: %w", err)
	}
	return nil
}

// GetFile returns the file at path, or nil if it is not indexed.
func (s *SQLiteStore) GetFile(ctx context.Context, path string) (*File, error) {
	f := &File{}
	var language string
	err := s.db.QueryRowContext(ctx,
		"SELECT path, language, size, hash, truncated FROM files WHERE path = ?", path,
	).Scan(&f.Path, &language, &f.Size, &f.Hash, &f.Truncated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	f.Language = lang.Language(language)
	return f, nil
}

// DeleteFile removes the file; elements and diagnostics cascade.
func (s *SQLiteStore) DeleteFile(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// ReplaceElements swaps the element rows of path in one transaction.
func (s *SQLiteStore) ReplaceElements(ctx context.Context, path string, els []traverse.CodeElement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM elements WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete elements: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO elements (path, kind, name, start_byte, end_byte, start_row, start_col,
		   end_row, end_col, documentation, modifiers)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert element: %w", err)
	}
	defer stmt.Close()
	for _, el := range els {
		_, err := stmt.ExecContext(ctx, path, string(el.Kind), el.Name,
			toInt64(el.Span.Start), toInt64(el.Span.End),
			toInt64(el.Start.Row), toInt64(el.Start.Column),
			toInt64(el.End.Row), toInt64(el.End.Column),
			el.Documentation, joinModifiers(el.Modifiers))
		if err != nil {
			return fmt.Errorf("insert element: %w", err)
		}
	}
	return tx.Commit()
}

const elementSelect = `SELECT path, kind, name, start_byte, end_byte, start_row, start_col,
  end_row, end_col, documentation, modifiers FROM elements`

// Elements returns the elements of path in document order.
func (s *SQLiteStore) Elements(ctx context.Context, path string) ([]Element, error) {
	rows, err := s.db.QueryContext(ctx,
		elementSelect+" WHERE path = ? ORDER BY start_byte, end_byte DESC, id", path)
	if err != nil {
		return nil, fmt.Errorf("elements: %w", err)
	}
	return scanElements(rows)
}

// SearchElements matches names case-insensitively.
func (s *SQLiteStore) SearchElements(ctx context.Context, query string, kind traverse.Kind, limit int) ([]Element, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		elementSelect+` WHERE instr(lower(name), lower(?)) > 0 AND (? = '' OR kind = ?)
		 ORDER BY path, start_byte, end_byte DESC, id LIMIT ?`,
		query, string(kind), string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("search elements: %w", err)
	}
	return scanElements(rows)
}

func scanElements(rows *sql.Rows) ([]Element, error) {
	defer rows.Close()
	var out []Element
	for rows.Next() {
		var (
			el         Element
			kind, mods string
			sb, eb     uint
			sr, sc     uint
			er, ec     uint
		)
		if err := rows.Scan(&el.Path, &kind, &el.Name, &sb, &eb, &sr, &sc, &er, &ec, &el.Documentation, &mods); err != nil {
			return nil, fmt.Errorf("scan element: %w", err)
		}
		el.Kind = traverse.Kind(kind)
		el.Span.Start, el.Span.End = sb, eb
		el.Start.Row, el.Start.Column = sr, sc
		el.End.Row, el.End.Column = er, ec
		el.Modifiers = splitModifiers(mods)
		out = append(out, el)
	}
	return out, rows.Err()
}

// ReplaceDiagnostics swaps the diagnostic rows of path in one transaction.
func (s *SQLiteStore) ReplaceDiagnostics(ctx context.Context, path string, diags []traverse.Diagnostic) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM diagnostics WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete diagnostics: %w", err)
	}
	for _, d := range diags {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO diagnostics (path, severity, node_kind, reason, construct, start_byte,
			   end_byte, start_row, start_col, end_row, end_col)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			path, string(d.Severity), d.NodeKind, d.Reason, d.Construct,
			toInt64(d.Span.Start), toInt64(d.Span.End),
			toInt64(d.Start.Row), toInt64(d.Start.Column),
			toInt64(d.End.Row), toInt64(d.End.Column))
		if err != nil {
			return fmt.Errorf("insert diagnostic: %w", err)
		}
	}
	return tx.Commit()
}

// Diagnostics returns the diagnostics of path in document order.
func (s *SQLiteStore) Diagnostics(ctx context.Context, path string) ([]Diagnostic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, severity, node_kind, reason, construct, start_byte, end_byte,
		   start_row, start_col, end_row, end_col
		 FROM diagnostics WHERE path = ? ORDER BY start_byte, id`, path)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: %w", err)
	}
	defer rows.Close()

	var out []Diagnostic
	for rows.Next() {
		var (
			d        Diagnostic
			severity string
		)
		err := rows.Scan(&d.Path, &severity, &d.NodeKind, &d.Reason, &d.Construct,
			&d.Span.Start, &d.Span.End, &d.Start.Row, &d.Start.Column, &d.End.Row, &d.End.Column)
		if err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Severity = traverse.Severity(severity)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Stats returns row counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT count(*) FROM files), (SELECT count(*) FROM elements), (SELECT count(*) FROM diagnostics)`,
	).Scan(&st.FileCount, &st.ElementCount, &st.DiagnosticCount)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &st, nil
}
