//go:build cgo

package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"fortio.org/safecast"
	kuzu "github.com/kuzudb/go-kuzu"

	"github.com/dusk-indust/syntaxkit/internal/lang"
	"github.com/dusk-indust/syntaxkit/internal/syntax"
	"github.com/dusk-indust/syntaxkit/internal/traverse"
)

// KuzuStore implements the Store interface using KuzuDB as the graph backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given path. KuzuDB creates the leaf itself for new databases.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	db, err := kuzu.OpenDatabase(path, kuzu.DefaultSystemConfig())
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Order matters: node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS File(
		path STRING,
		language STRING,
		size INT64,
		hash STRING,
		truncated BOOLEAN,
		PRIMARY KEY(path)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Element(
		id STRING,
		path STRING,
		kind STRING,
		name STRING,
		start_byte INT64,
		end_byte INT64,
		start_row INT64,
		start_col INT64,
		end_row INT64,
		end_col INT64,
		documentation STRING,
		modifiers STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Diagnostic(
		id STRING,
		path STRING,
		severity STRING,
		node_kind STRING,
		reason STRING,
		construct STRING,
		start_byte INT64,
		end_byte INT64,
		start_row INT64,
		start_col INT64,
		end_row INT64,
		end_col INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS HAS_ELEMENT(FROM File TO Element)`,
	`CREATE REL TABLE IF NOT EXISTS HAS_DIAGNOSTIC(FROM File TO Diagnostic)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Files ----------

// PutFile upserts a File node.
func (s *KuzuStore) PutFile(_ context.Context, f File) error {
	return s.exec(
		`MERGE (f:File {path: $path})
		 SET f.language = $lang, f.size = $size, f.hash = $hash, f.truncated = $truncated`,
		map[string]any{
			"path":      f.Path,
			"lang":      string(f.Language),
			"size":      int64(f.Size),
			"hash":      f.Hash,
			"truncated": f.Truncated,
		},
	)
}

// GetFile retrieves a single File node by path, or returns nil if not found.
func (s *KuzuStore) GetFile(_ context.Context, path string) (*File, error) {
	rows, err := s.query(
		"MATCH (f:File {path: $path}) RETURN f.path, f.language, f.size, f.hash, f.truncated",
		map[string]any{"path": path},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &File{
		Path:      toString(r[0]),
		Language:  lang.Language(toString(r[1])),
		Size:      toInt(r[2]),
		Hash:      toString(r[3]),
		Truncated: toBool(r[4]),
	}, nil
}

// DeleteFile removes the File node and everything it contains.
func (s *KuzuStore) DeleteFile(_ context.Context, path string) error {
	for _, cypher := range []string{
		"MATCH (e:Element) WHERE e.path = $path DETACH DELETE e",
		"MATCH (d:Diagnostic) WHERE d.path = $path DETACH DELETE d",
		"MATCH (f:File {path: $path}) DETACH DELETE f",
	} {
		if err := s.exec(cypher, map[string]any{"path": path}); err != nil {
			return err
		}
	}
	return nil
}

// ---------- Elements ----------

// ReplaceElements deletes the file's Element nodes and inserts els, linked
// to the File node by HAS_ELEMENT edges. The File node must exist.
func (s *KuzuStore) ReplaceElements(_ context.Context, path string, els []traverse.CodeElement) error {
	if err := s.exec("MATCH (e:Element) WHERE e.path = $path DETACH DELETE e", map[string]any{"path": path}); err != nil {
		return err
	}
	for i, el := range els {
		err := s.exec(
			`MATCH (f:File {path: $path})
			 CREATE (f)-[:HAS_ELEMENT]->(:Element {
				id: $id,
				path: $path,
				kind: $kind,
				name: $name,
				start_byte: $sb,
				end_byte: $eb,
				start_row: $sr,
				start_col: $sc,
				end_row: $er,
				end_col: $ec,
				documentation: $doc,
				modifiers: $mods
			 })`,
			map[string]any{
				"id":   elementID(path, i),
				"path": path,
				"kind": string(el.Kind),
				"name": el.Name,
				"sb":   toInt64(el.Span.Start),
				"eb":   toInt64(el.Span.End),
				"sr":   toInt64(el.Start.Row),
				"sc":   toInt64(el.Start.Column),
				"er":   toInt64(el.End.Row),
				"ec":   toInt64(el.End.Column),
				"doc":  el.Documentation,
				"mods": joinModifiers(el.Modifiers),
			},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

const elementColumns = `e.path, e.kind, e.name, e.start_byte, e.end_byte,
	e.start_row, e.start_col, e.end_row, e.end_col, e.documentation, e.modifiers`

// Elements returns the elements of path in document order.
func (s *KuzuStore) Elements(_ context.Context, path string) ([]Element, error) {
	rows, err := s.query(
		"MATCH (e:Element) WHERE e.path = $path RETURN "+elementColumns,
		map[string]any{"path": path},
	)
	if err != nil {
		return nil, err
	}
	return rowsToElements(rows), nil
}

// SearchElements matches names case-insensitively.
func (s *KuzuStore) SearchElements(_ context.Context, queryStr string, kind traverse.Kind, limit int) ([]Element, error) {
	cypher := `MATCH (e:Element)
		WHERE ($q = '' OR lower(e.name) CONTAINS lower($q)) AND ($kind = '' OR e.kind = $kind)
		RETURN ` + elementColumns + `
		ORDER BY e.path, e.start_byte, e.end_byte DESC`
	params := map[string]any{"q": queryStr, "kind": string(kind)}
	if limit > 0 {
		cypher += " LIMIT $lim"
		params["lim"] = int64(limit)
	}
	rows, err := s.query(cypher, params)
	if err != nil {
		return nil, err
	}
	return rowsToElements(rows), nil
}

// rowsToElements converts rows in elementColumns order.
func rowsToElements(rows [][]any) []Element {
	out := make([]Element, 0, len(rows))
	for _, r := range rows {
		out = append(out, Element{
			Path: toString(r[0]),
			CodeElement: traverse.CodeElement{
				Kind:          traverse.Kind(toString(r[1])),
				Name:          toString(r[2]),
				Span:          syntax.ByteRange{Start: toUint(r[3]), End: toUint(r[4])},
				Start:         syntax.Point{Row: toUint(r[5]), Column: toUint(r[6])},
				End:           syntax.Point{Row: toUint(r[7]), Column: toUint(r[8])},
				Documentation: toString(r[9]),
				Modifiers:     splitModifiers(toString(r[10])),
			},
		})
	}
	sortElements(out)
	return out
}

// ---------- Diagnostics ----------

// ReplaceDiagnostics deletes the file's Diagnostic nodes and inserts diags.
func (s *KuzuStore) ReplaceDiagnostics(_ context.Context, path string, diags []traverse.Diagnostic) error {
	if err := s.exec("MATCH (d:Diagnostic) WHERE d.path = $path DETACH DELETE d", map[string]any{"path": path}); err != nil {
		return err
	}
	for i, d := range diags {
		err := s.exec(
			`MATCH (f:File {path: $path})
			 CREATE (f)-[:HAS_DIAGNOSTIC]->(:Diagnostic {
				id: $id,
				path: $path,
				severity: $severity,
				node_kind: $nodeKind,
				reason: $reason,
				construct: $construct,
				start_byte: $sb,
				end_byte: $eb,
				start_row: $sr,
				start_col: $sc,
				end_row: $er,
				end_col: $ec
			 })`,
			map[string]any{
				"id":        diagnosticID(path, i),
				"path":      path,
				"severity":  string(d.Severity),
				"nodeKind":  d.NodeKind,
				"reason":    d.Reason,
				"construct": d.Construct,
				"sb":        toInt64(d.Span.Start),
				"eb":        toInt64(d.Span.End),
				"sr":        toInt64(d.Start.Row),
				"sc":        toInt64(d.Start.Column),
				"er":        toInt64(d.End.Row),
				"ec":        toInt64(d.End.Column),
			},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Diagnostics returns the diagnostics of path in document order.
func (s *KuzuStore) Diagnostics(_ context.Context, path string) ([]Diagnostic, error) {
	rows, err := s.query(
		`MATCH (d:Diagnostic) WHERE d.path = $path
		 RETURN d.path, d.severity, d.node_kind, d.reason, d.construct,
		        d.start_byte, d.end_byte, d.start_row, d.start_col, d.end_row, d.end_col`,
		map[string]any{"path": path},
	)
	if err != nil {
		return nil, err
	}
	out := make([]Diagnostic, 0, len(rows))
	for _, r := range rows {
		out = append(out, Diagnostic{
			Path: toString(r[0]),
			Diagnostic: traverse.Diagnostic{
				Severity:  traverse.Severity(toString(r[1])),
				NodeKind:  toString(r[2]),
				Reason:    toString(r[3]),
				Construct: toString(r[4]),
				Span:      syntax.ByteRange{Start: toUint(r[5]), End: toUint(r[6])},
				Start:     syntax.Point{Row: toUint(r[7]), Column: toUint(r[8])},
				End:       syntax.Point{Row: toUint(r[9]), Column: toUint(r[10])},
			},
		})
	}
	sortDiagnostics(out)
	return out, nil
}

// ---------- Stats ----------

// Stats returns node counts.
func (s *KuzuStore) Stats(_ context.Context) (*Stats, error) {
	files, err := s.countTable("File")
	if err != nil {
		return nil, err
	}
	elements, err := s.countTable("Element")
	if err != nil {
		return nil, err
	}
	diags, err := s.countTable("Diagnostic")
	if err != nil {
		return nil, err
	}
	return &Stats{FileCount: files, ElementCount: elements, DiagnosticCount: diags}, nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// countTable returns the number of rows in a node table.
func (s *KuzuStore) countTable(table string) (int, error) {
	// Table name is a fixed internal constant, not user input.
	cypher := fmt.Sprintf("MATCH (n:%s) RETURN count(n)", table)
	rows, err := s.query(cypher, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

func elementID(path string, i int) string    { return fmt.Sprintf("%s#e%d", path, i) }
func diagnosticID(path string, i int) string { return fmt.Sprintf("%s#d%d", path, i) }

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).
// These helpers safely coerce any -> concrete type.

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toUint(v any) uint {
	u, err := safecast.Conv[uint](toInt(v))
	if err != nil {
		return 0
	}
	return u
}

func toBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}
