// Package store implements the embedded relational store: a fixed schema
// over an in-memory SQL engine, a read-only query gate, and atomic
// two-phase rebuilds. The schema and wire format are bit-exact with the
// engine's external interface contract.
package store

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/wenkaifan0720/code-context-sub001/internal/semerr"
)

const schemaDDL = `
CREATE TABLE symbols (
  scip_id       TEXT PRIMARY KEY,
  name          TEXT NOT NULL,
  kind          TEXT NOT NULL,
  file          TEXT,
  line          INTEGER,
  column_num    INTEGER,
  package       TEXT,
  version       TEXT,
  container_id  TEXT,
  display_name  TEXT,
  documentation TEXT,
  language      TEXT
);
CREATE TABLE occurrences (
  id                  INTEGER PRIMARY KEY AUTOINCREMENT,
  symbol_id           TEXT NOT NULL,
  file                TEXT NOT NULL,
  line                INTEGER NOT NULL,
  column_num          INTEGER NOT NULL,
  end_line            INTEGER,
  end_column          INTEGER,
  is_definition       INTEGER NOT NULL,
  enclosing_end_line  INTEGER
);
CREATE TABLE relationships (
  from_symbol TEXT NOT NULL,
  to_symbol   TEXT NOT NULL,
  kind        TEXT NOT NULL
);
CREATE INDEX idx_symbols_name ON symbols(name);
CREATE INDEX idx_symbols_kind ON symbols(kind);
CREATE INDEX idx_symbols_file ON symbols(file);
CREATE INDEX idx_symbols_container ON symbols(container_id);
CREATE INDEX idx_occurrences_symbol ON occurrences(symbol_id);
CREATE INDEX idx_occurrences_file ON occurrences(file);
CREATE INDEX idx_relationships_from ON relationships(from_symbol);
CREATE INDEX idx_relationships_to ON relationships(to_symbol);
`

// leadingKeyword matches the first SQL keyword token after stripping
// leading whitespace and -- / /* */ comments.
var leadingKeyword = regexp.MustCompile(`(?i)^\s*([A-Za-z]+)`)

// Row is an ordered column→value map for one result row.
type Row map[string]any

// Result is the outcome of a successful read query.
type Result struct {
	Columns []string
	Rows    []Row
}

// Store is the embedded relational engine: one writer (rebuild), many
// concurrent readers, guarded by a writer-priority RWMutex.
type Store struct {
	mu sync.RWMutex
	db *sql.DB

	stmtMu    sync.Mutex
	stmtCache map[string]*sql.Stmt
	stmtOrder []string
	stmtLimit int
}

// Open creates a fresh in-memory store with the fixed schema applied.
func Open() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, semerr.Cache("open in-memory engine", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, semerr.Cache("apply schema", err)
	}
	return &Store{
		db:        db,
		stmtCache: make(map[string]*sql.Stmt),
		stmtLimit: 128,
	}, nil
}

// Close releases the underlying engine handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stmtMu.Lock()
	for _, stmt := range s.stmtCache {
		stmt.Close()
	}
	s.stmtMu.Unlock()
	return s.db.Close()
}

// stripComments removes leading -- line comments and /* */ block comments
// so the read gate inspects the true leading keyword.
func stripComments(q string) string {
	for {
		trimmed := strings.TrimLeft(q, " \t\r\n")
		switch {
		case strings.HasPrefix(trimmed, "--"):
			if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
				q = trimmed[idx+1:]
				continue
			}
			return ""
		case strings.HasPrefix(trimmed, "/*"):
			if idx := strings.Index(trimmed, "*/"); idx >= 0 {
				q = trimmed[idx+2:]
				continue
			}
			return ""
		default:
			return trimmed
		}
	}
}

// Query runs a read-only statement. Any statement whose leading keyword
// (after stripping whitespace/comments) is not SELECT or WITH is rejected
// without ever reaching the engine.
func (s *Store) Query(query string, args ...any) (*Result, error) {
	stripped := stripComments(query)
	m := leadingKeyword.FindStringSubmatch(stripped)
	if m == nil {
		return nil, semerr.Query("empty or unrecognized statement", nil)
	}
	kw := strings.ToUpper(m[1])
	if kw != "SELECT" && kw != "WITH" {
		return nil, semerr.Query(fmt.Sprintf("read channel rejects non-SELECT/WITH statement (got %q)", kw), nil)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stmt, err := s.prepared(query)
	if err != nil {
		return nil, semerr.Query("prepare statement", err)
	}
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, semerr.Query("execute query", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// prepared returns a cached prepared statement for query, preparing and
// inserting it (evicting the least recently used entry past the bound)
// if absent. A cache hit promotes query to most-recently-used so eviction
// reflects actual usage, not just insertion order.
func (s *Store) prepared(query string) (*sql.Stmt, error) {
	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()

	if stmt, ok := s.stmtCache[query]; ok {
		s.touchLocked(query)
		return stmt, nil
	}
	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	if len(s.stmtOrder) >= s.stmtLimit {
		oldest := s.stmtOrder[0]
		s.stmtOrder = s.stmtOrder[1:]
		if old, ok := s.stmtCache[oldest]; ok {
			old.Close()
			delete(s.stmtCache, oldest)
		}
	}
	s.stmtCache[query] = stmt
	s.stmtOrder = append(s.stmtOrder, query)
	return stmt, nil
}

// touchLocked moves query to the end of stmtOrder (most recently used).
// Callers must hold s.stmtMu.
func (s *Store) touchLocked(query string) {
	for i, q := range s.stmtOrder {
		if q == query {
			s.stmtOrder = append(s.stmtOrder[:i], s.stmtOrder[i+1:]...)
			break
		}
	}
	s.stmtOrder = append(s.stmtOrder, query)
}

func scanRows(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := &Result{Columns: cols, Rows: []Row{}}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = normalizeValue(vals[i])
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}

// normalizeValue converts driver-returned []byte (sqlite returns TEXT as
// []byte) to string for stable rendering.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
