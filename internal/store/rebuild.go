package store

import (
	"database/sql"

	"github.com/wenkaifan0720/code-context-sub001/internal/semerr"
)

// SymbolRow, OccurrenceRow, RelationshipRow are the exact relational shapes
// the Converter produces; Store never derives rows on its own, it only
// persists what it is handed.
type SymbolRow struct {
	SCIPID        string
	Name          string
	Kind          string
	File          sql.NullString
	Line          sql.NullInt64
	Column        sql.NullInt64
	Package       sql.NullString
	Version       sql.NullString
	ContainerID   sql.NullString
	DisplayName   sql.NullString
	Documentation sql.NullString
	Language      sql.NullString
}

type OccurrenceRow struct {
	SymbolID         string
	File             string
	Line             int64
	Column           int64
	EndLine          sql.NullInt64
	EndColumn        sql.NullInt64
	IsDefinition     bool
	EnclosingEndLine sql.NullInt64
}

type RelationshipRow struct {
	FromSymbol string
	ToSymbol   string
	Kind       string
}

// Rebuild performs the two-phase atomic rebuild: clear the three tables,
// bulk-insert the supplied rows, commit. Readers holding the RWMutex's
// read side are blocked out for the duration (writer-priority via Lock).
func (s *Store) Rebuild(symbols []SymbolRow, occurrences []OccurrenceRow, relationships []RelationshipRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stmtMu.Lock()
	for _, stmt := range s.stmtCache {
		stmt.Close()
	}
	s.stmtCache = make(map[string]*sql.Stmt)
	s.stmtOrder = nil
	s.stmtMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return semerr.Cache("begin rebuild transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM relationships; DELETE FROM occurrences; DELETE FROM symbols;`); err != nil {
		return semerr.Cache("clear tables", err)
	}

	symStmt, err := tx.Prepare(`INSERT INTO symbols
		(scip_id, name, kind, file, line, column_num, package, version, container_id, display_name, documentation, language)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return semerr.Cache("prepare symbol insert", err)
	}
	defer symStmt.Close()
	for _, row := range symbols {
		if _, err := symStmt.Exec(row.SCIPID, row.Name, row.Kind, row.File, row.Line, row.Column,
			row.Package, row.Version, row.ContainerID, row.DisplayName, row.Documentation, row.Language); err != nil {
			return semerr.Cache("insert symbol "+row.SCIPID, err)
		}
	}

	occStmt, err := tx.Prepare(`INSERT INTO occurrences
		(symbol_id, file, line, column_num, end_line, end_column, is_definition, enclosing_end_line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return semerr.Cache("prepare occurrence insert", err)
	}
	defer occStmt.Close()
	for _, row := range occurrences {
		isDef := 0
		if row.IsDefinition {
			isDef = 1
		}
		if _, err := occStmt.Exec(row.SymbolID, row.File, row.Line, row.Column,
			row.EndLine, row.EndColumn, isDef, row.EnclosingEndLine); err != nil {
			return semerr.Cache("insert occurrence", err)
		}
	}

	relStmt, err := tx.Prepare(`INSERT INTO relationships (from_symbol, to_symbol, kind) VALUES (?, ?, ?)`)
	if err != nil {
		return semerr.Cache("prepare relationship insert", err)
	}
	defer relStmt.Close()
	for _, row := range relationships {
		if _, err := relStmt.Exec(row.FromSymbol, row.ToSymbol, row.Kind); err != nil {
			return semerr.Cache("insert relationship", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return semerr.Cache("commit rebuild", err)
	}
	return nil
}
