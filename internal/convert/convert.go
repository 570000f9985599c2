// Package convert translates Semantic Index fragments into the relational
// rows the Store persists. The translation is stateless and deterministic:
// repeated conversion of the same input produces byte-identical rows.
package convert

import (
	"database/sql"
	"sort"

	"github.com/wenkaifan0720/code-context-sub001/internal/semindex"
	"github.com/wenkaifan0720/code-context-sub001/internal/store"
)

// FragmentsToRows converts a set of package indexes into the three sorted
// row slices the Store's Rebuild expects. Sorting is by scip_id for
// symbols, by (file, line, column, symbol_id, is_definition) for
// occurrences, and by
// (from_symbol, to_symbol, kind) for relationships, so that two calls
// over the same logical input always produce the same row order.
func FragmentsToRows(indexes []*semindex.Index) ([]store.SymbolRow, []store.OccurrenceRow, []store.RelationshipRow) {
	var symbols []store.SymbolRow
	var occurrences []store.OccurrenceRow
	var relationships []store.RelationshipRow

	for _, ix := range indexes {
		if ix == nil {
			continue
		}
		for _, s := range ix.SymbolSlice() {
			symbols = append(symbols, symbolRow(s))
		}
		for _, o := range ix.OccurrenceSlice() {
			occurrences = append(occurrences, occurrenceRow(o))
		}
		for _, r := range ix.RelationshipSlice() {
			relationships = append(relationships, store.RelationshipRow{
				FromSymbol: r.FromSymbol,
				ToSymbol:   r.ToSymbol,
				Kind:       string(r.Kind),
			})
		}
	}

	sort.Slice(symbols, func(i, j int) bool { return symbols[i].SCIPID < symbols[j].SCIPID })
	sort.Slice(occurrences, func(i, j int) bool {
		if occurrences[i].File != occurrences[j].File {
			return occurrences[i].File < occurrences[j].File
		}
		if occurrences[i].Line != occurrences[j].Line {
			return occurrences[i].Line < occurrences[j].Line
		}
		if occurrences[i].Column != occurrences[j].Column {
			return occurrences[i].Column < occurrences[j].Column
		}
		if occurrences[i].SymbolID != occurrences[j].SymbolID {
			return occurrences[i].SymbolID < occurrences[j].SymbolID
		}
		return !occurrences[i].IsDefinition && occurrences[j].IsDefinition
	})
	sort.Slice(relationships, func(i, j int) bool {
		a, b := relationships[i], relationships[j]
		if a.FromSymbol != b.FromSymbol {
			return a.FromSymbol < b.FromSymbol
		}
		if a.ToSymbol != b.ToSymbol {
			return a.ToSymbol < b.ToSymbol
		}
		return a.Kind < b.Kind
	})

	return symbols, occurrences, relationships
}

func symbolRow(s semindex.Symbol) store.SymbolRow {
	row := store.SymbolRow{
		SCIPID:        s.SCIPID,
		Name:          s.Name,
		Kind:          string(s.Kind),
		Package:       nullableString(s.Package),
		Version:       nullableString(s.Version),
		DisplayName:   nullableString(s.DisplayName),
		Documentation: nullableString(s.Documentation),
		Language:      nullableString(s.Language),
	}
	if s.File != nil {
		row.File = sql.NullString{String: *s.File, Valid: true}
		row.Line = sql.NullInt64{Int64: int64(s.Line), Valid: true}
		row.Column = sql.NullInt64{Int64: int64(s.Column), Valid: true}
	}
	if s.ContainerID != nil {
		row.ContainerID = sql.NullString{String: *s.ContainerID, Valid: true}
	}
	return row
}

func occurrenceRow(o semindex.Occurrence) store.OccurrenceRow {
	row := store.OccurrenceRow{
		SymbolID:     o.SymbolID,
		File:         o.File,
		Line:         int64(o.Line),
		Column:       int64(o.Column),
		IsDefinition: o.IsDefinition,
	}
	if o.EndLine != 0 {
		row.EndLine = sql.NullInt64{Int64: int64(o.EndLine), Valid: true}
	}
	if o.EndColumn != 0 {
		row.EndColumn = sql.NullInt64{Int64: int64(o.EndColumn), Valid: true}
	}
	if o.EnclosingEndLine != 0 {
		row.EnclosingEndLine = sql.NullInt64{Int64: int64(o.EnclosingEndLine), Valid: true}
	}
	return row
}

// nullableString maps the empty string to SQL NULL: an absent value in the
// Semantic Index should never be written as an empty-string row.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
