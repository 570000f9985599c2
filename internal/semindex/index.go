package semindex

import (
	"bytes"
	"encoding/gob"
)

// Index holds the symbols, occurrences, and relationships contributed by
// one package, plus document-level metadata for the fragment it was built
// from.
type Index struct {
	Path     string
	Language string

	Symbols       map[string]Symbol
	Occurrences   map[occurrenceKey]Occurrence
	Relationships map[relationshipKey]Relationship
}

// Warning is raised when a merge overwrites an existing Symbol; it is
// never an error, only a surfaced notice (spec §4.A, §7 recovery policy).
type Warning struct {
	SCIPID string
	Reason string
}

// New returns an empty Index for the given document path/language.
func New(path, language string) *Index {
	return &Index{
		Path:          path,
		Language:      language,
		Symbols:       make(map[string]Symbol),
		Occurrences:   make(map[occurrenceKey]Occurrence),
		Relationships: make(map[relationshipKey]Relationship),
	}
}

// AddSymbol inserts or overwrites a symbol by scip_id.
func (ix *Index) AddSymbol(s Symbol) {
	ix.Symbols[s.SCIPID] = s
}

// AddOccurrence inserts an occurrence, deduplicating on
// (symbol_id, file, line, column, is_definition).
func (ix *Index) AddOccurrence(o Occurrence) {
	ix.Occurrences[keyOf(o)] = o
}

// AddRelationship inserts a relationship, deduplicating on (from, to, kind).
func (ix *Index) AddRelationship(r Relationship) {
	ix.Relationships[relKeyOf(r)] = r
}

// Merge unions other into ix. On Symbol key collision, other's copy wins
// and a Warning is appended to the returned slice; occurrences and
// relationships are deduplicated by their set keys.
func (ix *Index) Merge(other *Index) []Warning {
	if other == nil {
		return nil
	}
	var warnings []Warning
	for id, sym := range other.Symbols {
		if _, exists := ix.Symbols[id]; exists {
			warnings = append(warnings, Warning{SCIPID: id, Reason: "symbol redefined by later fragment"})
		}
		ix.Symbols[id] = sym
	}
	for k, occ := range other.Occurrences {
		ix.Occurrences[k] = occ
	}
	for k, rel := range other.Relationships {
		ix.Relationships[k] = rel
	}
	return warnings
}

// RemoveByFile strips every Symbol, Occurrence, and Relationship row whose
// File matches path. Relationships have no file attribute, so removal there
// is driven by whether either endpoint symbol was removed.
func (ix *Index) RemoveByFile(path string) {
	removed := make(map[string]struct{})
	for id, s := range ix.Symbols {
		if s.File != nil && *s.File == path {
			delete(ix.Symbols, id)
			removed[id] = struct{}{}
		}
	}
	for k, o := range ix.Occurrences {
		if o.File == path {
			delete(ix.Occurrences, k)
		}
	}
	for k, r := range ix.Relationships {
		if _, ok := removed[r.FromSymbol]; ok {
			delete(ix.Relationships, k)
			continue
		}
		if _, ok := removed[r.ToSymbol]; ok {
			delete(ix.Relationships, k)
		}
	}
}

// DiffByFile compares ix's current state for a single file path with fresh
// (the newly analyzed fragment for the same file). added holds every row of
// fresh, whether or not ix already has it; removedSyms lists the ids of
// symbols ix has for path that fresh lacks (all of them when fresh is nil).
// Removed occurrences and relationships are not reported. It does not
// mutate ix.
func (ix *Index) DiffByFile(path string, fresh *Index) (added *Index, removedSyms []string) {
	added = New(path, "")
	if fresh != nil {
		for id, s := range fresh.Symbols {
			added.Symbols[id] = s
		}
		for k, o := range fresh.Occurrences {
			added.Occurrences[k] = o
		}
		for k, r := range fresh.Relationships {
			added.Relationships[k] = r
		}
	}
	for id, s := range ix.Symbols {
		if s.File == nil || *s.File != path {
			continue
		}
		if fresh == nil {
			removedSyms = append(removedSyms, id)
			continue
		}
		if _, stillThere := fresh.Symbols[id]; !stillThere {
			removedSyms = append(removedSyms, id)
		}
	}
	return added, removedSyms
}

// SymbolSlice returns the symbols as a slice (order not guaranteed).
func (ix *Index) SymbolSlice() []Symbol {
	out := make([]Symbol, 0, len(ix.Symbols))
	for _, s := range ix.Symbols {
		out = append(out, s)
	}
	return out
}

// OccurrenceSlice returns the occurrences as a slice (order not guaranteed).
func (ix *Index) OccurrenceSlice() []Occurrence {
	out := make([]Occurrence, 0, len(ix.Occurrences))
	for _, o := range ix.Occurrences {
		out = append(out, o)
	}
	return out
}

// RelationshipSlice returns the relationships as a slice (order not guaranteed).
func (ix *Index) RelationshipSlice() []Relationship {
	out := make([]Relationship, 0, len(ix.Relationships))
	for _, r := range ix.Relationships {
		out = append(out, r)
	}
	return out
}

// wireIndex is the gob-serializable shape of an Index: the three row sets
// as plain slices, since the internal maps key on unexported struct types
// that gob cannot encode.
type wireIndex struct {
	Path          string
	Language      string
	Symbols       []Symbol
	Occurrences   []Occurrence
	Relationships []Relationship
}

// GobEncode implements gob.GobEncoder so an Index can be persisted to the
// file cache without exposing its internal map representation.
func (ix *Index) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	w := wireIndex{
		Path:          ix.Path,
		Language:      ix.Language,
		Symbols:       ix.SymbolSlice(),
		Occurrences:   ix.OccurrenceSlice(),
		Relationships: ix.RelationshipSlice(),
	}
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder, rebuilding the dedup maps from the
// wire slices.
func (ix *Index) GobDecode(data []byte) error {
	var w wireIndex
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return err
	}
	ix.Path = w.Path
	ix.Language = w.Language
	ix.Symbols = make(map[string]Symbol, len(w.Symbols))
	ix.Occurrences = make(map[occurrenceKey]Occurrence, len(w.Occurrences))
	ix.Relationships = make(map[relationshipKey]Relationship, len(w.Relationships))
	for _, s := range w.Symbols {
		ix.Symbols[s.SCIPID] = s
	}
	for _, o := range w.Occurrences {
		ix.Occurrences[keyOf(o)] = o
	}
	for _, r := range w.Relationships {
		ix.Relationships[relKeyOf(r)] = r
	}
	return nil
}
