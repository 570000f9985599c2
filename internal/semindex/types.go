// Package semindex holds the in-memory semantic index for a single package:
// its symbols, occurrences, and relationships, plus document-level metadata.
package semindex

// Kind enumerates the recognized symbol kinds.
type Kind string

const (
	KindClass         Kind = "class"
	KindInterface     Kind = "interface"
	KindMethod        Kind = "method"
	KindFunction      Kind = "function"
	KindField         Kind = "field"
	KindVariable      Kind = "variable"
	KindModule        Kind = "module"
	KindParameter     Kind = "parameter"
	KindTypeParameter Kind = "type-parameter"
	KindEnum          Kind = "enum"
	KindEnumMember    Kind = "enum-member"
	KindConstructor   Kind = "constructor"
	KindOther         Kind = "other"
)

// RelationshipKind enumerates the recognized relationship edge kinds.
type RelationshipKind string

const (
	RelImplements     RelationshipKind = "implements"
	RelExtends        RelationshipKind = "extends"
	RelCalls          RelationshipKind = "calls"
	RelReferences     RelationshipKind = "references"
	RelTypeDefinition RelationshipKind = "type_definition"
)

// Symbol is a uniquely named, located declaration.
type Symbol struct {
	SCIPID        string
	Name          string
	Kind          Kind
	File          *string
	Line          int
	Column        int
	Package       string
	Version       string
	ContainerID   *string
	DisplayName   string
	Documentation string
	Language      string
}

// Occurrence is one appearance of a symbol in source.
type Occurrence struct {
	SymbolID         string
	File             string
	Line             int
	Column           int
	EndLine          int
	EndColumn        int
	IsDefinition     bool
	EnclosingEndLine int
}

// Relationship is a directed typed edge between two symbols.
type Relationship struct {
	FromSymbol string
	ToSymbol   string
	Kind       RelationshipKind
}

// occurrenceKey is the deduplication key for Occurrence rows.
type occurrenceKey struct {
	symbolID     string
	file         string
	line         int
	column       int
	isDefinition bool
}

func keyOf(o Occurrence) occurrenceKey {
	return occurrenceKey{o.SymbolID, o.File, o.Line, o.Column, o.IsDefinition}
}

// relationshipKey is the set-membership key for Relationship rows: the
// triple (from, to, kind) forms a set, so duplicates merge idempotently.
type relationshipKey struct {
	from string
	to   string
	kind RelationshipKind
}

func relKeyOf(r Relationship) relationshipKey {
	return relationshipKey{r.FromSymbol, r.ToSymbol, r.Kind}
}
