package semindex

import "testing"

func strp(s string) *string { return &s }

func TestMergeSymbolCollisionWarns(t *testing.T) {
	a := New("a.src", "src")
	a.AddSymbol(Symbol{SCIPID: "sym1", Name: "Foo", Kind: KindClass, File: strp("a.src")})

	b := New("a.src", "src")
	b.AddSymbol(Symbol{SCIPID: "sym1", Name: "Foo2", Kind: KindClass, File: strp("a.src")})

	warnings := a.Merge(b)
	if len(warnings) != 1 {
		t.Fatalf("Merge() warnings = %d, want 1", len(warnings))
	}
	if got := a.Symbols["sym1"].Name; got != "Foo2" {
		t.Errorf("later write should win, got name %q", got)
	}
}

func TestOccurrenceDeduplication(t *testing.T) {
	ix := New("a.src", "src")
	occ := Occurrence{SymbolID: "sym1", File: "a.src", Line: 10, Column: 1, IsDefinition: true}
	ix.AddOccurrence(occ)
	ix.AddOccurrence(occ)
	if len(ix.Occurrences) != 1 {
		t.Errorf("duplicate occurrence not deduplicated, got %d", len(ix.Occurrences))
	}
}

func TestRelationshipSetSemantics(t *testing.T) {
	ix := New("a.src", "src")
	rel := Relationship{FromSymbol: "a", ToSymbol: "b", Kind: RelCalls}
	ix.AddRelationship(rel)
	ix.AddRelationship(rel)
	if len(ix.Relationships) != 1 {
		t.Errorf("duplicate relationship not merged idempotently, got %d", len(ix.Relationships))
	}
}

func TestRemoveByFile(t *testing.T) {
	ix := New("a.src", "src")
	ix.AddSymbol(Symbol{SCIPID: "sym1", Name: "Foo", File: strp("a.src")})
	ix.AddOccurrence(Occurrence{SymbolID: "sym1", File: "a.src", Line: 1, IsDefinition: true})
	ix.AddRelationship(Relationship{FromSymbol: "sym1", ToSymbol: "sym2", Kind: RelCalls})

	ix.RemoveByFile("a.src")

	if len(ix.Symbols) != 0 {
		t.Errorf("symbols not removed, got %d", len(ix.Symbols))
	}
	if len(ix.Occurrences) != 0 {
		t.Errorf("occurrences not removed, got %d", len(ix.Occurrences))
	}
	if len(ix.Relationships) != 0 {
		t.Errorf("relationships referencing removed symbol not removed, got %d", len(ix.Relationships))
	}
}

func TestDiffByFile(t *testing.T) {
	ix := New("a.src", "src")
	ix.AddSymbol(Symbol{SCIPID: "sym-foo", Name: "Foo", File: strp("a.src")})

	fresh := New("a.src", "src")
	fresh.AddSymbol(Symbol{SCIPID: "sym-bar", Name: "Bar", File: strp("a.src")})

	added, removed := ix.DiffByFile("a.src", fresh)

	if _, ok := added.Symbols["sym-bar"]; !ok {
		t.Errorf("expected sym-bar in added set")
	}
	if len(removed) != 1 || removed[0] != "sym-foo" {
		t.Errorf("expected sym-foo in removed set, got %v", removed)
	}
}
