package goanalyzer

import "testing"

const sampleSource = `package sample

func Greet(name string) string {
	return helper(name)
}

func helper(name string) string {
	return name
}

type Greeter struct {
	Name string
}
`

func TestAnalyzeExtractsTopLevelDecls(t *testing.T) {
	b := New()
	ix, err := b.Analyze("sample.go", []byte(sampleSource))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	names := map[string]bool{}
	for _, s := range ix.SymbolSlice() {
		names[s.Name] = true
	}
	for _, want := range []string{"Greet", "helper", "Greeter"} {
		if !names[want] {
			t.Errorf("expected symbol %q, got %+v", want, names)
		}
	}
}

func TestAnalyzeExtractsCallRelationship(t *testing.T) {
	b := New()
	ix, err := b.Analyze("sample.go", []byte(sampleSource))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	foundCall := false
	for _, r := range ix.RelationshipSlice() {
		if r.Kind == "calls" {
			foundCall = true
		}
	}
	if !foundCall {
		t.Errorf("expected at least one calls relationship")
	}
}

func TestLanguageIDAndExtensions(t *testing.T) {
	b := New()
	if b.LanguageID() != "go" {
		t.Errorf("LanguageID() = %q, want go", b.LanguageID())
	}
	exts := b.Extensions()
	if len(exts) != 1 || exts[0] != ".go" {
		t.Errorf("Extensions() = %v, want [.go]", exts)
	}
}
