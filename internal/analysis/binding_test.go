package analysis

import (
	"testing"

	"github.com/wenkaifan0720/code-context-sub001/internal/semindex"
)

type fakeBinding struct{ id string }

func (f *fakeBinding) LanguageID() string   { return f.id }
func (f *fakeBinding) PackageFile() string  { return "fake.manifest" }
func (f *fakeBinding) Extensions() []string { return []string{".fake"} }
func (f *fakeBinding) Discover(root string) ([]PackageDescriptor, error) {
	return []PackageDescriptor{{Name: "fakepkg", Root: root}}, nil
}
func (f *fakeBinding) Analyze(path string, content []byte) (*semindex.Index, error) {
	return semindex.New(path, f.id), nil
}

func TestRegistryDispatchByLanguageID(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeBinding{id: "fake"})

	b, ok := r.Get("fake")
	if !ok {
		t.Fatalf("expected fake binding to be registered")
	}
	if b.LanguageID() != "fake" {
		t.Errorf("LanguageID() = %q, want fake", b.LanguageID())
	}
}

func TestRegistryDispatchByExtension(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeBinding{id: "fake"})

	b, ok := r.ForExtension(".fake")
	if !ok {
		t.Fatalf("expected binding for .fake extension")
	}
	if b.LanguageID() != "fake" {
		t.Errorf("LanguageID() = %q, want fake", b.LanguageID())
	}
}

func TestAnalyzeUnregisteredLanguageErrors(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Analyze("nope", "a.nope", nil); err == nil {
		t.Errorf("expected error for unregistered language")
	}
}
