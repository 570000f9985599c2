// Package analysis implements the Analyzer/Binding abstraction: a
// dispatch table of language-specific collaborators, each a pure function
// from a file (or package root) to a Semantic Index fragment. Bindings are
// looked up by language id, never by inheritance (spec §9 design note).
package analysis

import (
	"fmt"

	"github.com/wenkaifan0720/code-context-sub001/internal/semindex"
)

// PackageDescriptor is one discovered compilation unit: a manifest-rooted
// directory and the source files it contains.
type PackageDescriptor struct {
	Name    string
	Version string
	Root    string
	Files   []string
}

// Binding is the capability a language-specific collaborator exposes:
// discover(root) → packages, analyze(file) → fragment, plus the language
// id and manifest filename used to recognize packages of that language.
type Binding interface {
	LanguageID() string
	PackageFile() string
	Extensions() []string
	Discover(root string) ([]PackageDescriptor, error)
	Analyze(path string, content []byte) (*semindex.Index, error)
}

// Registry is an explicit table of Bindings keyed by language id, passed
// to the Lifecycle at construction. There is no process-wide mutable
// singleton (spec §9 design note).
type Registry struct {
	bindings  map[string]Binding
	extToLang map[string]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		bindings:  make(map[string]Binding),
		extToLang: make(map[string]string),
	}
}

// Register adds b to the dispatch table under its LanguageID, indexing
// its Extensions for path-based lookup.
func (r *Registry) Register(b Binding) {
	r.bindings[b.LanguageID()] = b
	for _, ext := range b.Extensions() {
		r.extToLang[ext] = b.LanguageID()
	}
}

// Get returns the Binding registered for languageID.
func (r *Registry) Get(languageID string) (Binding, bool) {
	b, ok := r.bindings[languageID]
	return b, ok
}

// ForExtension returns the Binding whose Extensions() includes ext
// (e.g. ".go").
func (r *Registry) ForExtension(ext string) (Binding, bool) {
	lang, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	return r.Get(lang)
}

// LanguageIDs returns the registered language ids.
func (r *Registry) LanguageIDs() []string {
	out := make([]string, 0, len(r.bindings))
	for id := range r.bindings {
		out = append(out, id)
	}
	return out
}

// errUnregisteredLanguage is returned when a caller requests a Binding
// that was never registered.
func errUnregisteredLanguage(id string) error {
	return fmt.Errorf("analysis: no binding registered for language %q", id)
}

// Analyze dispatches to the Binding registered for languageID.
func (r *Registry) Analyze(languageID, path string, content []byte) (*semindex.Index, error) {
	b, ok := r.Get(languageID)
	if !ok {
		return nil, errUnregisteredLanguage(languageID)
	}
	return b.Analyze(path, content)
}
