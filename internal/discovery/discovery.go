// Package discovery locates packages (manifest-rooted compilation units)
// under a project root. It is a thin default: real dependency-graph
// discovery is left to an external collaborator; this package only
// probes for the manifest files the registered Analyzer/Bindings declare
// and delegates the actual file enumeration to them.
package discovery

import (
	"os"
	"path/filepath"

	"github.com/wenkaifan0720/code-context-sub001/internal/analysis"
	"github.com/wenkaifan0720/code-context-sub001/internal/config"
)

// Descriptor is one discovered package, tagged with the language id of
// the Binding that found it.
type Descriptor struct {
	LanguageID string
	Name       string
	Version    string
	Root       string
	Files      []string
}

// Discoverer enumerates packages under a project root.
type Discoverer interface {
	Discover(root string) ([]Descriptor, error)
}

// Default probes for each registered Binding's manifest file and, when
// found anywhere under root, delegates to that Binding's own Discover.
// Guardrails exclude matching files from the resulting descriptors.
type Default struct {
	Bindings   *analysis.Registry
	Guardrails config.Guardrails
}

// New returns a Default discoverer over the given binding registry.
func New(bindings *analysis.Registry, guardrails config.Guardrails) *Default {
	return &Default{Bindings: bindings, Guardrails: guardrails}
}

// fallbackLanguageID finds a registered Binding that declares neither a
// manifest file nor its own Extensions — a catch-all by construction,
// meant to analyze whatever no dedicated Binding claimed. Returns "" if
// none is registered.
func fallbackLanguageID(bindings *analysis.Registry) string {
	for _, id := range bindings.LanguageIDs() {
		b, _ := bindings.Get(id)
		if b.PackageFile() == "" && len(b.Extensions()) == 0 {
			return id
		}
	}
	return ""
}

// Discover walks root once, detecting which registered languages have a
// manifest present, then asks each matching Binding to discover its own
// packages. Any file left unclaimed by a manifest-rooted package — its
// extension belongs to no manifest-detected language — is routed to
// whichever registered Binding's Extensions() names it, or otherwise to
// the catch-all fallback Binding, so files outside any recognized
// manifest tree are still analyzed instead of silently dropped.
func (d *Default) Discover(root string) ([]Descriptor, error) {
	manifestToLang := make(map[string]string)
	for _, id := range d.Bindings.LanguageIDs() {
		b, _ := d.Bindings.Get(id)
		if mf := b.PackageFile(); mf != "" {
			manifestToLang[mf] = id
		}
	}

	seenLang := make(map[string]bool)
	var allFiles []string
	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && d.Guardrails.Excluded(rel) {
			return nil
		}
		allFiles = append(allFiles, path)
		if lang, ok := manifestToLang[filepath.Base(path)]; ok {
			seenLang[lang] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []Descriptor
	claimed := make(map[string]bool)
	for lang := range seenLang {
		b, _ := d.Bindings.Get(lang)
		pkgs, err := b.Discover(root)
		if err != nil {
			return nil, err
		}
		for _, pkg := range pkgs {
			files := filterExcluded(pkg.Files, root, d.Guardrails)
			for _, f := range files {
				claimed[f] = true
			}
			out = append(out, Descriptor{
				LanguageID: lang,
				Name:       pkg.Name,
				Version:    pkg.Version,
				Root:       pkg.Root,
				Files:      files,
			})
		}
	}

	fallbackLang := fallbackLanguageID(d.Bindings)
	leftoverByLang := make(map[string][]string)
	for _, f := range allFiles {
		if claimed[f] {
			continue
		}
		lang := fallbackLang
		if b, ok := d.Bindings.ForExtension(filepath.Ext(f)); ok && !seenLang[b.LanguageID()] {
			lang = b.LanguageID()
		}
		if lang == "" {
			continue
		}
		leftoverByLang[lang] = append(leftoverByLang[lang], f)
	}
	for lang, files := range leftoverByLang {
		out = append(out, Descriptor{
			LanguageID: lang,
			Name:       filepath.Base(root),
			Root:       root,
			Files:      files,
		})
	}
	return out, nil
}

func filterExcluded(files []string, root string, g config.Guardrails) []string {
	var out []string
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err == nil && g.Excluded(rel) {
			continue
		}
		out = append(out, f)
	}
	return out
}
