package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wenkaifan0720/code-context-sub001/internal/analysis"
	"github.com/wenkaifan0720/code-context-sub001/internal/analysis/goanalyzer"
	"github.com/wenkaifan0720/code-context-sub001/internal/config"
)

func TestDiscoverFindsGoPackage(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/demo\n\ngo 1.25\n"), 0o644); err != nil {
		t.Fatalf("WriteFile(go.mod) error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile(main.go) error = %v", err)
	}

	registry := analysis.NewRegistry()
	registry.Register(goanalyzer.New())

	d := New(registry, config.Guardrails{})
	descs, err := d.Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(descs) != 1 {
		t.Fatalf("expected 1 package descriptor, got %d", len(descs))
	}
	if descs[0].LanguageID != "go" {
		t.Errorf("LanguageID = %q, want go", descs[0].LanguageID)
	}
	if len(descs[0].Files) != 1 {
		t.Errorf("expected 1 file, got %d: %v", len(descs[0].Files), descs[0].Files)
	}
}

func TestDiscoverHonorsGuardrails(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/demo\n"), 0o644)
	os.MkdirAll(filepath.Join(root, "vendor"), 0o755)
	os.WriteFile(filepath.Join(root, "vendor", "dep.go"), []byte("package vendor\n"), 0o644)
	os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0o644)

	registry := analysis.NewRegistry()
	registry.Register(goanalyzer.New())

	d := New(registry, config.Guardrails{ExcludeGlobs: []string{"vendor/**"}})
	descs, err := d.Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	for _, f := range descs[0].Files {
		if filepath.Base(filepath.Dir(f)) == "vendor" {
			t.Errorf("expected vendor/ files excluded, found %s", f)
		}
	}
}
