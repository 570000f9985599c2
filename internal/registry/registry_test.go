package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/wenkaifan0720/code-context-sub001/internal/analysis"
	"github.com/wenkaifan0720/code-context-sub001/internal/analysis/goanalyzer"
	"github.com/wenkaifan0720/code-context-sub001/internal/cache"
	"github.com/wenkaifan0720/code-context-sub001/internal/discovery"
)

func newTestRegistry(t *testing.T, root string) *Registry {
	t.Helper()
	reg := analysis.NewRegistry()
	reg.Register(goanalyzer.New())
	c, err := cache.Open(filepath.Join(root, ".cache"), "proj", "v1")
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}
	return New(reg, c, filepath.Join(root, ".cache"))
}

func TestAddLocalRegistersPackageEntry(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/demo\n"), 0o644); err != nil {
		t.Fatalf("WriteFile(go.mod) error = %v", err)
	}
	main := filepath.Join(root, "main.go")
	if err := os.WriteFile(main, []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile(main.go) error = %v", err)
	}

	r := newTestRegistry(t, root)
	desc := discovery.Descriptor{Name: "example.com/demo", LanguageID: "go", Root: root, Files: []string{main}}
	update, errs := r.AddLocal(context.Background(), desc, nil)
	if len(errs) != 0 {
		t.Fatalf("AddLocal() errs = %v", errs)
	}
	if update.FragmentCount != 1 {
		t.Errorf("FragmentCount = %d, want 1", update.FragmentCount)
	}

	pkgs := r.Packages()
	if len(pkgs) != 1 {
		t.Fatalf("Packages() len = %d, want 1", len(pkgs))
	}
	if pkgs[0].External {
		t.Errorf("expected local package, got External=true")
	}
}

func TestScopeLocalOnlyExcludesExternal(t *testing.T) {
	root := t.TempDir()
	r := newTestRegistry(t, root)
	r.external["dep"] = &PackageEntry{Name: "dep", External: true}
	r.local["main"] = &PackageEntry{Name: "main", External: false}

	entries := r.Packages()
	var localCount, allCount int
	for _, e := range entries {
		if ScopeLocalOnly(e) {
			localCount++
		}
		if ScopeAll(e) {
			allCount++
		}
	}
	if localCount != 1 {
		t.Errorf("ScopeLocalOnly matched %d entries, want 1", localCount)
	}
	if allCount != 2 {
		t.Errorf("ScopeAll matched %d entries, want 2", allCount)
	}
}

func TestScopeNamedSelectsSubset(t *testing.T) {
	scope := ScopeNamed("a", "c")
	for name, want := range map[string]bool{"a": true, "b": false, "c": true} {
		if got := scope(PackageEntry{Name: name}); got != want {
			t.Errorf("ScopeNamed(a,c)(%q) = %v, want %v", name, got, want)
		}
	}
}
