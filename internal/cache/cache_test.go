package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wenkaifan0720/code-context-sub001/internal/semindex"
)

func buildFragment(path string) *Fragment {
	ix := semindex.New(path, "src")
	ix.AddSymbol(semindex.Symbol{SCIPID: "sym1", Name: "Foo", Kind: semindex.KindClass, File: &path})
	return &Fragment{Path: path, ContentHash: HashContent([]byte("content")), Index: ix}
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, "proj1", "v1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	frag := buildFragment("a.src")
	if err := c.Store("src", frag); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	loaded, ok := c.Load("src", "a.src", frag.ContentHash)
	if !ok {
		t.Fatalf("Load() miss, want hit")
	}
	if len(loaded.Index.Symbols) != 1 {
		t.Errorf("expected 1 symbol round-tripped, got %d", len(loaded.Index.Symbols))
	}
	if loaded.Index.Symbols["sym1"].Name != "Foo" {
		t.Errorf("symbol data not preserved across round trip")
	}
}

func TestCacheMissOnHashChange(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, "proj1", "v1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	frag := buildFragment("a.src")
	if err := c.Store("src", frag); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if _, ok := c.Load("src", "a.src", "different-hash"); ok {
		t.Errorf("expected cache miss when content hash differs")
	}
}

func TestAnalyzerVersionChangeInvalidates(t *testing.T) {
	dir := t.TempDir()
	c1, err := Open(dir, "proj1", "v1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	frag := buildFragment("a.src")
	if err := c1.Store("src", frag); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	c2, err := Open(dir, "proj1", "v2")
	if err != nil {
		t.Fatalf("re-Open() error = %v", err)
	}
	if _, ok := c2.Load("src", "a.src", frag.ContentHash); ok {
		t.Errorf("expected cache wiped after analyzer_version change")
	}
}

func TestManifestWritten(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir, "proj1", "v1"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "manifest.json")); err != nil {
		t.Errorf("expected manifest.json to exist: %v", err)
	}
}
