// Package registry composes the local packages discovered in a workspace
// with their external dependencies into one addressable set, fanning in
// every local Indexer's Update stream and exposing the scope predicate
// Rebuild uses to decide which packages contribute rows to the store.
// Generalized from the teacher's manifest-based profile builder into an
// explicit, composable registry rather than a one-shot profile struct.
package registry

import (
	"context"
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"

	"github.com/wenkaifan0720/code-context-sub001/internal/analysis"
	"github.com/wenkaifan0720/code-context-sub001/internal/cache"
	"github.com/wenkaifan0720/code-context-sub001/internal/discovery"
	"github.com/wenkaifan0720/code-context-sub001/internal/indexer"
	"github.com/wenkaifan0720/code-context-sub001/internal/semerr"
	"github.com/wenkaifan0720/code-context-sub001/internal/semindex"
)

// PackageEntry is one local or external package known to the Registry.
type PackageEntry struct {
	Name       string
	Version    string
	Root       string
	LanguageID string
	External   bool

	idx *indexer.Indexer // set for local entries
	ext *semindex.Index  // set for external entries (read-only)
}

// Scope selects which PackageEntries contribute rows to a Rebuild.
type Scope func(PackageEntry) bool

// ScopeLocalOnly selects every local package and no external dependency.
func ScopeLocalOnly(p PackageEntry) bool { return !p.External }

// ScopeAll selects every package, local and external.
func ScopeAll(PackageEntry) bool { return true }

// ScopeNamed returns a Scope selecting only the named packages.
func ScopeNamed(names ...string) Scope {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(p PackageEntry) bool { return set[p.Name] }
}

// Registry composes local PackageEntries (each backed by a running
// Indexer) with lazily-loaded external PackageEntries.
type Registry struct {
	bindings *analysis.Registry
	cache    *cache.Cache
	cacheDir string

	mu       sync.RWMutex
	local    map[string]*PackageEntry
	external map[string]*PackageEntry
}

// New returns an empty Registry backed by bindings and c. cacheDir is
// where pre-built external dependency artifacts (<name>@<version>.fragset)
// are looked up.
func New(bindings *analysis.Registry, c *cache.Cache, cacheDir string) *Registry {
	return &Registry{
		bindings: bindings,
		cache:    c,
		cacheDir: cacheDir,
		local:    make(map[string]*PackageEntry),
		external: make(map[string]*PackageEntry),
	}
}

// AddLocal registers a discovered local package, building an Indexer for
// it and running its InitialIndex over desc.Files.
func (r *Registry) AddLocal(ctx context.Context, desc discovery.Descriptor, progress indexer.ProgressFunc) (indexer.InitialIndexUpdate, []indexer.IndexErrorUpdate) {
	ix := indexer.New(desc.Root, desc.LanguageID, r.bindings, r.cache)
	update, errs := ix.InitialIndex(ctx, desc.Files, progress)

	r.mu.Lock()
	r.local[desc.Name] = &PackageEntry{
		Name:       desc.Name,
		Version:    desc.Version,
		Root:       desc.Root,
		LanguageID: desc.LanguageID,
		External:   false,
		idx:        ix,
	}
	r.mu.Unlock()
	return update, errs
}

// Packages returns every registered PackageEntry, local and external.
func (r *Registry) Packages() []PackageEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PackageEntry, 0, len(r.local)+len(r.external))
	for _, p := range r.local {
		out = append(out, *p)
	}
	for _, p := range r.external {
		out = append(out, *p)
	}
	return out
}

// LocalIndexers returns the Indexer for every local PackageEntry, in no
// particular order.
func (r *Registry) LocalIndexers() []*indexer.Indexer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*indexer.Indexer, 0, len(r.local))
	for _, p := range r.local {
		out = append(out, p.idx)
	}
	return out
}

// Indexes returns the Semantic Index for every PackageEntry matching scope.
func (r *Registry) Indexes(scope Scope) []*semindex.Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*semindex.Index
	for _, p := range r.local {
		if scope(*p) {
			out = append(out, p.idx.Index())
		}
	}
	for _, p := range r.external {
		if scope(*p) && p.ext != nil {
			out = append(out, p.ext)
		}
	}
	return out
}

// AllExternalIndexes returns the Semantic Index of every loaded external
// dependency.
func (r *Registry) AllExternalIndexes() []*semindex.Index {
	return r.Indexes(func(p PackageEntry) bool { return p.External })
}

// LoadDependencies loads each named external dependency: a pre-built
// `<cacheDir>/external/<name>@<version>.fragset` artifact if present,
// otherwise the dependency's source tree is indexed in read-only mode
// with the same Analyzer/Binding dispatch used for local packages.
// progress is called with a human-readable status line per dependency.
func (r *Registry) LoadDependencies(ctx context.Context, deps []PackageEntry, progress func(string)) error {
	for _, dep := range deps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if progress != nil {
			progress("loading " + dep.Name + "@" + dep.Version)
		}
		idx, err := r.loadExternal(dep)
		if err != nil {
			return semerr.Analyzer("load dependency "+dep.Name, err)
		}
		dep.External = true
		dep.ext = idx
		r.mu.Lock()
		r.external[dep.Name] = &dep
		r.mu.Unlock()
	}
	return nil
}

// loadFragset decodes a pre-built external-dependency index artifact
// (gob-encoded, via semindex.Index's GobEncode/GobDecode) from path.
func loadFragset(path string) (*semindex.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	idx := &semindex.Index{}
	if err := gob.NewDecoder(f).Decode(idx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (r *Registry) loadExternal(dep PackageEntry) (*semindex.Index, error) {
	artifact := filepath.Join(r.cacheDir, "external", dep.Name+"@"+dep.Version+".fragset")
	if idx, err := loadFragset(artifact); err == nil {
		return idx, nil
	}
	return r.indexFromSource(dep)
}

// indexFromSource builds a read-only Semantic Index for an external
// dependency directly from its source tree by calling the Binding's
// Discover and Analyze; no Indexer, watcher or file cache is involved.
// Files that cannot be read or analyzed are skipped.
func (r *Registry) indexFromSource(dep PackageEntry) (*semindex.Index, error) {
	binding, ok := r.bindings.Get(dep.LanguageID)
	if !ok {
		return semindex.New(dep.Root, dep.LanguageID), nil
	}
	pkgs, err := binding.Discover(dep.Root)
	if err != nil {
		return nil, err
	}
	out := semindex.New(dep.Root, dep.LanguageID)
	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			content, err := os.ReadFile(file)
			if err != nil {
				continue
			}
			frag, err := binding.Analyze(file, content)
			if err != nil {
				continue
			}
			out.Merge(frag)
		}
	}
	return out, nil
}

// Updates fans in every local Indexer's Update channel into one buffered
// channel, preserving per-package order: one forwarding goroutine per
// local indexer writes into the shared channel, the same fan-in shape as
// this codebase's single writer-mutex-guarded protocol writer generalized
// to channel fan-in. The returned channel closes once ctx is done and
// every forwarder has drained.
func (r *Registry) Updates(ctx context.Context, perPackageEvents map[string]<-chan indexer.Update) <-chan indexer.Update {
	out := make(chan indexer.Update, 256)
	var wg sync.WaitGroup
	for _, events := range perPackageEvents {
		wg.Add(1)
		go func(events <-chan indexer.Update) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case u, ok := <-events:
					if !ok {
						return
					}
					select {
					case out <- u:
					case <-ctx.Done():
						return
					}
				}
			}
		}(events)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
