// Package indexer implements the incremental indexer: it maintains one
// package's Semantic Index and per-file fragment cache, turning Analyzer
// output and filesystem change events into a coherent, continuously
// reconciled in-memory index (spec §4.E).
package indexer

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wenkaifan0720/code-context-sub001/internal/analysis"
	"github.com/wenkaifan0720/code-context-sub001/internal/cache"
	"github.com/wenkaifan0720/code-context-sub001/internal/semerr"
	"github.com/wenkaifan0720/code-context-sub001/internal/semindex"
	"github.com/wenkaifan0720/code-context-sub001/internal/watch"
)

// ProgressFunc reports InitialIndex progress.
type ProgressFunc func(processed, total int, current string)

// Indexer maintains one local package's Semantic Index plus a
// path→Fragment map, reconciling Analyzer output and Watcher events into
// it. The Semantic Index is mutated only from within this type's methods
// (spec §5 shared-resource policy): callers never touch ix directly.
type Indexer struct {
	Root       string
	LanguageID string

	bindings *analysis.Registry
	cache    *cache.Cache

	mu        sync.Mutex
	index     *semindex.Index
	fragments map[string]*cache.Fragment

	debounceWindow time.Duration
}

// New constructs an Indexer for one local package.
func New(root, languageID string, bindings *analysis.Registry, c *cache.Cache) *Indexer {
	return &Indexer{
		Root:           root,
		LanguageID:     languageID,
		bindings:       bindings,
		cache:          c,
		index:          semindex.New(root, languageID),
		fragments:      make(map[string]*cache.Fragment),
		debounceWindow: 200 * time.Millisecond,
	}
}

// Index returns a snapshot-safe pointer to the package's Semantic Index.
// Callers must not mutate it.
func (ix *Indexer) Index() *semindex.Index {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.index
}

// FragmentCount returns the number of cached file fragments.
func (ix *Indexer) FragmentCount() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.fragments)
}

// InitialIndex enumerates files, loads each from cache or analyzes it,
// and merges the result into the package's Semantic Index. progress may
// be nil.
func (ix *Indexer) InitialIndex(ctx context.Context, files []string, progress ProgressFunc) (InitialIndexUpdate, []IndexErrorUpdate) {
	runID := uuid.NewString()
	var errs []IndexErrorUpdate
	total := len(files)
	for i, path := range files {
		select {
		case <-ctx.Done():
			return InitialIndexUpdate{RunID: runID, FragmentCount: ix.FragmentCount()}, errs
		default:
		}
		if progress != nil {
			progress(i, total, path)
		}
		if err := ix.analyzeAndMerge(path); err != nil {
			errs = append(errs, IndexErrorUpdate{Path: path, Kind: "analyzer", Message: err.Error()})
		}
	}
	if progress != nil {
		progress(total, total, "")
	}
	return InitialIndexUpdate{RunID: runID, FragmentCount: ix.FragmentCount()}, errs
}

// analyzeAndMerge loads path from disk, attempts a cache hit, otherwise
// runs the bound Analyzer, then merges the resulting fragment into the
// package's Semantic Index and writes it back to the cache.
func (ix *Indexer) analyzeAndMerge(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	hash := cache.HashContent(content)

	var frag *cache.Fragment
	if ix.cache != nil {
		if loaded, ok := ix.cache.Load(ix.LanguageID, path, hash); ok {
			frag = loaded
		}
	}
	if frag == nil {
		fragIndex, err := ix.bindings.Analyze(ix.LanguageID, path, content)
		if err != nil {
			return semerr.Analyzer("analyze "+path, err)
		}
		frag = &cache.Fragment{Path: path, ContentHash: hash, ModTime: time.Now(), Index: fragIndex}
		if ix.cache != nil {
			if err := ix.cache.Store(ix.LanguageID, frag); err != nil {
				// Cache write failures are never fatal (spec §4.D/§7).
				_ = err
			}
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if prior, ok := ix.fragments[path]; ok {
		ix.index.RemoveByFile(prior.Path)
	}
	ix.index.Merge(frag.Index)
	ix.fragments[path] = frag
	return nil
}

// removeFile drops path's fragment and its rows from the Semantic Index.
func (ix *Indexer) removeFile(path string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.index.RemoveByFile(path)
	delete(ix.fragments, path)
}

// priorSymbolIDs returns the set of symbol ids path contributed before
// its most recent reconciliation, for FileUpdatedUpdate's RemovedSymbols.
func (ix *Indexer) priorSymbolIDs(path string) map[string]bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make(map[string]bool)
	if frag, ok := ix.fragments[path]; ok && frag.Index != nil {
		for id := range frag.Index.Symbols {
			out[id] = true
		}
	}
	return out
}

// Reconcile consumes events (typically from watch.Watcher, already
// debounced at the OS-event layer) and applies the Indexer's own 200ms
// quiescence debounce per path — coalescing bursts and cancelling a
// created-then-deleted pair — before reconciling each surviving change
// against the Semantic Index. It returns a channel of Updates that is
// closed when events closes or ctx is done.
func (ix *Indexer) Reconcile(ctx context.Context, events <-chan watch.FileChange) <-chan Update {
	out := make(chan Update, 64)
	go ix.reconcileLoop(ctx, events, out)
	return out
}

type debounceState struct {
	first, latest watch.Kind
}

// reconcileLoop debounces per path, not globally: a continuous stream of
// events on one path must never starve another path's pending flush.
// Each path gets its own time.AfterFunc timer, reset on every event for
// that path, mirroring this codebase's own debounceTimers map pattern
// for per-document debounce elsewhere in the tool.
func (ix *Indexer) reconcileLoop(ctx context.Context, events <-chan watch.FileChange, out chan<- Update) {
	defer close(out)

	var mu sync.Mutex
	pending := make(map[string]debounceState)
	timers := make(map[string]*time.Timer)

	flushPath := func(path string) {
		mu.Lock()
		st, ok := pending[path]
		delete(pending, path)
		delete(timers, path)
		mu.Unlock()
		if !ok {
			return
		}
		if st.first == watch.KindCreated && st.latest == watch.KindDeleted {
			return
		}
		ix.applyChange(path, st.latest, out)
	}

	stopAllTimers := func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}

	for {
		select {
		case <-ctx.Done():
			stopAllTimers()
			return
		case fc, ok := <-events:
			if !ok {
				stopAllTimers()
				mu.Lock()
				remaining := make([]string, 0, len(pending))
				for path := range pending {
					remaining = append(remaining, path)
				}
				mu.Unlock()
				for _, path := range remaining {
					flushPath(path)
				}
				return
			}
			mu.Lock()
			st, exists := pending[fc.Path]
			if !exists {
				st = debounceState{first: fc.Kind, latest: fc.Kind}
			} else {
				st.latest = fc.Kind
			}
			pending[fc.Path] = st
			if t, ok := timers[fc.Path]; ok {
				t.Stop()
			}
			path := fc.Path
			timers[fc.Path] = time.AfterFunc(ix.debounceWindow, func() {
				flushPath(path)
			})
			mu.Unlock()
		}
	}
}

func (ix *Indexer) applyChange(path string, kind watch.Kind, out chan<- Update) {
	switch kind {
	case watch.KindDeleted:
		ix.removeFile(path)
		out <- FileRemovedUpdate{Path: path}
	case watch.KindCreated, watch.KindModified:
		prior := ix.priorSymbolIDs(path)
		if err := ix.analyzeAndMerge(path); err != nil {
			out <- IndexErrorUpdate{Path: path, Kind: "analyzer", Message: err.Error()}
			return
		}
		fresh := ix.priorSymbolIDs(path)
		var added, removed []string
		for id := range fresh {
			if !prior[id] {
				added = append(added, id)
			}
		}
		for id := range prior {
			if !fresh[id] {
				removed = append(removed, id)
			}
		}
		out <- FileUpdatedUpdate{Path: path, AddedSymbols: added, RemovedSymbols: removed}
	}
}
