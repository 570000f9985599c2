// Package watch wraps the host filesystem notification primitive
// (fsnotify) behind the debounced Watcher contract: at-least-once
// FileChange delivery, start/stop/refresh, and overflow detection. On a
// backend error whose text mentions an overflow, the Watcher calls
// Config.OnOverflow with its root if one is set; it does not rescan the
// root or emit any error update itself, and other backend errors are
// dropped. DefaultConfig leaves OnOverflow nil. Directly adapted from the
// debounce/recursive-watch shape used elsewhere in this codebase, with
// the event kinds and cancellation rule changed to match this engine's
// contract exactly.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wenkaifan0720/code-context-sub001/internal/config"
	"github.com/wenkaifan0720/code-context-sub001/internal/semerr"
)

// Kind enumerates the recognized file-change kinds.
type Kind string

const (
	KindCreated  Kind = "created"
	KindModified Kind = "modified"
	KindDeleted  Kind = "deleted"
)

// FileChange is one (debounced, coalesced) change to a single path.
type FileChange struct {
	Path string
	Kind Kind
}

// OverflowFunc is invoked when the watcher backend drops an event
// (buffer overflow); root is the directory that should be rescanned.
type OverflowFunc func(root string)

// Config controls debounce timing and ignored paths.
type Config struct {
	Debounce         time.Duration
	Guardrails       config.Guardrails
	OnOverflow       OverflowFunc
	SourceExtensions []string
}

// DefaultConfig returns the spec-mandated 200ms debounce window.
func DefaultConfig(guardrails config.Guardrails) Config {
	return Config{
		Debounce:   200 * time.Millisecond,
		Guardrails: guardrails,
	}
}

type pendingEntry struct {
	first, latest Kind
}

// Watcher is a debounced, recursive fsnotify watcher rooted at one
// directory, emitting FileChange events on a bounded channel.
type Watcher struct {
	root   string
	cfg    Config
	fsw    *fsnotify.Watcher
	events chan FileChange

	mu            sync.Mutex
	pending       map[string]pendingEntry
	debounceTimer *time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a Watcher rooted at root. Call Start to begin watching.
func New(root string, cfg Config) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, semerr.Watch("resolve root path", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, semerr.Watch("create fsnotify watcher", err)
	}
	return &Watcher{
		root:    absRoot,
		cfg:     cfg,
		fsw:     fsw,
		events:  make(chan FileChange, 256),
		pending: make(map[string]pendingEntry),
		done:    make(chan struct{}),
	}, nil
}

// Events returns the channel FileChange events are delivered on.
func (w *Watcher) Events() <-chan FileChange { return w.events }

// Start adds the root tree to the watch list and begins the event loop.
// It returns once the initial recursive add completes; the event loop
// keeps running on its own goroutine until Stop is called or ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return semerr.Watch("add watch paths", err)
	}
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop halts the watcher. The Events channel stays open (see below).
func (w *Watcher) Stop() {
	select {
	case <-w.done:
		return
	default:
		close(w.done)
	}
	w.wg.Wait()
	w.fsw.Close()

	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()

	// The Events channel is deliberately left open rather than closed: a
	// debounce flush may be concurrently in flight when Stop returns, and
	// sending on a closed channel would panic. Callers stop reading once
	// their own context is done rather than relying on channel closure.
}

// Refresh force-emits a modified event for path, used after an explicit
// write (e.g. an editor's didChangeFile notification) that may not have
// been observed promptly by the OS backend.
func (w *Watcher) Refresh(path string) {
	select {
	case <-w.done:
		return
	default:
	}
	w.events <- FileChange{Path: path, Kind: KindModified}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		if rel != "." && w.cfg.Guardrails.Excluded(rel) {
			return filepath.SkipDir
		}
		_ = w.fsw.Add(path)
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if isOverflow(err) && w.cfg.OnOverflow != nil {
				w.cfg.OnOverflow(w.root)
			}
		}
	}
}

// isOverflow reports whether err indicates a dropped-event condition
// (buffer overflow) rather than an ordinary backend error.
func isOverflow(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "overflow")
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if w.cfg.Guardrails.Excluded(rel) {
		return
	}
	if !w.matchesSourceExtension(rel) {
		return
	}

	var kind Kind
	switch {
	case ev.Op&fsnotify.Create != 0:
		kind = KindCreated
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			_ = w.addRecursive(ev.Name)
		}
	case ev.Op&fsnotify.Write != 0:
		kind = KindModified
	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		kind = KindDeleted
	default:
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	entry, exists := w.pending[ev.Name]
	if !exists {
		w.pending[ev.Name] = pendingEntry{first: kind, latest: kind}
	} else {
		entry.latest = kind
		w.pending[ev.Name] = entry
	}

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.cfg.Debounce, w.flush)
}

func (w *Watcher) matchesSourceExtension(rel string) bool {
	if len(w.cfg.SourceExtensions) == 0 {
		return true
	}
	ext := filepath.Ext(rel)
	for _, e := range w.cfg.SourceExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// flush coalesces the pending map into FileChange events: a path whose
// first observed kind was "created" and whose latest is "deleted"
// cancels out entirely (spec: create-then-delete within the window never
// reaches the Indexer).
func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	pending := w.pending
	w.pending = make(map[string]pendingEntry)
	w.mu.Unlock()

	for path, entry := range pending {
		if entry.first == KindCreated && entry.latest == KindDeleted {
			continue
		}
		select {
		case <-w.done:
			return
		case w.events <- FileChange{Path: path, Kind: entry.latest}:
		}
	}
}
