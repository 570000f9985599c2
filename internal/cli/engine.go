package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wenkaifan0720/code-context-sub001/internal/analysis"
	"github.com/wenkaifan0720/code-context-sub001/internal/cache"
	"github.com/wenkaifan0720/code-context-sub001/internal/config"
	"github.com/wenkaifan0720/code-context-sub001/internal/convert"
	"github.com/wenkaifan0720/code-context-sub001/internal/discovery"
	"github.com/wenkaifan0720/code-context-sub001/internal/indexer"
	"github.com/wenkaifan0720/code-context-sub001/internal/registry"
	"github.com/wenkaifan0720/code-context-sub001/internal/rpc"
	"github.com/wenkaifan0720/code-context-sub001/internal/store"
	"github.com/wenkaifan0720/code-context-sub001/internal/watch"
)

// rebuildDebounce batches the fan-in Update stream before issuing an
// explicit Rebuild: the Store is never rebuilt per event.
const rebuildDebounce = 500 * time.Millisecond

// engine wires the Registry, Store, Watchers, and Converter behind the
// rpc.Handlers seam. It owns every piece of domain behavior the rpc
// package never sees: rpc only frames the protocol and gates lifecycle
// state, exactly as this codebase's MCP server delegates to its Butler.
type engine struct {
	root     string
	bindings *analysis.Registry

	mu         sync.Mutex
	layout     config.Layout
	guardrails config.Guardrails
	fileCache  *cache.Cache
	reg        *registry.Registry
	st         *store.Store
	watchers   map[string]*watch.Watcher
	cancel     context.CancelFunc
	languageID string
	fileCount  int
}

func newEngine(root string, bindings *analysis.Registry) *engine {
	return &engine{root: root, bindings: bindings}
}

// Serve runs the JSON-RPC lifecycle facade over r/w until ctx is done or
// the client shuts it down.
func (e *engine) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	srv := rpc.NewServer(r, w, rpc.Handlers{
		Initialize:       e.handleInitialize,
		SQL:              e.handleSQL,
		Status:           e.handleStatus,
		DidChangeFile:    e.handleDidChangeFile,
		LoadDependencies: e.handleLoadDependencies,
		Shutdown:         e.handleShutdown,
	})
	return srv.Serve(ctx)
}

func (e *engine) handleInitialize(ctx context.Context, rootPath, languageID string) (rpc.InitializeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rootPath == "" {
		rootPath = e.root
	}
	layout, err := config.EnsureLayout(rootPath)
	if err != nil {
		return rpc.InitializeResult{}, err
	}
	guardrails := config.LoadGuardrails(layout)

	fc, err := cache.Open(layout.CacheDir, filepath.Base(rootPath), "1")
	if err != nil {
		return rpc.InitializeResult{}, err
	}

	reg := registry.New(e.bindings, fc, layout.CacheDir)
	disc := discovery.New(e.bindings, guardrails)
	descriptors, err := disc.Discover(rootPath)
	if err != nil {
		return rpc.InitializeResult{}, err
	}

	fileCount := 0
	for _, desc := range descriptors {
		reg.AddLocal(ctx, desc, nil) // per-file analyzer failures surface as IndexErrorUpdate, never fatal here
		fileCount += len(desc.Files)
	}

	st, err := store.Open()
	if err != nil {
		return rpc.InitializeResult{}, err
	}
	if err := rebuildStore(reg, st); err != nil {
		st.Close()
		return rpc.InitializeResult{}, err
	}

	symbolCount := 0
	for _, idx := range reg.Indexes(registry.ScopeAll) {
		symbolCount += len(idx.Symbols)
	}

	if e.st != nil {
		e.st.Close()
	}
	if e.cancel != nil {
		e.cancel()
	}

	e.layout = layout
	e.guardrails = guardrails
	e.fileCache = fc
	e.reg = reg
	e.st = st
	e.languageID = languageID
	e.fileCount = fileCount
	e.watchers = make(map[string]*watch.Watcher)

	watchCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.startWatchersLocked(watchCtx)

	return rpc.InitializeResult{
		ProjectName: filepath.Base(rootPath),
		FileCount:   fileCount,
		SymbolCount: symbolCount,
	}, nil
}

// startWatchersLocked starts one Watcher per local package root and fans
// its Reconcile stream into the single rebuild loop. Callers must hold e.mu.
func (e *engine) startWatchersLocked(ctx context.Context) {
	perPackageEvents := make(map[string]<-chan indexer.Update)
	for _, ix := range e.reg.LocalIndexers() {
		w, err := watch.New(ix.Root, watch.DefaultConfig(e.guardrails))
		if err != nil {
			continue
		}
		if err := w.Start(ctx); err != nil {
			continue
		}
		e.watchers[ix.Root] = w
		perPackageEvents[ix.Root] = ix.Reconcile(ctx, w.Events())
	}
	updates := e.reg.Updates(ctx, perPackageEvents)
	go e.rebuildLoop(ctx, updates)
}

// rebuildLoop batches the fan-in Update stream behind a quiescence window
// and issues one explicit Rebuild per batch — the Store is never rebuilt
// per individual file-change event.
func (e *engine) rebuildLoop(ctx context.Context, updates <-chan indexer.Update) {
	var timer *time.Timer
	var timerC <-chan time.Time
	dirty := false
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			dirty = true
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(rebuildDebounce)
			timerC = timer.C
		case <-timerC:
			timerC = nil
			if !dirty {
				continue
			}
			dirty = false
			e.mu.Lock()
			reg, st := e.reg, e.st
			e.mu.Unlock()
			if reg != nil && st != nil {
				_ = rebuildStore(reg, st)
			}
		}
	}
}

func rebuildStore(reg *registry.Registry, st *store.Store) error {
	symbols, occurrences, relationships := convert.FragmentsToRows(reg.Indexes(registry.ScopeAll))
	return st.Rebuild(symbols, occurrences, relationships)
}

func (e *engine) handleSQL(ctx context.Context, query string, parameters []any, format string) (rpc.SQLResult, error) {
	e.mu.Lock()
	st := e.st
	e.mu.Unlock()
	if st == nil {
		return rpc.SQLResult{}, fmt.Errorf("store not initialized")
	}
	result, err := st.Query(query, parameters...)
	if err != nil {
		return rpc.SQLResult{}, err
	}
	if format == "json" {
		data, err := result.ToJSON()
		if err != nil {
			return rpc.SQLResult{}, err
		}
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return rpc.SQLResult{}, err
		}
		return rpc.SQLResult{Success: true, JSON: v}, nil
	}
	return rpc.SQLResult{Success: true, Text: result.ToText()}, nil
}

func (e *engine) handleStatus() rpc.StatusResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reg == nil {
		return rpc.StatusResult{Initialized: false}
	}
	symbolCount := 0
	for _, idx := range e.reg.Indexes(registry.ScopeAll) {
		symbolCount += len(idx.Symbols)
	}
	return rpc.StatusResult{
		Initialized: true,
		LanguageID:  e.languageID,
		FileCount:   e.fileCount,
		SymbolCount: symbolCount,
	}
}

// handleDidChangeFile forwards path to whichever Watcher's root contains
// it, synthesizing a modified event even if the OS backend hasn't
// observed the write yet.
func (e *engine) handleDidChangeFile(path string) {
	e.mu.Lock()
	watchers := e.watchers
	e.mu.Unlock()
	for root, w := range watchers {
		if strings.HasPrefix(path, root) {
			w.Refresh(path)
		}
	}
}

func (e *engine) handleLoadDependencies(ctx context.Context, progress func(string)) error {
	e.mu.Lock()
	reg := e.reg
	e.mu.Unlock()
	if reg == nil {
		return fmt.Errorf("registry not initialized")
	}
	// The wire protocol carries no dependency list of its own (spec.md
	// treats dependency-graph discovery as an external collaborator); an
	// empty set is a valid, successful no-op load.
	return reg.LoadDependencies(ctx, nil, progress)
}

func (e *engine) handleShutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	for _, w := range e.watchers {
		w.Stop()
	}
	if e.st != nil {
		e.st.Close()
	}
	e.reg = nil
	e.st = nil
}
