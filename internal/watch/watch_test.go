package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wenkaifan0720/code-context-sub001/internal/config"
)

func startWatcher(t *testing.T, root string) (*Watcher, context.CancelFunc) {
	t.Helper()
	cfg := DefaultConfig(config.Guardrails{})
	cfg.Debounce = 30 * time.Millisecond
	w, err := New(root, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	return w, cancel
}

func waitForChange(t *testing.T, w *Watcher, timeout time.Duration) (FileChange, bool) {
	t.Helper()
	select {
	case fc := <-w.Events():
		return fc, true
	case <-time.After(timeout):
		return FileChange{}, false
	}
}

func TestWatcherDetectsCreatedFile(t *testing.T) {
	root := t.TempDir()
	w, _ := startWatcher(t, root)

	path := filepath.Join(root, "a.go")
	if err := os.WriteFile(path, []byte("package a\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	fc, ok := waitForChange(t, w, 2*time.Second)
	if !ok {
		t.Fatalf("expected a FileChange event, got none")
	}
	if fc.Kind != KindCreated && fc.Kind != KindModified {
		t.Errorf("unexpected kind %v for new file", fc.Kind)
	}
}

func TestRefreshEmitsModified(t *testing.T) {
	root := t.TempDir()
	w, _ := startWatcher(t, root)

	w.Refresh("manual.go")
	fc, ok := waitForChange(t, w, time.Second)
	if !ok {
		t.Fatalf("expected Refresh to emit an event")
	}
	if fc.Path != "manual.go" || fc.Kind != KindModified {
		t.Errorf("Refresh() emitted %+v, want {manual.go modified}", fc)
	}
}

func TestDebounceCoalescesBurst(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "burst.go")
	os.WriteFile(path, []byte("package a\n"), 0o644)

	w, _ := startWatcher(t, root)

	for i := 0; i < 5; i++ {
		os.WriteFile(path, []byte("package a\n// edit\n"), 0o644)
		time.Sleep(2 * time.Millisecond)
	}

	count := 0
	deadline := time.After(500 * time.Millisecond)
loop:
	for {
		select {
		case <-w.Events():
			count++
		case <-deadline:
			break loop
		}
	}
	if count == 0 {
		t.Errorf("expected at least one coalesced event from the burst")
	}
}
