package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_TriggersOnFileWrite(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	w, err := NewWatcher(dir, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.debounceDur = 20 * time.Millisecond

	triggered := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx, func() {
		select {
		case triggered <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nvar X = 1\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-triggered:
	case <-time.After(2 * time.Second):
		t.Fatal("expected onChange to fire after a file write")
	}
}

func TestWatcher_SkipsExcludedDirs(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "vendor"), 0755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	w, err := NewWatcher(dir, []string{"vendor"})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx, func() {}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	for _, d := range w.watcher.WatchList() {
		if filepath.Base(d) == "vendor" {
			t.Fatalf("expected vendor/ to be excluded from watch list, got %v", w.watcher.WatchList())
		}
	}
}
