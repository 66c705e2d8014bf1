package ingest

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchMissingDirectory(t *testing.T) {
	service, _ := newTestService(&stubClient{out: "sentence"})
	w := NewWatcher(service, log.New(io.Discard, "", 0))

	err := w.Watch(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestWatchStopsOnContextCancel(t *testing.T) {
	service, _ := newTestService(&stubClient{out: "sentence"})
	w := NewWatcher(service, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, t.TempDir())
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Watch returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop after cancellation")
	}
}

func TestWatchIngestsDroppedFile(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out the settle delay")
	}

	dir := t.TempDir()
	service, store := newTestService(&stubClient{out: "North has Price equal to $10."})
	w := NewWatcher(service, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Watch(ctx, dir)

	// Give the watcher a moment to register before dropping the file.
	time.Sleep(200 * time.Millisecond)
	writeTestDocx(t, dir, "dropped.docx")

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		count, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if count > 0 {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("dropped file was not ingested")
}
