package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fabfab/doc-agent/loader"
)

const settleDelay = 2 * time.Second

// Watcher ingests files dropped into a directory. Write events are debounced
// per path so a file still being copied is picked up once, after it settles.
type Watcher struct {
	service *Service
	logger  *log.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func NewWatcher(service *Service, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		service: service,
		logger:  logger,
		pending: make(map[string]*time.Timer),
	}
}

// Watch blocks until ctx is cancelled, ingesting supported files as they
// appear in dir.
func (w *Watcher) Watch(ctx context.Context, dir string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Printf("watching %s for documents", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if loader.DetectFormat(event.Name) == loader.FormatUnknown {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("watch error: %v", err)
		}
	}
}

// schedule arms (or rearms) the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(settleDelay)
		return
	}

	w.pending[path] = time.AfterFunc(settleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if _, err := w.service.IngestFile(ctx, path); err != nil {
			w.logger.Printf("ingest %s failed: %v", path, err)
		}
	})
}
