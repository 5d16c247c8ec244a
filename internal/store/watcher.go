package store

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceWindow coalesces bursts of file events into one reload.
const DefaultDebounceWindow = 500 * time.Millisecond

// Debouncer coalesces rapid triggers using a trailing-edge debounce: the
// callback fires only after no trigger has occurred for the window.
type Debouncer struct {
	timer    *time.Timer
	duration time.Duration
	mu       sync.Mutex
}

// NewDebouncer creates a Debouncer with the given window.
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{duration: duration}
}

// Trigger schedules the callback after the debounce window, resetting any
// pending timer.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, callback)
}

// Stop cancels any pending timer.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Watcher observes one collection file inside the persist directory and
// signals when it changes on disk. The documents are human-inspectable
// and occasionally human-edited; the watcher lets a running server pick
// those edits up without a restart. The signal only flags the change;
// the provider reloads at its next safe point, keeping mutation strictly
// sequential.
type Watcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	dir       string
	file      string
	stopChan  chan struct{}
	logger    *log.Logger
}

// NewWatcher creates a watcher for the named collection file under the
// gateway's directory.
func NewWatcher(g *Gateway, name string, logger *log.Logger) (*Watcher, error) {
	path, err := g.Path(name)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:   fsw,
		debouncer: NewDebouncer(DefaultDebounceWindow),
		dir:       g.Dir(),
		file:      path,
		stopChan:  make(chan struct{}),
		logger:    logger,
	}, nil
}

// Run watches the persist directory and invokes onChange (debounced) when
// the collection file is written or created. Blocks until Close.
func (w *Watcher) Run(onChange func()) error {
	// Watch the directory, not the file: saves go through temp-and-rename,
	// which replaces the inode the file watch would be pinned to.
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	for {
		select {
		case <-w.stopChan:
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.isCollectionEvent(event) {
				continue
			}
			if w.logger != nil {
				w.logger.Printf("collection change detected: %s (%s)", filepath.Base(event.Name), event.Op)
			}
			w.debouncer.Trigger(onChange)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// isCollectionEvent reports whether the event is a Write/Create/Rename
// touching the watched collection file.
func (w *Watcher) isCollectionEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	return event.Name == w.file
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	close(w.stopChan)
	w.debouncer.Stop()
	return w.watcher.Close()
}
