package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var errAlreadyWatching = errors.New("already watching")

// Watcher calls a handler for every class file written under a set of
// directories. Bursts of events for the same file within the debounce
// window collapse into one call.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dirs     []string
	handle   func(path string) error
	logger   *zap.Logger
	debounce time.Duration

	mu         sync.Mutex
	isWatching bool
	pending    map[string]*time.Timer
	wg         sync.WaitGroup
}

// NewWatcher returns a watcher over dirs. handle errors are logged, not
// returned.
func NewWatcher(dirs []string, handle func(path string) error, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		watcher:  fw,
		dirs:     dirs,
		handle:   handle,
		logger:   logger,
		debounce: 100 * time.Millisecond,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Start registers every directory below the watched roots and begins
// dispatching events.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isWatching {
		return errAlreadyWatching
	}
	for _, dir := range w.dirs {
		if err := w.addTree(dir); err != nil {
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}

	w.isWatching = true
	w.wg.Add(1)
	go w.watchLoop()
	return nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

// Stop ends the watch and waits for the event loop to exit. Pending
// debounced calls are dropped.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.isWatching {
		w.mu.Unlock()
		return nil
	}
	w.isWatching = false
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFileEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleFileEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		// New package directories need watching too.
		if err := w.addTree(event.Name); err == nil {
			w.logger.Debug("watching", zap.String("path", event.Name))
		}
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !strings.HasSuffix(event.Name, ".class") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isWatching {
		return
	}
	if t, ok := w.pending[event.Name]; ok {
		t.Reset(w.debounce)
		return
	}
	path := event.Name
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		active := w.isWatching
		w.mu.Unlock()
		if !active {
			return
		}
		if err := w.handle(path); err != nil {
			w.logger.Error("re-downgrade failed", zap.String("path", path), zap.Error(err))
		}
	})
}
