// Package watcher notices when the collection database is written by another
// process and fires a debounced callback so open subscriptions can be
// refreshed with a fresh snapshot.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceDuration batches the burst of writes sqlite makes per commit.
const DefaultDebounceDuration = 250 * time.Millisecond

// Config holds file watcher configuration.
type Config struct {
	// File is the database file. Its directory is watched so that the
	// -wal and -journal companions are seen as well.
	File             string
	DebounceDuration time.Duration
	OnChange         func()
	OnError          func(error)
}

// DefaultConfig returns a Config for file with the default debounce.
func DefaultConfig(file string, onChange func()) *Config {
	return &Config{
		File:             file,
		DebounceDuration: DefaultDebounceDuration,
		OnChange:         onChange,
	}
}

// Watcher monitors a database file and its companions.
type Watcher struct {
	cfg     *Config
	fsw     *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped bool
	started bool
	mu      sync.Mutex
}

// New creates a new Watcher instance.
func New(cfg *Config) (*Watcher, error) {
	if cfg.File == "" {
		return nil, fmt.Errorf("watcher: no file configured")
	}
	if cfg.DebounceDuration <= 0 {
		cfg.DebounceDuration = DefaultDebounceDuration
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		cfg:    cfg,
		fsw:    fsw,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start begins watching the directory of the configured file.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return fmt.Errorf("watcher has been stopped and cannot be restarted")
	}
	if w.started {
		return nil
	}

	dir := filepath.Dir(w.cfg.File)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	w.started = true
	go w.eventLoop()
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started := w.started
	close(w.stopCh)
	_ = w.fsw.Close()
	w.mu.Unlock()

	if started {
		<-w.doneCh
	}
}

// relevant reports whether name is the database file or one of its companions.
func (w *Watcher) relevant(name string) bool {
	base := filepath.Base(w.cfg.File)
	got := filepath.Base(name)
	return got == base || strings.HasPrefix(got, base+"-")
}

func (w *Watcher) eventLoop() {
	defer close(w.doneCh)

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.cfg.DebounceDuration, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.cfg.OnError != nil {
				w.cfg.OnError(err)
			}

		case <-fire:
			if w.cfg.OnChange != nil {
				w.cfg.OnChange()
			}
		}
	}
}
