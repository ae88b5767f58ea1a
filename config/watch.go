package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file on change. It watches the parent
// directory so editors that replace the file (write to temp, rename
// over) keep triggering, and applies a cooldown so bursts of events
// reload once.
type Watcher struct {
	path     string
	cfg      HotReloadConfig
	onChange func(AppConfig)
	onError  func(error)

	watcher *fsnotify.Watcher

	mu         sync.Mutex
	lastReload time.Time

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWatcher builds a watcher for path. onChange receives every
// successfully loaded and validated config; load failures go to
// onError (which may be nil) and keep the previous config in force.
func NewWatcher(path string, cfg HotReloadConfig, onChange func(AppConfig), onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		path:     path,
		cfg:      cfg,
		onChange: onChange,
		onError:  onError,
		watcher:  fsw,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start begins watching. It returns immediately; reloads run on a
// background goroutine until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.cfg.Enabled {
		close(w.doneChan)
		return nil
	}
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	go w.loop(ctx)
	return nil
}

// Stop halts the watcher and waits briefly for the loop to exit.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.stopChan) })
	select {
	case <-w.doneChan:
	case <-time.After(time.Second):
	}
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneChan)
	base := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.fail(fmt.Errorf("watcher: %w", err))
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	if cooldown := w.cfg.Cooldown(); cooldown > 0 && time.Since(w.lastReload) < cooldown {
		w.mu.Unlock()
		return
	}
	w.lastReload = time.Now()
	w.mu.Unlock()

	cfg, err := LoadWithEnvOverrides(w.path)
	if err != nil {
		w.fail(fmt.Errorf("reload config: %w", err))
		return
	}
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

func (w *Watcher) fail(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}
