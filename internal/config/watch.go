package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a JSONStore's file whenever it changes on disk and hands
// the new settings to a callback. Invalid files are logged and skipped.
type Watcher struct {
	store    *JSONStore
	watcher  *fsnotify.Watcher
	onChange func(*Settings)
	done     chan struct{}
}

// Watch starts watching the store's directory. The directory is watched
// rather than the file so atomic rename-over saves are seen.
func Watch(store *JSONStore, onChange func(*Settings)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(store.Path())); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{store: store, watcher: fw, onChange: onChange, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	path := filepath.Clean(w.store.Path())
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			s, err := w.store.Load()
			if err != nil {
				slog.Warn("config: failed to reload settings", "path", path, "err", err)
				continue
			}
			if err := s.Validate(); err != nil {
				slog.Warn("config: ignoring invalid settings", "path", path, "err", err)
				continue
			}
			slog.Debug("config: settings reloaded", "path", path)
			w.onChange(s)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config: watcher error", "err", err)
		}
	}
}
