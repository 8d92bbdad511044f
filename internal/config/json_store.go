package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	configFileName = "lyngdorfd.json"
	debounceDelay  = 500 * time.Millisecond
)

// JSONStore keeps Settings in a single indented JSON file. Saves are
// debounced and written by rename, so readers (including the fsnotify
// Watcher) never see a half-written file.
type JSONStore struct {
	path string

	mu      sync.Mutex
	timer   *time.Timer
	pending *Settings
	written *Settings // last settings known to be on disk
}

// NewJSONStore returns a store for configDir/lyngdorfd.json.
func NewJSONStore(configDir string) *JSONStore {
	return &JSONStore{path: filepath.Join(configDir, configFileName)}
}

// Path returns the settings file path.
func (s *JSONStore) Path() string { return s.path }

// Load reads the settings file over DefaultSettings, so keys missing from
// the file keep their defaults. A missing or unparseable file yields
// DefaultSettings; only other read errors are returned.
func (s *JSONStore) Load() (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return &settings, nil
	case err != nil:
		return nil, err
	}

	if err := json.Unmarshal(data, &settings); err != nil {
		slog.Warn("config: corrupt settings file, using defaults", "path", s.path, "err", err)
		settings = DefaultSettings()
		return &settings, nil
	}
	migrateSettings(data, &settings)

	s.mu.Lock()
	if s.pending == nil {
		loaded := settings.Clone()
		s.written = &loaded
	}
	s.mu.Unlock()
	return &settings, nil
}

// Save schedules a write of settings once no further Save has arrived for
// debounceDelay. Saving what is already on disk does nothing.
func (s *JSONStore) Save(settings *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil && s.written != nil && s.written.Equal(settings) {
		return nil
	}
	next := settings.Clone()
	s.pending = &next

	if s.timer == nil {
		s.timer = time.AfterFunc(debounceDelay, s.writePending)
	} else {
		s.timer.Reset(debounceDelay)
	}
	return nil
}

// Flush writes pending settings now instead of waiting for the debounce.
func (s *JSONStore) Flush() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	return s.flush()
}

func (s *JSONStore) writePending() {
	if err := s.flush(); err != nil {
		slog.Error("config: failed to write settings", "path", s.path, "err", err)
	}
}

func (s *JSONStore) flush() error {
	s.mu.Lock()
	next := s.pending
	s.pending = nil
	s.mu.Unlock()
	if next == nil {
		return nil
	}

	if err := s.replaceFile(next); err != nil {
		return err
	}
	s.mu.Lock()
	s.written = next
	s.mu.Unlock()
	slog.Debug("config: settings saved", "path", s.path)
	return nil
}

// replaceFile writes settings to a temp file in the same directory, syncs it
// and renames it over the settings file.
func (s *JSONStore) replaceFile(settings *Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+configFileName+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

var _ Store = (*JSONStore)(nil)
