// Package auth guards the bridge's HTTP API with API keys read from a JSON
// file in the config directory. With no keys configured the API is open.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const keysFileName = "keys.json"

// Scope limits what a key may do.
type Scope string

const (
	ScopeRead    Scope = "read"    // GET requests only
	ScopeControl Scope = "control" // everything
)

// Key is one entry of keys.json, indexed by client name.
type Key struct {
	Key     string `json:"key"`
	Scope   Scope  `json:"scope,omitempty"` // empty means control
	Created string `json:"created,omitempty"`
}

// Service holds the current key set and reloads it when the file changes.
type Service struct {
	mu        sync.RWMutex
	configDir string
	keys      map[string]Key
	watcher   *fsnotify.Watcher
}

// NewService loads keys.json from configDir and watches it for changes. A
// missing file is not an error.
func NewService(configDir string) (*Service, error) {
	s := &Service{
		configDir: configDir,
		keys:      make(map[string]Key),
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("auth: could not create fsnotify watcher", "err", err)
		return s, nil
	}
	s.watcher = watcher

	keysPath := s.keysPath()
	if err := watcher.Add(filepath.Dir(keysPath)); err != nil {
		slog.Warn("auth: could not watch config dir", "err", err)
	}

	go s.watchLoop(keysPath)
	return s, nil
}

func (s *Service) keysPath() string {
	return filepath.Join(s.configDir, keysFileName)
}

// Reload re-reads keys.json. On error the previous key set stays in effect.
func (s *Service) Reload() error {
	data, err := os.ReadFile(s.keysPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.mu.Lock()
			s.keys = make(map[string]Key)
			s.mu.Unlock()
			return nil
		}
		return err
	}

	var keys map[string]Key
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("auth: %s: %w", keysFileName, err)
	}
	for name, k := range keys {
		switch k.Scope {
		case "":
			k.Scope = ScopeControl
			keys[name] = k
		case ScopeRead, ScopeControl:
		default:
			return fmt.Errorf("auth: key %q has unknown scope %q", name, k.Scope)
		}
	}

	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
	slog.Debug("auth: reloaded keys", "count", len(keys))
	return nil
}

// IsOpenMode reports whether no usable keys are configured.
func (s *Service) IsOpenMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if k.Key != "" {
			return false
		}
	}
	return true
}

// Lookup returns the client name and scope for key. The comparison runs in
// constant time per entry.
func (s *Service) Lookup(key string) (string, Scope, bool) {
	if key == "" {
		return "", "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, k := range s.keys {
		if k.Key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(k.Key)) == 1 {
			return name, k.Scope, true
		}
	}
	return "", "", false
}

// Close stops the file watcher.
func (s *Service) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}

func (s *Service) watchLoop(keysPath string) {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Name == keysPath && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove)) {
				if err := s.Reload(); err != nil {
					slog.Warn("auth: failed to reload keys", "err", err)
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("auth: watcher error", "err", err)
		}
	}
}
