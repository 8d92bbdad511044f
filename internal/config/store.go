// Package config loads and saves the bridge daemon's settings: which device
// to talk to and how the HTTP bridge behaves. Device state is never
// persisted; it is rebuilt from the processor every session.
package config

// Store persists Settings.
type Store interface {
	// Load returns the stored settings, or DefaultSettings if none exist.
	Load() (*Settings, error)

	// Save persists s. Implementations may debounce rapid saves.
	Save(s *Settings) error

	// Path returns the file path used by this store.
	Path() string

	// Flush forces an immediate write of any pending settings.
	Flush() error
}
