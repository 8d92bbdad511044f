// Package identity describes the running bridge: host name, version and
// start time. It feeds /api/info and the mDNS TXT records.
package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// DefaultVersion is the fallback version string when metadata.json is not found.
const DefaultVersion = "0.1.0"

// Info holds bridge identity information.
type Info struct {
	Hostname string    `json:"hostname"`
	Version  string    `json:"version"`
	Started  time.Time `json:"started"`
}

// Uptime returns how long the bridge has been running.
func (i Info) Uptime() time.Duration {
	return time.Since(i.Started).Truncate(time.Second)
}

// New collects identity information, reading the version from configDir.
func New(configDir string) Info {
	return Info{
		Hostname: GetHostname(),
		Version:  GetVersionFromDir(configDir),
		Started:  time.Now(),
	}
}

// GetHostname returns the system hostname.
func GetHostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "lyngdorfd"
	}
	return h
}

// DefaultConfigDir returns ~/.config/lyngdorfd.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "lyngdorfd")
}

// GetVersionFromDir reads "version" from dir/metadata.json. If dir is empty
// DefaultConfigDir is used. Falls back to DefaultVersion.
func GetVersionFromDir(dir string) string {
	if dir == "" {
		dir = DefaultConfigDir()
	}

	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return DefaultVersion
	}

	var meta struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &meta); err != nil || meta.Version == "" {
		return DefaultVersion
	}
	return meta.Version
}
