package identity_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianhealey/lyngdorf-go/internal/identity"
)

func TestGetVersionFromDir(t *testing.T) {
	tests := []struct {
		name string
		meta string // "" means no file
		want string
	}{
		{"missing", "", identity.DefaultVersion},
		{"from file", `{"version": "1.2.3"}`, "1.2.3"},
		{"invalid json", "not json", identity.DefaultVersion},
		{"empty version", `{"version": ""}`, identity.DefaultVersion},
		{"wrong type", `{"version": 12}`, identity.DefaultVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.meta != "" {
				if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(tt.meta), 0644); err != nil {
					t.Fatal(err)
				}
			}
			if got := identity.GetVersionFromDir(dir); got != tt.want {
				t.Errorf("GetVersionFromDir() = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	before := time.Now()
	info := identity.New(t.TempDir())

	if info.Hostname == "" {
		t.Error("Hostname is empty")
	}
	if info.Version != identity.DefaultVersion {
		t.Errorf("Version = %q; want %q", info.Version, identity.DefaultVersion)
	}
	if info.Started.Before(before) {
		t.Errorf("Started = %v; before %v", info.Started, before)
	}
	if info.Uptime() < 0 {
		t.Errorf("Uptime() = %v; want >= 0", info.Uptime())
	}
}

func TestDefaultConfigDir(t *testing.T) {
	if filepath.Base(identity.DefaultConfigDir()) != "lyngdorfd" && identity.DefaultConfigDir() != "." {
		t.Errorf("DefaultConfigDir() = %q", identity.DefaultConfigDir())
	}
}
