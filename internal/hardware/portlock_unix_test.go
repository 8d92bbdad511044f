//go:build unix

package hardware

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLockPath(t *testing.T) {
	got := lockPath("/dev/ttyUSB0")
	if filepath.Dir(got) != filepath.Clean(os.TempDir()) || filepath.Base(got) != "lyngdorf-dev-ttyUSB0.lock" {
		t.Errorf("lockPath() = %q", got)
	}
}

func TestPortLockExclusive(t *testing.T) {
	dev := "/dev/lyngdorf-test-" + strings.ReplaceAll(t.Name(), "/", "_")
	t.Cleanup(func() { os.Remove(lockPath(dev)) })

	first, err := lockPort(dev)
	if err != nil {
		t.Fatalf("first lockPort: %v", err)
	}
	if _, err := lockPort(dev); err == nil || !strings.Contains(err.Error(), "in use") {
		t.Errorf("second lockPort err = %v, want in use", err)
	}

	first.release()
	first.release() // idempotent

	again, err := lockPort(dev)
	if err != nil {
		t.Fatalf("lockPort after release: %v", err)
	}
	again.release()
}
