//go:build unix

package hardware

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// portLock is an advisory lock held for the life of a serial connection so
// that a second bridge cannot interleave traffic on the same port.
type portLock struct {
	f *os.File
}

func lockPort(path string) (*portLock, error) {
	f, err := os.OpenFile(lockPath(path), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s is in use by another process", path)
		}
		return nil, err
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	return &portLock{f: f}, nil
}

func (l *portLock) release() {
	if l == nil || l.f == nil {
		return
	}
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	l.f.Close()
	l.f = nil
}
