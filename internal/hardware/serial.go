package hardware

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/brianhealey/lyngdorf-go/internal/models"
)

// SerialConn is an RS232 link to the processor (8N1, no flow control).
type SerialConn struct {
	mu     sync.Mutex // guards closed and timeout
	port   serial.Port
	lock   *portLock
	path   string
	closed bool

	timeout time.Duration // last read timeout applied to the port
	buf     [readBufSize]byte
}

// lockPath names the lock file for a device path, e.g.
// /tmp/lyngdorf-dev-ttyUSB0.lock.
func lockPath(device string) string {
	name := strings.ReplaceAll(strings.Trim(device, "/"), "/", "-")
	return filepath.Join(os.TempDir(), "lyngdorf-"+name+".lock")
}

func openSerial(d Descriptor) (*SerialConn, error) {
	lock, err := lockPort(d.Address)
	if err != nil {
		return nil, models.ConnectError(d.Address, err)
	}
	port, err := serial.Open(d.Address, &serial.Mode{
		BaudRate: d.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		lock.release()
		return nil, models.ConnectError(d.Address, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		slog.Debug("hardware: reset input buffer failed", "port", d.Address, "err", err)
	}
	slog.Debug("hardware: serial port opened", "port", d.Address, "baud", d.BaudRate)
	return &SerialConn{port: port, lock: lock, path: d.Address}, nil
}

func (c *SerialConn) ReadChunk(timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, models.IOError("read "+c.path, errors.New("port closed"))
	}
	if timeout != c.timeout {
		if err := c.port.SetReadTimeout(timeout); err != nil {
			c.mu.Unlock()
			return nil, models.IOError("read "+c.path, err)
		}
		c.timeout = timeout
	}
	c.mu.Unlock()

	n, err := c.port.Read(c.buf[:])
	if err != nil {
		return nil, models.IOError("read "+c.path, err)
	}
	if n == 0 {
		// go.bug.st/serial reports a read timeout as (0, nil).
		return nil, models.TimeoutError("read " + c.path)
	}
	out := make([]byte, n)
	copy(out, c.buf[:n])
	return out, nil
}

func (c *SerialConn) Write(p []byte) error {
	for len(p) > 0 {
		n, err := c.port.Write(p)
		if err != nil {
			return models.IOError("write "+c.path, err)
		}
		p = p[n:]
	}
	return nil
}

func (c *SerialConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	slog.Debug("hardware: serial port closed", "port", c.path)
	err := c.port.Close()
	c.lock.release()
	return err
}
