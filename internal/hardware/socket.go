package hardware

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/brianhealey/lyngdorf-go/internal/models"
)

// SocketConn is a raw TCP link to the processor's control port.
type SocketConn struct {
	conn      net.Conn
	addr      string
	closeOnce sync.Once
	buf       [readBufSize]byte
}

func openSocket(d Descriptor) (*SocketConn, error) {
	dialer := net.Dialer{Timeout: d.Timeout, KeepAlive: 30 * time.Second}
	conn, err := dialer.Dial("tcp", d.Address)
	if err != nil {
		return nil, models.ConnectError(d.Address, err)
	}
	slog.Debug("hardware: socket connected", "addr", d.Address)
	return &SocketConn{conn: conn, addr: d.Address}, nil
}

func (c *SocketConn) ReadChunk(timeout time.Duration) ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, models.IOError("read "+c.addr, err)
	}
	n, err := c.conn.Read(c.buf[:])
	if n > 0 {
		out := make([]byte, n)
		copy(out, c.buf[:n])
		return out, nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return nil, models.TimeoutError("read " + c.addr)
	}
	if err == nil {
		return nil, models.TimeoutError("read " + c.addr)
	}
	return nil, models.IOError("read "+c.addr, err)
}

func (c *SocketConn) Write(p []byte) error {
	if _, err := c.conn.Write(p); err != nil {
		return models.IOError("write "+c.addr, err)
	}
	return nil
}

func (c *SocketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
		slog.Debug("hardware: socket closed", "addr", c.addr)
	})
	return err
}
