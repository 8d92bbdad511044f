package hardware

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/brianhealey/lyngdorf-go/internal/models"
)

// Responder returns the lines a device sends back for one received command
// (without terminators). A nil or empty result means no reply.
type Responder func(cmd string) []string

// Mock is a thread-safe in-memory transport for testing and development.
// Writes are split on '\r' into commands and offered to the Responder; its
// reply lines are queued for ReadChunk.
type Mock struct {
	mu        sync.Mutex
	respond   Responder
	echo      bool
	failWrite bool
	closed    bool
	writes    []string
	written   int
	partial   strings.Builder

	incoming chan []byte
	readErr  chan error
	done     chan struct{}
}

// NewMock creates a mock transport with no responder (a silent device).
func NewMock() *Mock {
	return &Mock{
		incoming: make(chan []byte, 1024),
		readErr:  make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// NewMockWithResponder creates a mock transport answering with fn.
func NewMockWithResponder(fn Responder) *Mock {
	m := NewMock()
	m.respond = fn
	return m
}

// SetResponder replaces the reply function.
func (m *Mock) SetResponder(fn Responder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.respond = fn
}

// SetEcho makes the mock reflect every written command back verbatim, like a
// serial adapter with local echo.
func (m *Mock) SetEcho(echo bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.echo = echo
}

// SetFailWrite configures the mock to fail all write operations.
func (m *Mock) SetFailWrite(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite = fail
}

// Inject queues lines as if the device had sent them unsolicited.
func (m *Mock) Inject(lines ...string) {
	for _, l := range lines {
		m.InjectRaw([]byte(l + "\r"))
	}
}

// InjectRaw queues raw bytes for the reader.
func (m *Mock) InjectRaw(b []byte) {
	select {
	case m.incoming <- b:
	case <-m.done:
	}
}

// FailRead makes the next ReadChunk fail with an I/O error wrapping err.
func (m *Mock) FailRead(err error) {
	select {
	case m.readErr <- err:
	default:
	}
}

// Writes returns the commands written so far, without terminators.
func (m *Mock) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.writes))
	copy(out, m.writes)
	return out
}

// BytesWritten returns the total number of bytes written.
func (m *Mock) BytesWritten() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written
}

// Closed reports whether Close has been called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Mock) ReadChunk(timeout time.Duration) ([]byte, error) {
	// Pending data wins over a concurrent close so nothing queued is lost.
	select {
	case b := <-m.incoming:
		return b, nil
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case b := <-m.incoming:
		return b, nil
	case err := <-m.readErr:
		return nil, models.IOError("read mock", err)
	case <-m.done:
		return nil, models.IOError("read mock", errors.New("port closed"))
	case <-t.C:
		return nil, models.TimeoutError("read mock")
	}
}

func (m *Mock) Write(p []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return models.IOError("write mock", errors.New("port closed"))
	}
	if m.failWrite {
		m.mu.Unlock()
		return models.IOError("write mock", errors.New("write failure configured"))
	}
	m.written += len(p)

	var cmds []string
	for _, b := range p {
		if b == '\r' {
			cmds = append(cmds, m.partial.String())
			m.partial.Reset()
			continue
		}
		m.partial.WriteByte(b)
	}
	m.writes = append(m.writes, cmds...)
	respond, echo := m.respond, m.echo
	m.mu.Unlock()

	for _, cmd := range cmds {
		if echo {
			m.Inject(cmd)
		}
		if respond != nil {
			m.Inject(respond(cmd)...)
		}
	}
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}
