// Package hardware provides the transport abstraction for Lyngdorf processors
// and the static per-model profile table. It defines the Conn interface used
// by both the real serial/socket transports and the mock device.
package hardware

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brianhealey/lyngdorf-go/internal/models"
)

// Connection defaults shared by both models.
const (
	DefaultBaudRate = 115200
	DefaultPort     = 84
	DefaultTimeout  = 2 * time.Second
)

// Kind is the transport kind.
type Kind string

const (
	KindSerial Kind = "serial"
	KindSocket Kind = "socket"
)

// Descriptor describes how to reach one device. It is immutable once a
// session has started.
type Descriptor struct {
	Kind     Kind          `json:"kind"`
	Address  string        `json:"address"`             // device path or host:port
	BaudRate int           `json:"baud_rate,omitempty"` // serial only
	Timeout  time.Duration `json:"timeout,omitempty"`   // connect and command deadline
}

// WithDefaults fills unset tunables.
func (d Descriptor) WithDefaults() Descriptor {
	if d.BaudRate == 0 {
		d.BaudRate = DefaultBaudRate
	}
	if d.Timeout == 0 {
		d.Timeout = DefaultTimeout
	}
	if d.Kind == KindSocket {
		if _, _, err := net.SplitHostPort(d.Address); err != nil {
			d.Address = net.JoinHostPort(d.Address, strconv.Itoa(DefaultPort))
		}
	}
	return d
}

func (d Descriptor) String() string {
	switch d.Kind {
	case KindSerial:
		return fmt.Sprintf("serial://%s@%d", d.Address, d.BaudRate)
	case KindSocket:
		return "socket://" + d.Address
	}
	// Caller-supplied connections have no URL.
	return d.Address
}

// ParseURL converts a port URL into a Descriptor. Accepted forms:
//
//	/dev/ttyUSB0
//	serial:///dev/ttyUSB0
//	socket://192.168.1.100:84
//	socket://lyngdorf.local     (port 84)
func ParseURL(raw string) (Descriptor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Descriptor{}, fmt.Errorf("hardware: empty port url")
	}
	if !strings.Contains(raw, "://") {
		return Descriptor{Kind: KindSerial, Address: raw}.WithDefaults(), nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Descriptor{}, fmt.Errorf("hardware: parse %q: %w", raw, err)
	}
	switch u.Scheme {
	case "serial":
		path := u.Path
		if u.Host != "" {
			path = "/" + u.Host + u.Path
		}
		if path == "" {
			return Descriptor{}, fmt.Errorf("hardware: %q has no device path", raw)
		}
		return Descriptor{Kind: KindSerial, Address: path}.WithDefaults(), nil
	case "socket", "tcp":
		if u.Host == "" {
			return Descriptor{}, fmt.Errorf("hardware: %q has no host", raw)
		}
		return Descriptor{Kind: KindSocket, Address: u.Host}.WithDefaults(), nil
	default:
		return Descriptor{}, fmt.Errorf("hardware: unsupported scheme %q", u.Scheme)
	}
}

// Conn is a byte-oriented duplex connection with no protocol knowledge.
// ReadChunk and Write may be called from different goroutines; Close may be
// called from any goroutine and unblocks a pending ReadChunk.
type Conn interface {
	// ReadChunk returns the next available bytes. It fails with a
	// models.KindTimeout error when nothing arrives within timeout and with a
	// models.KindIO error when the link is broken.
	ReadChunk(timeout time.Duration) ([]byte, error)

	// Write sends p in full or fails with a models.KindIO error.
	Write(p []byte) error

	// Close releases the OS handle. It is idempotent.
	Close() error
}

// Open acquires the transport described by d. Failures are models.KindConnect.
func Open(d Descriptor) (Conn, error) {
	d = d.WithDefaults()
	switch d.Kind {
	case KindSerial:
		return openSerial(d)
	case KindSocket:
		return openSocket(d)
	default:
		return nil, models.ConnectError(d.Address, fmt.Errorf("unknown transport kind %q", d.Kind))
	}
}

const readBufSize = 256
