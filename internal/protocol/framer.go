// Package protocol implements the processor's ASCII control protocol: line
// framing, frame classification and decoding, and command encoding.
package protocol

import (
	"bytes"
	"sync"
	"time"
)

// Terminator ends every command, reply and notification on the wire.
const Terminator = '\r'

// Frame is one delimited line from the wire, terminator stripped.
type Frame struct {
	Seq  uint64
	At   time.Time
	Text string
}

// FramerOptions configures a Framer.
type FramerOptions struct {
	// Terminator overrides the line terminator; zero means '\r'.
	Terminator byte

	// SuppressEcho drops the first frame that exactly matches the most
	// recently transmitted command. Enable it on links that echo.
	SuppressEcho bool

	// Now overrides the clock used for arrival timestamps.
	Now func() time.Time
}

// Framer splits the raw byte stream into frames. It does not interpret
// content. Feed is called from the read loop and Sent from the writer, so
// both are safe for concurrent use.
type Framer struct {
	mu   sync.Mutex
	term byte
	echo bool
	now  func() time.Time
	buf  []byte
	seq  uint64

	lastSent  string
	echoArmed bool
	dropped   uint64
}

// NewFramer creates a Framer.
func NewFramer(opts FramerOptions) *Framer {
	f := &Framer{
		term: opts.Terminator,
		echo: opts.SuppressEcho,
		now:  opts.Now,
	}
	if f.term == 0 {
		f.term = Terminator
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

// Sent records cmd (without terminator) as the most recently transmitted
// command, arming echo suppression for it.
func (f *Framer) Sent(cmd string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSent = cmd
	f.echoArmed = f.echo
}

// Feed appends chunk to the buffer and returns every frame it completes.
// A partial trailing line is kept until its terminator arrives.
func (f *Framer) Feed(chunk []byte) []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.buf = append(f.buf, chunk...)
	var frames []Frame
	at := f.now()
	for {
		i := bytes.IndexByte(f.buf, f.term)
		if i < 0 {
			break
		}
		text := string(f.buf[:i])
		f.buf = f.buf[i+1:]

		// Only the first frame after a send can be its echo.
		if f.echoArmed {
			f.echoArmed = false
			if text == f.lastSent {
				f.dropped++
				continue
			}
		}
		f.seq++
		frames = append(frames, Frame{Seq: f.seq, At: at, Text: text})
	}
	if len(f.buf) == 0 {
		f.buf = nil
	}
	return frames
}

// Buffered returns a copy of the incomplete tail not yet framed.
func (f *Framer) Buffered() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return bytes.Clone(f.buf)
}

// EchoesDropped returns how many frames echo suppression has discarded.
func (f *Framer) EchoesDropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Reset discards buffered bytes and disarms echo suppression.
func (f *Framer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buf = nil
	f.echoArmed = false
}
