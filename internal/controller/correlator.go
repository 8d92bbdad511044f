package controller

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/brianhealey/lyngdorf-go/internal/hardware"
	"github.com/brianhealey/lyngdorf-go/internal/protocol"
)

type result struct {
	msg protocol.Message
	err error
}

// pending is the single outstanding command.
type pending struct {
	cmd  protocol.Command
	sent time.Time
	done chan result // buffered; receives exactly one result
}

// correlator pairs each outbound command with the message that answers it.
// The slot channel is a one-permit semaphore: the protocol is half-duplex
// for commands, so a second sender blocks until the first is resolved,
// timed out or cancelled.
type correlator struct {
	slot chan struct{}

	mu       sync.Mutex
	cur      *pending
	closed   chan struct{}
	closeErr error

	general *rate.Limiter
	volume  *rate.Limiter
}

func newCorrelator(p *hardware.Profile, throttle bool) *correlator {
	c := &correlator{
		slot:    make(chan struct{}, 1),
		closed:  make(chan struct{}),
		general: rate.NewLimiter(rate.Inf, 1),
		volume:  rate.NewLimiter(rate.Inf, 1),
	}
	if throttle {
		c.general = rate.NewLimiter(rate.Every(p.MinCommandInterval), 1)
		c.volume = rate.NewLimiter(rate.Every(p.MinVolumeInterval), 1)
	}
	return c
}

// acquire takes the command slot. It fails once the session is closed.
func (c *correlator) acquire(ctx context.Context) error {
	if err := c.err(); err != nil {
		return err
	}
	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return c.err()
	}
	if err := c.err(); err != nil {
		c.release()
		return err
	}
	return nil
}

func (c *correlator) release() { <-c.slot }

// throttle waits out the model's minimum spacing between commands.
func (c *correlator) throttle(ctx context.Context, cmd protocol.Command) error {
	if cmd.Volume {
		return c.volume.Wait(ctx)
	}
	return c.general.Wait(ctx)
}

// begin registers cmd as outstanding. It must be called before the bytes
// are written so a fast reply cannot be missed.
func (c *correlator) begin(cmd protocol.Command) *pending {
	p := &pending{cmd: cmd, sent: time.Now(), done: make(chan result, 1)}
	c.mu.Lock()
	c.cur = p
	c.mu.Unlock()
	return p
}

// abandon clears p after a timeout or cancellation.
func (c *correlator) abandon(p *pending) {
	c.mu.Lock()
	if c.cur == p {
		c.cur = nil
	}
	c.mu.Unlock()
}

// resolve offers msg to the outstanding command and reports whether it was
// consumed as the answer.
func (c *correlator) resolve(msg protocol.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.cur
	if p == nil || !answers(p.cmd, msg) {
		return false
	}
	c.cur = nil
	p.done <- result{msg: msg}
	return true
}

// answers reports whether msg resolves cmd: any Ack or Error does, and so
// does a status line carrying the command's reply token.
func answers(cmd protocol.Command, msg protocol.Message) bool {
	switch msg.Kind {
	case protocol.KindAck, protocol.KindError:
		return true
	case protocol.KindState, protocol.KindInfo:
		return cmd.Reply != "" && msg.Token == cmd.Reply
	default:
		return false
	}
}

// fail closes the correlator: the outstanding command and every later
// acquire fail with err.
func (c *correlator) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeErr == nil {
		c.closeErr = err
		close(c.closed)
	}
	if c.cur != nil {
		c.cur.done <- result{err: err}
		c.cur = nil
	}
}

func (c *correlator) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

// outstanding reports whether a command is awaiting its answer.
func (c *correlator) outstanding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur != nil
}
