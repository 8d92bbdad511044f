// Package controller implements the protocol client for one Lyngdorf
// processor: a persistent read loop, the command/response correlator, the
// device state cache and the typed command surface built on top of them.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianhealey/lyngdorf-go/internal/events"
	"github.com/brianhealey/lyngdorf-go/internal/hardware"
	"github.com/brianhealey/lyngdorf-go/internal/models"
	"github.com/brianhealey/lyngdorf-go/internal/protocol"
)

// DefaultVerbosity makes the device push unsolicited status updates.
const DefaultVerbosity = 1

// readPoll bounds each blocking read so the loop notices a close promptly.
const readPoll = 250 * time.Millisecond

// Options tunes a session.
type Options struct {
	// Timeout is the per-command reply deadline. Zero uses the descriptor's
	// timeout, or hardware.DefaultTimeout.
	Timeout time.Duration

	// SuppressEcho drops the link's reflection of each transmitted command.
	SuppressEcho bool

	// Verbosity is sent to the device after connecting; zero means
	// DefaultVerbosity. SkipVerbosity leaves the device setting alone.
	Verbosity     int
	SkipVerbosity bool

	// DisableThrottle removes the model's minimum spacing between commands.
	DisableThrottle bool

	Logger *slog.Logger
}

// Stats counts read-path activity.
type Stats struct {
	Frames   uint64 `json:"frames"`
	Updates  uint64 `json:"updates"`
	Unknown  uint64 `json:"unknown"`
	Echoes   uint64 `json:"echoes"`
	Commands uint64 `json:"commands"`
	Timeouts uint64 `json:"timeouts"`
}

// Session is a live connection to one device. All methods are safe for
// concurrent use; commands are serialised onto the wire one at a time.
type Session struct {
	conn     hardware.Conn
	profile  *hardware.Profile
	desc     hardware.Descriptor
	timeout  time.Duration
	log      *slog.Logger
	framer   *protocol.Framer
	corr     *correlator
	cache    *cache
	notifier *events.Notifier

	closing   atomic.Bool
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
	done      chan struct{}
	readDone  chan struct{}

	frames, updates, unknown, echoes, commands, timeouts atomic.Uint64
}

// Connect opens the transport described by desc and starts a session for
// the given model.
func Connect(ctx context.Context, desc hardware.Descriptor, model hardware.ModelID, opts Options) (*Session, error) {
	profile, err := hardware.LookupProfile(model)
	if err != nil {
		return nil, err
	}
	desc = desc.WithDefaults()
	conn, err := hardware.Open(desc)
	if err != nil {
		return nil, err
	}
	if opts.Timeout == 0 {
		opts.Timeout = desc.Timeout
	}
	return start(ctx, conn, profile, desc, opts)
}

// NewSession starts a session over an already open connection.
func NewSession(ctx context.Context, conn hardware.Conn, profile *hardware.Profile, opts Options) (*Session, error) {
	return start(ctx, conn, profile, hardware.Descriptor{Address: "conn"}, opts)
}

func start(ctx context.Context, conn hardware.Conn, profile *hardware.Profile, desc hardware.Descriptor, opts Options) (*Session, error) {
	if opts.Timeout == 0 {
		opts.Timeout = hardware.DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		conn:     conn,
		profile:  profile,
		desc:     desc,
		timeout:  opts.Timeout,
		log:      log,
		framer:   protocol.NewFramer(protocol.FramerOptions{SuppressEcho: opts.SuppressEcho}),
		corr:     newCorrelator(profile, !opts.DisableThrottle),
		cache:    newCache(),
		notifier: events.NewNotifier(log),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go s.readLoop()
	s.log.Info("controller: session started", "device", desc.String(), "model", profile.Name,
		"timeout", s.timeout, "echo_suppression", opts.SuppressEcho)

	if !opts.SkipVerbosity {
		level := opts.Verbosity
		if level == 0 {
			level = DefaultVerbosity
		}
		if err := s.SetVerbosity(ctx, level); err != nil {
			if models.KindOf(err) == models.KindClosed {
				return nil, err
			}
			s.log.Warn("controller: could not set verbosity", "level", level, "err", err)
		}
	}
	return s, nil
}

// Profile returns the model profile the session was created with.
func (s *Session) Profile() *hardware.Profile { return s.profile }

// Snapshot returns an immutable copy of the current device state.
func (s *Session) Snapshot() models.Snapshot { return s.cache.snapshot() }

// Stats returns read-path counters.
func (s *Session) Stats() Stats {
	return Stats{
		Frames:   s.frames.Load(),
		Updates:  s.updates.Load(),
		Unknown:  s.unknown.Load(),
		Echoes:   s.echoes.Load() + s.framer.EchoesDropped(),
		Commands: s.commands.Load(),
		Timeouts: s.timeouts.Load(),
	}
}

// OnUpdate registers handler for changes to fields (none means any field)
// and returns a handle for Unsubscribe. Handlers run on a dedicated
// dispatcher goroutine, never on the read loop.
func (s *Session) OnUpdate(fields []models.Field, handler events.Handler) (string, error) {
	if err := s.Err(); err != nil {
		return "", err
	}
	return s.notifier.Subscribe(fields, handler)
}

// Unsubscribe removes a registration made with OnUpdate.
func (s *Session) Unsubscribe(handle string) bool {
	return s.notifier.Unsubscribe(handle)
}

// Done is closed when the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the teardown error, or nil while the session is live.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close tears the session down: the outstanding command fails with a
// closed error, the transport is released and the read loop exits.
func (s *Session) Close() error {
	s.teardown(nil)
	<-s.readDone
	return nil
}

// teardown runs once. cause is nil for a caller-initiated close.
func (s *Session) teardown(cause error) {
	s.closeOnce.Do(func() {
		closed := models.ClosedError(cause)
		s.errMu.Lock()
		s.err = closed
		s.errMu.Unlock()
		s.closing.Store(true)

		s.corr.fail(closed)
		if err := s.conn.Close(); err != nil {
			s.log.Debug("controller: transport close", "err", err)
		}
		s.notifier.Close(models.Update{Err: closed, Snapshot: s.cache.snapshot()})
		close(s.done)

		if cause != nil {
			s.log.Warn("controller: session lost", "device", s.desc.String(), "err", cause)
		} else {
			s.log.Info("controller: session closed", "device", s.desc.String())
		}
	})
}

// Send transmits cmd and waits for the message that answers it. A device
// rejection is returned as a models.KindDevice error.
func (s *Session) Send(ctx context.Context, cmd protocol.Command) (protocol.Message, error) {
	if err := s.corr.acquire(ctx); err != nil {
		return protocol.Message{}, err
	}
	defer s.corr.release()

	if err := s.corr.throttle(ctx, cmd); err != nil {
		return protocol.Message{}, err
	}

	p := s.corr.begin(cmd)
	s.framer.Sent(cmd.Text)
	s.commands.Add(1)
	s.log.Debug("controller: send", "cmd", cmd.Text)
	if err := s.conn.Write(cmd.Bytes()); err != nil {
		s.corr.abandon(p)
		s.teardown(err)
		return protocol.Message{}, s.Err()
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case r := <-p.done:
		if r.err != nil {
			return protocol.Message{}, r.err
		}
		if r.msg.Kind == protocol.KindError {
			return r.msg, models.DeviceError(cmd.Text, r.msg.Code, r.msg.Text)
		}
		s.log.Debug("controller: reply", "cmd", cmd.Text, "reply", r.msg.Raw, "rtt", time.Since(p.sent))
		return r.msg, nil
	case <-timer.C:
		s.corr.abandon(p)
		s.timeouts.Add(1)
		s.log.Warn("controller: timeout waiting for reply", "cmd", cmd.Text, "timeout", s.timeout)
		return protocol.Message{}, models.TimeoutError(cmd.Text)
	case <-ctx.Done():
		s.corr.abandon(p)
		return protocol.Message{}, ctx.Err()
	}
}

func (s *Session) readLoop() {
	defer close(s.readDone)
	for {
		chunk, err := s.conn.ReadChunk(readPoll)
		if err != nil {
			if s.closing.Load() {
				return
			}
			if models.KindOf(err) == models.KindTimeout {
				continue
			}
			s.teardown(err)
			return
		}
		for _, fr := range s.framer.Feed(chunk) {
			s.handleFrame(fr)
		}
	}
}

func (s *Session) handleFrame(fr protocol.Frame) {
	if strings.TrimSpace(fr.Text) == "" {
		return
	}
	s.frames.Add(1)
	msg := protocol.Parse(fr.Text, s.profile)
	switch msg.Kind {
	case protocol.KindEcho:
		s.echoes.Add(1)
		return
	case protocol.KindUnknown:
		s.unknown.Add(1)
		s.log.Debug("controller: unrecognised frame", "seq", fr.Seq, "raw", fr.Text)
		return
	}

	// Apply before resolving so a caller sees its own change in the cache
	// as soon as the command returns.
	if msg.IsUpdate() {
		s.apply(msg)
	}
	if s.corr.resolve(msg) {
		return
	}
	if msg.Kind == protocol.KindAck || msg.Kind == protocol.KindError {
		s.log.Debug("controller: reply with no command outstanding", "raw", fr.Text)
	}
}

func (s *Session) apply(msg protocol.Message) {
	changed, snap := s.cache.apply(msg.Field, msg.Value)
	if !changed {
		return
	}
	s.updates.Add(1)
	s.notifier.Publish(models.Update{Field: msg.Field, Value: msg.Value, Snapshot: snap})
}

func (s *Session) String() string {
	return fmt.Sprintf("%s (%s)", s.desc.String(), s.profile.Name)
}
