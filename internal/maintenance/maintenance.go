// Package maintenance keeps the bridge's device session alive: it connects,
// refreshes the cached state on a schedule, pings an idle link and
// reconnects after the session is lost.
package maintenance

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianhealey/lyngdorf-go/internal/controller"
	"github.com/brianhealey/lyngdorf-go/internal/events"
	"github.com/brianhealey/lyngdorf-go/internal/models"
)

// DialFunc opens a new device session.
type DialFunc func(ctx context.Context) (*controller.Session, error)

// Config tunes the supervisor. Zero PollInterval or KeepAlive disables
// that loop; ReconnectWait defaults to five seconds.
type Config struct {
	PollInterval  time.Duration
	KeepAlive     time.Duration
	ReconnectWait time.Duration
}

// Status summarises the supervisor for /api/info.
type Status struct {
	Connected bool      `json:"connected"`
	Connects  uint64    `json:"connects"`
	Since     time.Time `json:"since,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// Supervisor owns the current session and replaces it when it dies.
type Supervisor struct {
	dial DialFunc
	bus  *events.Bus

	mu        sync.RWMutex
	cfg       Config
	session   *controller.Session
	since     time.Time
	lastErr   error
	onConnect func(*controller.Session)

	connects atomic.Uint64
	reconfig chan struct{}
}

// New creates a supervisor. Updates from every session it opens are
// published on bus, which may be nil.
func New(dial DialFunc, cfg Config, bus *events.Bus) *Supervisor {
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 5 * time.Second
	}
	return &Supervisor{
		dial:     dial,
		bus:      bus,
		cfg:      cfg,
		reconfig: make(chan struct{}, 1),
	}
}

// OnConnect registers fn to run after each successful connect and initial
// refresh.
func (s *Supervisor) OnConnect(fn func(*controller.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnect = fn
}

// Session returns the live session, or a KindClosed error wrapping the last
// failure when there is none.
func (s *Supervisor) Session() (*controller.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		if models.KindOf(s.lastErr) == models.KindClosed {
			return nil, s.lastErr
		}
		return nil, models.ClosedError(s.lastErr)
	}
	return s.session, nil
}

// Status reports the connection state.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{Connected: s.session != nil, Connects: s.connects.Load(), Since: s.since}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// SetConfig replaces the timing configuration. A running serve loop picks
// it up immediately.
func (s *Supervisor) SetConfig(cfg Config) {
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 5 * time.Second
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	select {
	case s.reconfig <- struct{}{}:
	default:
	}
}

func (s *Supervisor) config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Run connects and supervises sessions until ctx is cancelled. The current
// session is closed on return.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		sess, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.setLastErr(err)
			slog.Warn("maintenance: connect failed", "err", err, "retry", s.config().ReconnectWait)
		} else {
			s.serve(ctx, sess)
			if ctx.Err() != nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.config().ReconnectWait):
		}
	}
}

func (s *Supervisor) setLastErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Supervisor) serve(ctx context.Context, sess *controller.Session) {
	if s.bus != nil {
		if _, err := sess.OnUpdate(nil, s.bus.Handler()); err != nil {
			slog.Warn("maintenance: session closed before subscribe", "err", err)
			return
		}
	}

	s.refresh(ctx, sess)

	s.mu.Lock()
	s.session = sess
	s.since = time.Now()
	s.lastErr = nil
	onConnect := s.onConnect
	s.mu.Unlock()
	s.connects.Add(1)
	slog.Info("maintenance: session up", "session", sess.String())

	if s.bus != nil {
		s.bus.Publish(models.Update{Field: models.FieldConnection, Value: true, Snapshot: sess.Snapshot()})
	}
	if onConnect != nil {
		onConnect(sess)
	}

	defer func() {
		s.mu.Lock()
		s.session = nil
		s.since = time.Time{}
		s.lastErr = sess.Err()
		s.mu.Unlock()
	}()

	poll, keepAlive := newTicker(s.config().PollInterval), newTicker(s.config().KeepAlive)
	defer poll.Stop()
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			sess.Close()
			return
		case <-sess.Done():
			slog.Warn("maintenance: session lost", "err", sess.Err())
			return
		case <-s.reconfig:
			cfg := s.config()
			poll.Reset(cfg.PollInterval)
			keepAlive.Reset(cfg.KeepAlive)
		case <-poll.C():
			s.refresh(ctx, sess)
		case <-keepAlive.C():
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := sess.Ping(pctx); err != nil {
				slog.Warn("maintenance: keepalive failed", "err", err)
			}
			cancel()
		}
	}
}

func (s *Supervisor) refresh(ctx context.Context, sess *controller.Session) {
	if err := sess.RequestFullRefresh(ctx); err != nil {
		if models.KindOf(err) == models.KindClosed || ctx.Err() != nil {
			return
		}
		slog.Debug("maintenance: refresh incomplete", "err", err)
	}
}

// ticker is a time.Ticker that can be disabled with a zero interval.
type ticker struct {
	t *time.Ticker
}

func newTicker(d time.Duration) *ticker {
	tk := &ticker{}
	tk.Reset(d)
	return tk
}

func (tk *ticker) Reset(d time.Duration) {
	switch {
	case d <= 0:
		tk.Stop()
	case tk.t == nil:
		tk.t = time.NewTicker(d)
	default:
		tk.t.Reset(d)
	}
}

func (tk *ticker) Stop() {
	if tk.t != nil {
		tk.t.Stop()
		tk.t = nil
	}
}

// C returns nil while disabled, which blocks forever in a select.
func (tk *ticker) C() <-chan time.Time {
	if tk.t == nil {
		return nil
	}
	return tk.t.C
}
