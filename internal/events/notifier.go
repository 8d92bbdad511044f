package events

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/brianhealey/lyngdorf-go/internal/models"
)

// Handler receives field updates. Handlers run on the notifier's dispatcher
// goroutine, one at a time, in the order updates were published.
type Handler func(models.Update)

type subscription struct {
	id      string
	fields  map[models.Field]bool // nil means any field
	fn      Handler
	removed atomic.Bool
}

func (s *subscription) wants(f models.Field) bool {
	return s.fields == nil || f == models.FieldConnection || s.fields[f]
}

// Notifier decouples state-cache updates from handler execution. Publish
// never blocks: updates go onto an unbounded queue drained by a single
// dispatcher goroutine, so a slow or wedged handler delays other handlers
// but never the publisher.
type Notifier struct {
	mu     sync.Mutex
	subs   []*subscription
	queue  []models.Update
	wake   chan struct{}
	closed bool
	done   chan struct{}
	log    *slog.Logger
}

// NewNotifier creates a notifier and starts its dispatcher.
func NewNotifier(log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	n := &Notifier{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		log:  log,
	}
	go n.run()
	return n
}

// Subscribe registers fn for the given fields (none means any field) and
// returns the handle to pass to Unsubscribe.
func (n *Notifier) Subscribe(fields []models.Field, fn Handler) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("events: nil handler")
	}
	s := &subscription{id: uuid.New().String(), fn: fn}
	if len(fields) > 0 {
		s.fields = make(map[models.Field]bool, len(fields))
		for _, f := range fields {
			s.fields[f] = true
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return "", models.ClosedError(nil)
	}
	n.subs = append(n.subs, s)
	return s.id, nil
}

// Unsubscribe removes a registration and reports whether id was registered.
// Once it returns the handler receives no further updates; a call already
// running on the dispatcher is allowed to finish.
func (n *Notifier) Unsubscribe(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	i := slices.IndexFunc(n.subs, func(s *subscription) bool { return s.id == id })
	if i < 0 {
		return false
	}
	n.subs[i].removed.Store(true)
	n.subs = slices.Delete(n.subs, i, i+1)
	return true
}

// SubscriberCount returns the current number of registrations.
func (n *Notifier) SubscriberCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// Publish queues u for delivery. Updates published after Close are dropped.
func (n *Notifier) Publish(u models.Update) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.queue = append(n.queue, u)
	n.mu.Unlock()
	n.signal()
}

// Close queues a final update carrying err for every subscriber, then
// drops all registrations once the queue has drained. It does not wait for
// delivery; use Done for that.
func (n *Notifier) Close(final models.Update) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	final.Field = models.FieldConnection
	n.queue = append(n.queue, final)
	n.closed = true
	n.mu.Unlock()
	n.signal()
}

// Done is closed when the dispatcher has delivered everything and exited.
func (n *Notifier) Done() <-chan struct{} { return n.done }

func (n *Notifier) signal() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			if n.closed {
				n.subs = nil
				n.mu.Unlock()
				return
			}
			n.mu.Unlock()
			<-n.wake
			continue
		}
		u := n.queue[0]
		n.queue[0] = models.Update{}
		n.queue = n.queue[1:]
		subs := slices.Clone(n.subs)
		n.mu.Unlock()

		for _, s := range subs {
			if !s.removed.Load() && s.wants(u.Field) {
				n.deliver(s, u)
			}
		}
	}
}

func (n *Notifier) deliver(s *subscription, u models.Update) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("events: handler panicked", "subscription", s.id, "field", u.Field, "panic", r)
		}
	}()
	s.fn(u)
}
