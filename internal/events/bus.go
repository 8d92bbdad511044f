// Package events delivers device state changes to interested parties: the
// Notifier runs registered handlers off the protocol read path, and the Bus
// fans updates out to channel readers such as SSE clients.
package events

import (
	"sync"

	"github.com/brianhealey/lyngdorf-go/internal/models"
)

const subBufferSize = 32

// Bus fans field updates out to channel readers without ever blocking the
// publisher. When a reader's buffer is full its oldest queued update is
// discarded to make room, so a lagging reader always ends on the newest
// value of every field it still holds.
type Bus struct {
	mu      sync.Mutex
	readers map[string]chan models.Update
	dropped uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{readers: make(map[string]chan models.Update)}
}

// Subscribe registers a reader under id, replacing any reader already
// registered under it.
func (b *Bus) Subscribe(id string) <-chan models.Update {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.readers[id]; ok {
		close(old)
	}
	ch := make(chan models.Update, subBufferSize)
	b.readers[id] = ch
	return ch
}

// Unsubscribe removes a reader and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.readers[id]; ok {
		delete(b.readers, id)
		close(ch)
	}
}

// Publish queues u for every reader.
func (b *Bus) Publish(u models.Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.readers {
		if offer(ch, u) {
			continue
		}
		select {
		case <-ch:
			b.dropped++
		default:
		}
		if !offer(ch, u) {
			b.dropped++
		}
	}
}

func offer(ch chan models.Update, u models.Update) bool {
	select {
	case ch <- u:
		return true
	default:
		return false
	}
}

// Handler adapts the bus to a Notifier subscription.
func (b *Bus) Handler() Handler {
	return b.Publish
}

// SubscriberCount returns the number of registered readers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.readers)
}

// Dropped returns how many queued updates were discarded for lagging readers.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
