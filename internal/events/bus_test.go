package events_test

import (
	"testing"
	"time"

	"github.com/brianhealey/lyngdorf-go/internal/events"
	"github.com/brianhealey/lyngdorf-go/internal/models"
)

func volumeUpdate(db float64) models.Update {
	return models.Update{
		Field: models.FieldVolume,
		Value: db,
		Snapshot: models.NewSnapshot(1, map[models.Field]models.Value{
			models.FieldVolume: db,
		}),
	}
}

func TestBusSubscribePublish(t *testing.T) {
	bus := events.NewBus()

	ch := bus.Subscribe("test1")
	bus.Publish(volumeUpdate(-10.5))

	select {
	case got := <-ch:
		if got.Value != -10.5 {
			t.Errorf("got value %v, want -10.5", got.Value)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe("test-unsub")

	bus.Unsubscribe("test-unsub")

	// Channel should be closed
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed after unsubscribe")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestBusDropsEventsWhenFull(t *testing.T) {
	bus := events.NewBus()
	bus.Subscribe("slow-reader")

	// Publish many events without reading; must not block.
	done := make(chan struct{})
	go func() {
		for i := range 50 {
			bus.Publish(volumeUpdate(float64(-i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Publish blocked for too long (should drop events)")
	}
	if n := bus.Dropped(); n == 0 {
		t.Error("expected dropped deliveries for a lagging reader")
	}
	bus.Unsubscribe("slow-reader")
}

func TestBusLaggingReaderKeepsNewest(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe("lagging")

	for i := range 100 {
		bus.Publish(volumeUpdate(float64(-i)))
	}

	var last models.Update
	n := 0
	for len(ch) > 0 {
		last = <-ch
		n++
	}
	if n != 32 {
		t.Errorf("buffered = %d, want 32", n)
	}
	if last.Value != -99.0 {
		t.Errorf("last value = %v, want -99", last.Value)
	}
	if got := bus.Dropped(); got != 68 {
		t.Errorf("Dropped() = %d, want 68", got)
	}
}

func TestBusResubscribeClosesOld(t *testing.T) {
	bus := events.NewBus()
	old := bus.Subscribe("sse")
	bus.Subscribe("sse")

	if _, ok := <-old; ok {
		t.Error("old channel still open after resubscribe")
	}
	if n := bus.SubscriberCount(); n != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", n)
	}
}

func TestBusSubscriberCount(t *testing.T) {
	bus := events.NewBus()
	if n := bus.SubscriberCount(); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}
	bus.Subscribe("s1")
	bus.Subscribe("s2")
	if n := bus.SubscriberCount(); n != 2 {
		t.Errorf("expected 2 subscribers, got %d", n)
	}
	bus.Unsubscribe("s1")
	if n := bus.SubscriberCount(); n != 1 {
		t.Errorf("expected 1 subscriber, got %d", n)
	}
}

func TestBusAsNotifierHandler(t *testing.T) {
	n := events.NewNotifier(nil)
	bus := events.NewBus()
	ch := bus.Subscribe("sse")

	if _, err := n.Subscribe(nil, bus.Handler()); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	n.Publish(volumeUpdate(-3))

	select {
	case got := <-ch:
		if got.Field != models.FieldVolume {
			t.Errorf("field = %q, want %q", got.Field, models.FieldVolume)
		}
	case <-time.After(time.Second):
		t.Fatal("update did not reach bus")
	}
	n.Close(models.Update{})
}
